package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when BOOKREVIEW_CONFIG is unset.
const DefaultPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`

	SessionTTL          string `yaml:"sessionTTL"`
	JWTPrivateKeyPath   string `yaml:"jwtPrivateKeyPath"`
	JWTKeyID            string `yaml:"jwtKeyId"`
	JWTVerifyPublicKeys string `yaml:"jwtVerifyPublicKeys"`
	JWTIssuer           string `yaml:"jwtIssuer"`
	JWTAudience         string `yaml:"jwtAudience"`
	JWTLeeway           string `yaml:"jwtLeeway"`

	FrontendURL    string   `yaml:"frontendURL"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	TrustedProxies []string `yaml:"trustedProxies"`
	StaticDir      string   `yaml:"staticDir"`
	MaxBodyBytes   int64    `yaml:"maxBodyBytes"`

	AuthRateLimit    int    `yaml:"authRateLimit"`
	GeneralRateLimit int    `yaml:"generalRateLimit"`
	RateLimitWindow  string `yaml:"rateLimitWindow"`
	ShutdownTimeout  string `yaml:"shutdownTimeout"`
}

// Path returns the config file path from BOOKREVIEW_CONFIG or DefaultPath.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("BOOKREVIEW_CONFIG")); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads .env (if present), then the YAML file, then environment
// overrides, and validates the result. A missing file at DefaultPath is
// tolerated so the service can run from the environment alone.
func Load(path string) (FileConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return FileConfig{}, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = Path()
	}
	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaults() FileConfig {
	return FileConfig{
		Port:             "5000",
		LogLevel:         "info",
		LogFormat:        "json",
		SessionTTL:       "168h",
		MaxBodyBytes:     10 << 20,
		AuthRateLimit:    5,
		GeneralRateLimit: 50,
		RateLimitWindow:  "15m",
		ShutdownTimeout:  "10s",
	}
}

func applyEnv(cfg *FileConfig) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setList := func(key string, dst *[]string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = SplitList(v)
		}
	}
	setInt := func(key string, dst *int) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("PORT", &cfg.Port)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("LOG_FORMAT", &cfg.LogFormat)
	setString("SESSION_TTL", &cfg.SessionTTL)
	setString("JWT_PRIVATE_KEY_PATH", &cfg.JWTPrivateKeyPath)
	setString("JWT_KEY_ID", &cfg.JWTKeyID)
	setString("JWT_VERIFY_PUBLIC_KEYS", &cfg.JWTVerifyPublicKeys)
	setString("JWT_ISSUER", &cfg.JWTIssuer)
	setString("JWT_AUDIENCE", &cfg.JWTAudience)
	setString("JWT_LEEWAY", &cfg.JWTLeeway)
	setString("FRONTEND_URL", &cfg.FrontendURL)
	setList("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	setList("TRUSTED_PROXIES", &cfg.TrustedProxies)
	setString("STATIC_DIR", &cfg.StaticDir)
	setString("RATE_LIMIT_WINDOW", &cfg.RateLimitWindow)
	setString("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	for key, dst := range map[string]*int{
		"REDIS_DB":           &cfg.RedisDB,
		"AUTH_RATE_LIMIT":    &cfg.AuthRateLimit,
		"GENERAL_RATE_LIMIT": &cfg.GeneralRateLimit,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("config: port is required (set PORT or port in config.yaml)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for rate limiting and token revocation (set REDIS_ADDR)")
	}
	if strings.TrimSpace(cfg.JWTPrivateKeyPath) == "" {
		return errors.New("config: jwtPrivateKeyPath is required (set JWT_PRIVATE_KEY_PATH)")
	}
	if cfg.AuthRateLimit < 0 || cfg.GeneralRateLimit < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxBodyBytes < 0 {
		return errors.New("config: maxBodyBytes must be >= 0")
	}
	for name, raw := range map[string]string{
		"sessionTTL":      cfg.SessionTTL,
		"jwtLeeway":       cfg.JWTLeeway,
		"rateLimitWindow": cfg.RateLimitWindow,
		"shutdownTimeout": cfg.ShutdownTimeout,
	} {
		if _, err := ParseDuration(name, raw); err != nil {
			return err
		}
	}
	if _, err := ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys); err != nil {
		return err
	}
	return nil
}

// ParseDuration parses an optional duration; empty input yields zero.
func ParseDuration(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", name)
	}
	return dur, nil
}

// ParseVerifyPublicKeys parses "kid=path,kid2=path2" into a map.
func ParseVerifyPublicKeys(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range SplitList(raw) {
		kid, path, ok := strings.Cut(pair, "=")
		kid, path = strings.TrimSpace(kid), strings.TrimSpace(path)
		if !ok || kid == "" || path == "" {
			return nil, fmt.Errorf("config: invalid jwtVerifyPublicKeys entry %q", pair)
		}
		out[kid] = path
	}
	return out, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Origins merges FrontendURL into AllowedOrigins.
func (c FileConfig) Origins() []string {
	origins := make([]string, 0, len(c.AllowedOrigins)+1)
	if v := strings.TrimSpace(c.FrontendURL); v != "" {
		origins = append(origins, v)
	}
	return append(origins, c.AllowedOrigins...)
}
