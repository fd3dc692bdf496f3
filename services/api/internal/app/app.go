package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"bookreview/internal/util"
	"bookreview/internal/validation"
	"bookreview/pkg/pagination"
	"bookreview/pkg/store"
)

// Config holds runtime configuration for the core application. Store and
// Sessions may be injected (tests); otherwise they are built from the
// database URL, Redis client and JWT settings.
type Config struct {
	DatabaseURL string
	Redis       *redis.Client

	SessionTTL          time.Duration
	JWTPrivateKeyPath   string
	JWTKeyID            string
	JWTVerifyPublicKeys map[string]string
	JWTIssuer           string
	JWTAudience         string
	JWTLeeway           time.Duration

	Store    store.Store
	Sessions store.SessionStore
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// App is the use-case layer between HTTP handlers and storage.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	validator *validation.Validator
	now       func() time.Time
	newID     func() string
	startedAt time.Time
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.JWTPrivateKeyPath) == "" {
			return nil, fmt.Errorf("jwtPrivateKeyPath is required")
		}
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis client is required for token revocation")
		}
		jwtStore, err := store.NewJWTSessionStoreFromPEM(cfg.JWTPrivateKeyPath, cfg.JWTVerifyPublicKeys, store.JWTOptions{
			KeyID:    cfg.JWTKeyID,
			TTL:      cfg.SessionTTL,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
			Revoker:  store.NewRedisTokenRevoker(cfg.Redis),
		})
		if err != nil {
			return nil, fmt.Errorf("init rs256 jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:     dataStore,
		sessions:  sessionStore,
		validator: validation.New(),
		now:       func() time.Time { return now().UTC() },
		newID:     util.NewID,
		startedAt: now().UTC(),
	}, nil
}

// Page is one window of a listing plus its pagination block.
type Page[T any] struct {
	Items      []T
	Pagination pagination.Meta
}

// PageParams is a 1-based page request.
type PageParams struct {
	Page  int `json:"page" validate:"gte=1,lte=2147483647"`
	Limit int `json:"limit" validate:"gte=1,lte=100"`
}

// DefaultPageParams returns page 1 with the default limit.
func DefaultPageParams() PageParams {
	return PageParams{Page: pagination.DefaultPage, Limit: pagination.DefaultLimit}
}

func (p PageParams) window() pagination.Window {
	return pagination.NewWindow(p.Page, p.Limit)
}

func (p PageParams) meta(total int64) pagination.Meta {
	return pagination.NewMeta(p.Page, p.Limit, total)
}

// Health reports storage connectivity and process uptime.
type Health struct {
	Database string
	Uptime   time.Duration
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health checks storage reachability when the store supports it.
func (a *App) Health(ctx context.Context) Health {
	h := Health{Database: "ok", Uptime: a.now().Sub(a.startedAt)}
	if p, ok := a.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			util.LoggerFromContext(ctx).Warn("database ping failed", "err", err)
			h.Database = "unavailable"
		}
	}
	return h
}

// Close releases storage resources when the store owns any.
func (a *App) Close() error {
	if c, ok := a.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (a *App) validate(v any) error {
	return a.validator.Validate(v)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
