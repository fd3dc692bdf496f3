package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"bookreview/internal/ratelimit"
	"bookreview/internal/util"
	"bookreview/services/api/internal/app"
	"bookreview/services/api/internal/security"
)

const (
	defaultAuthRateLimit    = 5
	defaultGeneralRateLimit = 50
	defaultRateLimitWindow  = 15 * time.Minute
	defaultMaxBodyBytes     = 10 << 20

	authRateLimitMessage    = "Too many authentication attempts, please try again later."
	generalRateLimitMessage = "Too many requests from this IP, please try again later."
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App   *app.App
	Redis *redis.Client

	AuthRateLimit    int
	GeneralRateLimit int
	RateLimitWindow  time.Duration

	Origins        []string
	TrustedProxies *util.TrustedProxies
	StaticDir      string
	MaxBodyBytes   int64
}

// Server exposes the REST API and, optionally, the built frontend.
type Server struct {
	app            *app.App
	router         chi.Router
	trusted        *util.TrustedProxies
	staticDir      string
	authLimiter    *ratelimit.FixedWindowLimiter
	generalLimiter *ratelimit.FixedWindowLimiter
	alerter        *security.AuditAlerter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	authLimit := cfg.AuthRateLimit
	if authLimit <= 0 {
		authLimit = defaultAuthRateLimit
	}
	generalLimit := cfg.GeneralRateLimit
	if generalLimit <= 0 {
		generalLimit = defaultGeneralRateLimit
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "bookreview:ratelimit:"+name, limit, window)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	authLimiter, err := newLimiter("auth", authLimit)
	if err != nil {
		return nil, err
	}
	generalLimiter, err := newLimiter("general", generalLimit)
	if err != nil {
		return nil, err
	}

	staticDir := strings.TrimSpace(cfg.StaticDir)
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("static dir %q is not a directory", staticDir)
		}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	s := &Server{
		app:            cfg.App,
		router:         chi.NewRouter(),
		trusted:        cfg.TrustedProxies,
		staticDir:      staticDir,
		authLimiter:    authLimiter,
		generalLimiter: generalLimiter,
		alerter:        security.NewAuditAlerter(cfg.Redis, "bookreview:alerts"),
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(util.WithRequestID)
	s.router.Use(util.WithRequestLog(cfg.TrustedProxies))
	s.router.Use(util.WithSecurityHeaders)
	s.router.Use(util.WithCORS(cfg.Origins))
	s.router.Use(util.WithBodyLimit(maxBody))
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Routes exposes the route tree for inspection, e.g. with chi.Walk.
func (s *Server) Routes() chi.Routes {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Get("/healthz", s.handleHealthz)
	if s.staticDir == "" {
		r.Get("/", s.handleIndex)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit(s.generalLimiter, generalRateLimitMessage))
		r.Get("/", s.handleIndex)
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Use(s.rateLimit(s.authLimiter, authRateLimitMessage))
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/profile", s.authenticated(s.handleProfile))
			r.Post("/refresh", s.authenticated(s.handleRefresh))
			r.Post("/logout", s.handleLogout)
			r.Get("/jwks", s.handleJWKS)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Get("/search", s.handleSearchBooks)
			r.Get("/genres", s.handleListGenres)
			r.Get("/{id}", s.handleGetBook)
			r.Get("/{id}/reviews", s.handleBookReviews)
			r.Post("/", s.authenticated(s.handleCreateBook))
			r.Put("/{id}", s.authenticated(s.handleUpdateBook))
			r.Delete("/{id}", s.authenticated(s.handleDeleteBook))
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", s.handleListReviews)
			r.Get("/stats", s.handleReviewStats)
			r.Get("/my", s.authenticated(s.handleMyReviews))
			r.Get("/{id}", s.handleGetReview)
			r.Post("/", s.authenticated(s.handleCreateReview))
			r.Put("/{id}", s.authenticated(s.handleUpdateReview))
			r.Delete("/{id}", s.authenticated(s.handleDeleteReview))
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Get("/search", s.handleSearchUsers)
			r.Get("/{id}", s.handleGetUser)
			r.Post("/", s.handleCreateUser)
			r.Put("/{id}", s.authenticated(s.handleUpdateUser))
			r.Delete("/{id}", s.authenticated(s.handleDeleteUser))
		})

		r.NotFound(s.handleRouteNotFound)
		r.MethodNotAllowed(s.handleMethodNotAllowed)
	})

	r.MethodNotAllowed(s.handleMethodNotAllowed)
	if s.staticDir != "" {
		r.NotFound(s.handleStatic)
		return
	}
	r.NotFound(s.handleRouteNotFound)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.app.Health(r.Context())
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status, code := "OK", http.StatusOK
	if health.Database != "ok" {
		status, code = "DEGRADED", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    health.Uptime.Seconds(),
		"database":  health.Database,
		"memory": map[string]uint64{
			"alloc":     mem.Alloc,
			"heapInuse": mem.HeapInuse,
			"sys":       mem.Sys,
		},
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "📚 Book Review Platform API is running!",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"auth":    "/api/auth",
			"books":   "/api/books",
			"reviews": "/api/reviews",
			"users":   "/api/users",
			"health":  "/api/health",
		},
	})
}

func (s *Server) handleRouteNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", r.URL.Path))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// handleStatic serves the built frontend, falling back to index.html so
// client-side routes resolve.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.handleRouteNotFound(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.handleRouteNotFound(w, r)
		return
	}
	clean := path.Clean("/" + r.URL.Path)
	target := filepath.Join(s.staticDir, filepath.FromSlash(clean))
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		http.ServeFile(w, r, target)
		return
	}
	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.handleRouteNotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, index)
}
