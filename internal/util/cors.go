package util

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when no origin is configured.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// WithCORS returns CORS middleware for an explicit origin allow-list.
// Credentials are allowed, so wildcard origins are dropped.
func WithCORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	seen := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || o == "*" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		allowed = append(allowed, o)
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowedOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
