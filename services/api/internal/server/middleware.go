package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"bookreview/internal/ratelimit"
	"bookreview/internal/util"
	"bookreview/pkg/domain"
	"bookreview/services/api/internal/app"
	"bookreview/services/api/internal/security"
)

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

// authenticated resolves the bearer token before calling next.
func (s *Server) authenticated(next authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAppError(w, r, app.ErrUnauthenticated)
			return
		}
		user, ok := s.app.UserFromToken(r.Context(), token)
		if !ok {
			s.audit(r, security.EventAuthorize, security.OutcomeFail)
			writeAppError(w, r, app.ErrInvalidToken)
			return
		}
		next(w, r, user)
	}
}

// rateLimit counts requests per client IP and rejects them once the window's
// quota is spent. Limiter failures reject the request.
func (s *Server) rateLimit(limiter *ratelimit.FixedWindowLimiter, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			decision, err := limiter.Allow(r.Context(), util.ClientIP(r, s.trusted))
			if err != nil {
				util.LoggerFromContext(r.Context()).Error("rate limiter unavailable", "err", err)
			}
			reset := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
			if reset < 0 {
				reset = 0
			}
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(reset))
			if !decision.Allowed {
				s.audit(r, security.EventRequest, security.OutcomeRateLimited)
				h.Set("Retry-After", strconv.Itoa(reset))
				writeError(w, http.StatusTooManyRequests, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// audit logs a security event and feeds the per-client alert counters.
func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trusted)
	logger := util.LoggerFromContext(r.Context())
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == security.OutcomeSuccess {
		logger.Info("security_event", logAttrs...)
	} else {
		logger.Warn("security_event", logAttrs...)
	}

	res, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert counter unavailable", "err", err)
		return
	}
	if res.Triggered {
		logger.Error("security_alert", append(logAttrs,
			"count", res.Count,
			"threshold", res.Threshold,
			"window", res.Window.String(),
		)...)
	}
}
