package handlers

import (
	"context"
	"net/http"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/security"
	"familytree/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	limiter     *security.RateLimiter
	log         *logger.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, limiter *security.RateLimiter, log *logger.Logger) *Middleware {
	return &Middleware{authService: authService, limiter: limiter, log: log}
}

// RequireAuth requires a valid bearer token and puts the user in the context
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := security.BearerToken(r)
		user, err := m.authService.Authenticate(token)
		if err != nil {
			respondError(w, m.log, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// RequireCapability requires an authenticated user whose role grants the
// capability. Wraps RequireAuth.
func (m *Middleware) RequireCapability(cap models.Capability, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || !user.HasCapability(cap) {
			respondError(w, m.log, apperr.Forbidden(
				"You do not have permission to do this", "ليس لديك صلاحية للقيام بذلك"))
			return
		}
		next(w, r)
	})
}

// RateLimit throttles by client IP. Applied to auth and public submission
// endpoints.
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow(security.GetClientIP(r)) {
			respondError(w, m.log, apperr.RateLimited())
			return
		}
		next(w, r)
	}
}

// Logging logs every request with its duration
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", recorder.status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
