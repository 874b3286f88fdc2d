package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/example/venue-booking/internal/application"
)

// AdminTokenHeader carries the admin credential on import routes.
const AdminTokenHeader = "X-Admin-Token"

// AdminVerifier checks an admin credential.
type AdminVerifier interface {
	VerifyAdmin(ctx context.Context, token string) error
}

// AdminTokenHash verifies tokens against a stored bcrypt or argon2id hash.
type AdminTokenHash string

// VerifyAdmin implements AdminVerifier.
func (h AdminTokenHash) VerifyAdmin(_ context.Context, token string) error {
	return application.VerifyAdminToken(string(h), token)
}

// RequireAdmin rejects requests without a valid admin token.
func RequireAdmin(verifier AdminVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(AdminTokenHeader))
			if token == "" {
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "UNAUTHORIZED", Message: errMissingAdminAuth.Error()})
				return
			}
			if verifier == nil {
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "admin verification is not configured"})
				return
			}

			if err := verifier.VerifyAdmin(r.Context(), token); err != nil {
				if errors.Is(err, application.ErrUnauthorized) {
					responder.loggerFor(r.Context()).WarnContext(r.Context(), "admin token rejected")
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "UNAUTHORIZED", Message: "not authorised"})
					return
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "admin token verification failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger attaches a request scoped logger to the context and logs the
// outcome of every request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

const visitorIdleTimeout = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter hands out one token bucket per client address.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func newIPRateLimiter(perMinute int, now func() time.Time) *ipRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		now:      now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		l.sweepLocked(now)
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) sweepLocked(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorIdleTimeout {
			delete(l.visitors, ip)
		}
	}
}

// RateLimit throttles each client address to perMinute requests. A
// non-positive limit disables throttling.
func RateLimit(perMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	return rateLimit(perMinute, logger, nil, errorResponse{ErrorCode: "RATE_LIMITED", Message: "too many requests"})
}

// ConflictRateLimit is RateLimit answering in the conflict endpoint's
// {ok, error} shape.
func ConflictRateLimit(perMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	return rateLimit(perMinute, logger, nil, conflictsFailure{Error: tooManyRequestsMessage})
}

func rateLimit(perMinute int, logger *slog.Logger, now func() time.Time, rejected any) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	responder := newResponder(logger)
	limiter := newIPRateLimiter(perMinute, now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.allow(ip) {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "rate limit exceeded", "client_ip", ip)
				w.Header().Set("Retry-After", "60")
				responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, rejected)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
