package middleware

import (
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/springmesh/apigw/internal/config"
	"github.com/springmesh/apigw/internal/observability"
)

// RateLimiter applies a global token bucket to inbound requests.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  observability.Logger
}

// RateLimiterOption is a functional option for configuring the rate limiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger for the rate limiter.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(rps, burst int, opts ...RateLimiterOption) *RateLimiter {
	if burst <= 0 {
		burst = rps
	}

	rl := &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// Allow checks if a request is allowed.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow() {
				rl.logger.Warn("request rate limited",
					observability.String("path", r.URL.Path),
					observability.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, `{"error":"rate limit exceeded"}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit builds the middleware from configuration. A nil or disabled
// configuration returns a pass-through.
func RateLimit(cfg *config.RateLimitConfig, logger observability.Logger) func(http.Handler) http.Handler {
	if cfg == nil || !cfg.Enabled || cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	rl := NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst,
		WithRateLimiterLogger(logger))
	return rl.Middleware()
}
