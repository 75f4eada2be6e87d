package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/Priya8975/alert-notifications/internal/engine"
)

// rateLimitMiddleware answers 429 once a client IP exceeds limit requests
// per second. It expects middleware.RealIP to have run.
func rateLimitMiddleware(rl *engine.RateLimiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(r.Context(), clientIP(r), limit) {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
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
