package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// AdminRateLimit is a coarse per-IP burst limiter for the admin API. It is
// unrelated to the abuse guard: the guard protects credential endpoints from
// brute force, this just keeps the reporting surface from being hammered.
func AdminRateLimit(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded"}`))
		}),
	)
}
