package middleware

import (
	"net/http"

	"github.com/opsdeck/authguard/internal/guard"
	pkghttp "github.com/opsdeck/authguard/pkg/http"
)

const blockedMessage = "Too many failed attempts. Please try again later."

// Admission gates authentication routes behind the abuse guard. A blocked
// client gets a 429 with Retry-After; a client crossing the attempt ceiling
// is blocked on the spot. The handler behind this middleware only ever sees
// admitted requests.
func Admission(g *guard.Guard) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := g.CheckAndTrack(r)
			if decision.Blocked {
				pkghttp.WriteBlocked(w, int64(decision.RetryAfter.Seconds()), blockedMessage)
				return
			}

			if decision.Count > g.Config().MaxAttempts {
				g.OnLimitExceeded(r)
				pkghttp.WriteBlocked(w, int64(g.Config().Block.Seconds()), blockedMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
