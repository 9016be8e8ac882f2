// internal/resilience/middleware.go
// HTTP middleware applying the per-class rate limiter to a route.

package resilience

import (
	"net/http"
	"strconv"

	"github.com/pairupapp/pairup-backend/internal/auth"
	"github.com/pairupapp/pairup-backend/internal/common/utils"
)

// RateLimitMiddleware rejects requests for the given operation class when the
// caller's bucket is empty, with a Retry-After hint. The bucket key is the
// authenticated user when present, falling back to the remote address.
func RateLimitMiddleware(limiter *RateLimiter, class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if userID, ok := auth.UserID(r.Context()); ok {
				key = strconv.FormatInt(userID, 10)
			}

			res := limiter.Allow(class, key)
			if !res.Allowed {
				seconds := int(res.RetryAfter.Seconds() + 0.999)
				utils.RespondWithRetryAfter(w, seconds, "Rate limit exceeded, slow down")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
