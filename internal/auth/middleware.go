// internal/auth/middleware.go
// JWT verification middleware. The engine never issues tokens; it only
// authenticates requests signed by the platform's auth service.

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/pairupapp/pairup-backend/internal/common/utils"
)

// ContextKeyUserID is the request-context key handlers read the caller id from
const ContextKeyUserID = "userID"

// Middleware provides authentication middleware
type Middleware struct {
	secret string
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(secret string) *Middleware {
	return &Middleware{secret: secret}
}

// Authenticate verifies the bearer token and adds the user id to the request context
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.extractToken(r)
		if token == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
			return
		}

		claims, err := utils.ValidateJWT(token, m.secret)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if claims.Type != "access" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token type")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID extracts the authenticated user id from a request context
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(int64)
	return id, ok
}

func (m *Middleware) extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}
