package reputation

import (
	"github.com/gorilla/mux"

	"github.com/pairupapp/pairup-backend/internal/auth"
	"github.com/pairupapp/pairup-backend/internal/resilience"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware, limiter *resilience.RateLimiter) {
	api := router.PathPrefix("/api/v1/reputation").Subrouter()
	api.Use(authMiddleware.Authenticate)
	api.Use(resilience.RateLimitMiddleware(limiter, resilience.ClassReputationRead))

	api.HandleFunc("/{userId}", handler.GetReputation).Methods("GET")
}
