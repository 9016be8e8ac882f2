package matching

import (
	"github.com/gorilla/mux"

	"github.com/pairupapp/pairup-backend/internal/auth"
	"github.com/pairupapp/pairup-backend/internal/resilience"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware, limiter *resilience.RateLimiter) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(authMiddleware.Authenticate)

	find := api.PathPrefix("/find").Subrouter()
	find.Use(resilience.RateLimitMiddleware(limiter, resilience.ClassMatchCreate))
	find.HandleFunc("", handler.FindMatch).Methods("POST")

	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")
	api.HandleFunc("/matches/{id}/respond", handler.RespondToMatch).Methods("POST")
}
