package session

import (
	"github.com/gorilla/mux"

	"github.com/pairupapp/pairup-backend/internal/auth"
	"github.com/pairupapp/pairup-backend/internal/resilience"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware, limiter *resilience.RateLimiter) {
	api := router.PathPrefix("/api/v1/sessions").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("", handler.CreateSession).Methods("POST")
	api.HandleFunc("/{id}", handler.GetSession).Methods("GET")
	api.HandleFunc("/{id}/notes", handler.UpdateNotes).Methods("PUT")
	api.HandleFunc("/{id}/no-show", handler.MarkNoShow).Methods("POST")

	confirm := api.PathPrefix("/{id}/confirm").Subrouter()
	confirm.Use(resilience.RateLimitMiddleware(limiter, resilience.ClassConfirm))
	confirm.HandleFunc("", handler.ConfirmCompletion).Methods("POST")
}
