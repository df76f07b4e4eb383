package main

import (
	"net/http"
	"time"

	"github.com/ftpledger/ledger-api/internal/api"
	apiMiddleware "github.com/ftpledger/ledger-api/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter creates the router with every route and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)

	transferHandler := api.NewTransferHandler(app.transferService, app.logger)
	accountHandler := api.NewAccountHandler(app.accountService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/transfers", func(r chi.Router) {
			r.With(app.idempotency()).Post("/", transferHandler.CreateTransfer)
			r.Get("/", transferHandler.ListTransfers)
			r.Get("/{id}", transferHandler.GetTransfer)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", accountHandler.CreateAccount)
			r.Get("/", accountHandler.ListAccounts)
			r.Get("/{id}", accountHandler.GetAccount)
			r.Delete("/{id}", accountHandler.DeleteAccount)
			r.Get("/{id}/transfers", transferHandler.ListAccountTransfers)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

// idempotency returns the Redis-backed middleware, or a no-op without Redis.
func (app *application) idempotency() func(http.Handler) http.Handler {
	if app.redis == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	ttl := time.Duration(app.config.Redis.IdempotencyTTLMinutes) * time.Minute
	return apiMiddleware.NewIdempotency(app.redis, ttl, app.logger).Handler
}
