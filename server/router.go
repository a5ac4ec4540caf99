// Package server exposes the economy over HTTP and WebSocket.
package server

import (
	"net/http"
	"time"

	"apocaliptyx/server/common"
	"apocaliptyx/server/features/admin"
	"apocaliptyx/server/features/scenarios"
	"apocaliptyx/server/features/wallet"
	"apocaliptyx/server/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// WalletService combines the self-service and administrative wallet operations
type WalletService interface {
	wallet.Service
	admin.Service
}

// Dependencies are the services and collaborators the router serves
type Dependencies struct {
	Wallet        WalletService
	Scenarios     scenarios.ScenarioService
	Steals        scenarios.StealService
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter // nil disables rate limiting
	Hub           *WSHub                  // nil disables /api/v1/ws
	Health        func() error            // nil reports healthy
}

// NewRouter builds the HTTP handler
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				common.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", middleware.MetricsHandler())

	var limiter func(http.Handler) http.Handler
	if deps.RateLimiter != nil {
		limiter = deps.RateLimiter.Handler
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Hub != nil {
			r.Get("/ws", deps.Hub.HandleWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(30 * time.Second))
			r.Use(deps.Authenticator.Middleware)

			wallet.NewFeature(deps.Wallet).Routes(r)
			scenarios.NewFeature(deps.Scenarios, deps.Steals, limiter).Routes(r)
			admin.NewFeature(deps.Wallet).Routes(r)
		})
	})

	return r
}
