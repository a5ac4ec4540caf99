package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"apocaliptyx/application"
	"apocaliptyx/config"
	"apocaliptyx/domain/events"
	"apocaliptyx/infrastructure/observability"
	"apocaliptyx/server"
	"apocaliptyx/server/middleware"

	log "github.com/sirupsen/logrus"
)

const devJWTSecret = "apocaliptyx-dev-secret"

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	configureLogging(cfg)

	log.Println("Starting apocaliptyx...")

	// Initialize metrics
	log.Println("Initializing OpenTelemetry metrics...")
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	log.Println("Metrics initialized successfully")

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	// WebSocket hub
	hub := server.NewWSHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	for _, eventType := range events.ScenarioEventTypes() {
		a.uowFactory.RegisterLocalHandler(eventType, hub.HandleEvent)
	}

	// Pool reconciliation
	log.Println("Starting pool reconciliation worker...")
	worker := application.NewPoolReconcileWorker(a.scenarios, cfg.PoolRecalcSchedule)
	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start pool reconciliation worker: %w", err)
	}
	defer worker.Stop()

	// Rate limiting
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	limiter.StartCleanup(time.Minute, stopCleanup)

	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}

	handler := server.NewRouter(server.Dependencies{
		Wallet:        a.wallet,
		Scenarios:     a.scenarios,
		Steals:        a.steals,
		Authenticator: middleware.NewAuthenticator(secret),
		RateLimiter:   limiter,
		Hub:           hub,
		Health:        a.health,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	log.Printf("Server is running in %s mode...", cfg.Environment)
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics: %v", err)
	}

	log.Println("Shutdown completed")
	return nil
}
