package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/LouisHart1808/Plutus/internal/api"
	"github.com/LouisHart1808/Plutus/internal/config"
	"github.com/LouisHart1808/Plutus/internal/currencies"
	"github.com/LouisHart1808/Plutus/internal/fx"
	"github.com/LouisHart1808/Plutus/internal/logger"
	"github.com/LouisHart1808/Plutus/internal/metrics"
	"github.com/LouisHart1808/Plutus/internal/models"
	"github.com/LouisHart1808/Plutus/internal/platform"
	"github.com/LouisHart1808/Plutus/internal/ratelimit"
	"github.com/LouisHart1808/Plutus/internal/refresh"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger and metrics
	appLogger := logger.New(cfg.LogLevel)
	metrics.Register()

	// Initialize services
	client := fx.NewClient(cfg, appLogger)
	controller := refresh.NewController(client, appLogger, models.NormalizeCode(cfg.BaseCurrency), cfg.RefreshInterval, cfg.MinRefreshInterval)
	rateLimiter := ratelimit.NewLimiter(cfg, appLogger)
	directory := currencies.NewDirectory()

	// Start the poll stream with the configured defaults
	controller.SetAutoRefresh(cfg.AutoRefreshEnabled, cfg.RefreshInterval)
	defaultSymbols := make([]models.CurrencyCode, 0, len(cfg.DefaultSymbols))
	for _, symbol := range cfg.DefaultSymbols {
		defaultSymbols = append(defaultSymbols, models.NormalizeCode(symbol))
	}
	controller.SetTrackedSymbols(defaultSymbols)

	// Initialize HTTP handlers
	handlers := api.NewHandlers(api.HandlerConfig{
		Configuration: cfg,
		Logger:        appLogger,
		Client:        client,
		Controller:    controller,
		Directory:     directory,
		RateLimiter:   rateLimiter,
	})

	// Setup Gin router
	router := handlers.SetupRoutes()

	// Setup HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Starting dashboard backend on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Create a shutdown context that works across platforms
	shutdownCtx, stop := platform.NewShutdownContext(context.Background())
	defer stop()
	<-shutdownCtx.Done()

	appLogger.Info("Shutting down server...")

	// Stop the refresh loop and rate limiter cleanup
	controller.Close()
	rateLimiter.Stop()

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server exited")
}
