package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvillareal/intake-scheduler/cmd/mainconfig"
	"github.com/mvillareal/intake-scheduler/internal/api/router"
	"github.com/mvillareal/intake-scheduler/internal/http/handlers"
	"github.com/mvillareal/intake-scheduler/pkg/logging"
)

func main() {
	ctx := context.Background()

	app, err := mainconfig.Build(ctx)
	if err != nil {
		logging.Default().Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger := app.Logger
	logger.Info("starting intake-scheduler API server",
		"env", app.Cfg.Env,
		"port", app.Cfg.Port,
		"categories", app.Registry.Len(),
	)

	// Initialize handlers
	submissionHandler := handlers.NewSubmissionHandler(app.Incremental, app.Registry, logger)
	adminHandler := handlers.NewAdminHandler(app.Nightly, app.Integrity, app.Quota, app.States, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:            logger,
		SubmissionHandler: submissionHandler,
		AdminHandler:      adminHandler,
		AdminAuthSecret:   app.Cfg.AdminJWTSecret,
		MetricsHandler:    promhttp.Handler(),
		WebhookRate:       5,
		WebhookBurst:      10,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + app.Cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
