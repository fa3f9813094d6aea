package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loglens/loglens/internal/adapter/plugin"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/logging"
	store "github.com/loglens/loglens/internal/repository"
	"github.com/loglens/loglens/internal/service"
	v1 "github.com/loglens/loglens/internal/transport/http/v1"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.Init(cfg.Logging)
	defer logger.Sync()

	logger.Infow("starting loglens",
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabaseDSN,
		"storage_dir", cfg.StorageDir,
		"plugins", cfg.Plugins,
	)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalw("failed to initialize store", "error", err)
	}
	defer db.Close()

	// Initialize enrichment stage clients
	stages := plugin.NewClients(cfg.Plugins, cfg.PluginTimeout)

	// Initialize service
	svc := service.New(db, stages, cfg, logger)

	// Initialize handler
	h := v1.NewHandler(svc)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()

	logger.Infow("loglens started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down loglens...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("failed to shutdown server gracefully", "error", err)
	}

	logger.Info("loglens stopped")
}
