package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/config"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/container"
	"github.com/gdugdh24/kindred-backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", true)
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Setup(cfg.Logging.Level, cfg.Server.IsDevelopment())
	if !cfg.Server.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependency injection container
	app, err := container.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Server.Start()
	}()

	log.Info().
		Str("env", cfg.Server.Env).
		Str("storage", cfg.Storage.Type).
		Msg("Server started, press Ctrl+C to stop")

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			exitCode = 1
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error closing application")
		exitCode = 1
	}

	log.Info().Msg("Server exited")
	os.Exit(exitCode)
}
