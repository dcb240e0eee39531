package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carbonmarket-backend/internal/config"
	"carbonmarket-backend/internal/interfaces/router"
	"carbonmarket-backend/internal/logger"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logger.Setup(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Production: cfg.IsProduction()})

	app, store, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("store", store.Name()).Msg("Server running")
	log.Info().Msgf("Health check: http://localhost:%s/health/json", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(":" + cfg.Port) }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("listen")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}
}
