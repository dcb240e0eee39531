package bootstrap

import (
	"carbonmarket-backend/internal/config"
	"carbonmarket-backend/internal/interfaces/router"
	"carbonmarket-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// New builds the app for serverless hosting. Logs go to stdout as JSON; the
// log file and the graceful shutdown in cmd/api do not apply there.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(logger.Options{Level: cfg.LogLevel, Production: true})
	app, store, _, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("store", store.Name()).Str("env", cfg.Env).Msg("serverless app ready")
	return app, nil
}
