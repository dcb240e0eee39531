package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"carbonmarket-backend/bootstrap"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"
)

var (
	bootOnce sync.Once
	bootErr  error
	serve    http.HandlerFunc
)

func boot() {
	var app *fiber.App
	app, bootErr = bootstrap.New()
	if bootErr != nil {
		log.Error().Err(bootErr).Msg("app create failed")
		return
	}
	serve = adaptor.FiberApp(app)
}

// Handler is the serverless entry point. The app is built on the first
// request; a failed boot answers every request with 503.
func Handler(w http.ResponseWriter, r *http.Request) {
	bootOnce.Do(boot)
	if bootErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "service unavailable"})
		return
	}
	r.RequestURI = r.URL.String()
	serve(w, r)
}
