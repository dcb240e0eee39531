package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"carbonmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis keys shared with the health collector and reset endpoint.
const (
	KeyReqTotal  = "health:api:req_total"
	KeyReqErrors = "health:api:req_errors"
	KeyResTime   = "health:api:res_time_total"
	KeyResCount  = "health:api:res_count"
	KeyStartTime = "health:api:start_time"
	KeyLastReq   = "health:api:last_request"
	KeyErrorLog  = "health:api:error_log"
)

// ErrorLogSize is the number of 5xx entries kept in KeyErrorLog.
const ErrorLogSize = 50

// HealthMarker records request stats in Redis (skip /health*, /metrics, favicon).
// A nil client disables it.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if rdb == nil || strings.HasPrefix(path, "/health") || path == "/metrics" || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := context.Background()
		_, _ = rdb.Set(ctx, KeyLastReq, b, 0).Result()
		_, _ = rdb.Incr(ctx, KeyReqTotal).Result()

		err := c.Next()

		ms := time.Since(start).Milliseconds()
		status := statusOf(c, err)
		pipe := rdb.Pipeline()
		pipe.Incr(ctx, KeyResCount)
		pipe.IncrByFloat(ctx, KeyResTime, float64(ms))
		if status >= fiber.StatusInternalServerError {
			entry := map[string]interface{}{
				"time":    time.Now().UTC(),
				"path":    c.OriginalURL(),
				"method":  c.Method(),
				"status":  status,
				"traceId": GetTraceID(c),
			}
			if err != nil {
				entry["message"] = err.Error()
			} else if msg, ok := c.Locals(response.ErrorLocal).(string); ok {
				entry["message"] = msg
			}
			raw, _ := json.Marshal(entry)
			pipe.Incr(ctx, KeyReqErrors)
			pipe.LPush(ctx, KeyErrorLog, raw)
			pipe.LTrim(ctx, KeyErrorLog, 0, ErrorLogSize-1)
		}
		if _, perr := pipe.Exec(ctx); perr != nil {
			log.Warn().Err(perr).Msg("health marker: redis write failed")
		}
		return err
	}
}

// statusOf returns the status the response will carry once the error
// handler has run.
func statusOf(c *fiber.Ctx, err error) int {
	if err != nil {
		return response.StatusFor(err)
	}
	return c.Response().StatusCode()
}
