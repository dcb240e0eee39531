package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/metrics"
	"carbonmarket-backend/internal/pkg/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracing_SetsHeader(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = GetTraceID(c)
		return c.SendStatus(fiber.StatusOK)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, resp.Header.Get("X-Trace-Id"))
}

func TestTracing_KeepsCallerTraceID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	const id = "0b7c5e3a-3f0e-4a47-9d1f-2f6f6c2b7d11"
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceIDHeader, id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get(TraceIDHeader))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceIDHeader, "not-a-uuid")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(TraceIDHeader))
}

func TestErrorHandler_UsesEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Env("production"))
	app.Get("/missing", func(c *fiber.Ctx) error { return domain.NotFound("credit 3 not found") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db exploded") })

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	var body response.Body
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "credit 3 not found", body.Error)

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Internal Server Error", body.Error)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://market.example.org/"}}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://market.example.org")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://market.example.org", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCORS_Localhost(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowLocalhost: true}))
	app.Post("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestHealthMarker_CountsAndLogsErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Tracing())
	app.Use(HealthMarker(rdb))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/fail", func(c *fiber.Ctx) error {
		return response.FromError(c, domain.Persistence("update position", errors.New("disk full")))
	})
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendString("{}") })

	for _, path := range []string{"/ok", "/fail", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	ctx := context.Background()
	total, err := rdb.Get(ctx, KeyReqTotal).Result()
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	failed, err := rdb.Get(ctx, KeyReqErrors).Result()
	require.NoError(t, err)
	assert.Equal(t, "1", failed)

	entries, err := rdb.LRange(ctx, KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &entry))
	assert.Equal(t, "/fail", entry["path"])
	assert.Equal(t, float64(500), entry["status"])
	assert.Contains(t, entry["message"], "disk full")
	assert.NotEmpty(t, entry["traceId"])
}

func TestHealthMarker_TrimsErrorLog(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(HealthMarker(rdb))
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("boom") })
	for i := 0; i < ErrorLogSize+5; i++ {
		_, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
		require.NoError(t, err)
	}
	n, err := rdb.LLen(context.Background(), KeyErrorLog).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(ErrorLogSize), n)
}

func TestHealthMarker_NilRedis(t *testing.T) {
	app := fiber.New()
	app.Use(HealthMarker(nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestMetrics_LabelsByRoute(t *testing.T) {
	m := metrics.New()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Metrics(m))
	app.Get("/positions/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "0" {
			return domain.Validation("bad id")
		}
		return c.SendString("ok")
	})

	for _, path := range []string{"/positions/1", "/positions/2", "/positions/0", "/nowhere"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	expected := `
# HELP http_requests_total Total HTTP requests processed.
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/positions/:id",status="200"} 2
http_requests_total{method="GET",route="/positions/:id",status="400"} 1
http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "http_requests_total"))
}
