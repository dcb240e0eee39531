package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carbonmarket-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	name string
	err  error
}

func (s stubStore) Name() string                   { return s.name }
func (s stubStore) Ping(ctx context.Context) error { return s.err }

func newRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb
}

func TestCollect_NoStoreNoRedis(t *testing.T) {
	s := NewService(nil, nil, time.Second)
	report := s.Collect(context.Background())
	assert.Equal(t, "issue", report.Status)
	assert.Equal(t, "disconnected", report.Dependencies["store"].Status)
	assert.Equal(t, "disabled", report.Dependencies["redis"].Status)
	assert.Equal(t, 0, report.Traffic.TotalRequests)
	assert.Equal(t, "100", report.Traffic.SuccessRate)
}

func TestCollect_StoreOnly(t *testing.T) {
	s := NewService(stubStore{name: "file"}, nil, time.Second)
	report := s.Collect(context.Background())
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "connected", report.Dependencies["store"].Status)
	assert.Equal(t, "file", report.Dependencies["store"].Kind)
}

func TestCollect_StoreError(t *testing.T) {
	s := NewService(stubStore{name: "database", err: errors.New("refused")}, nil, time.Second)
	report := s.Collect(context.Background())
	assert.Equal(t, "issue", report.Status)
	assert.Equal(t, "error", report.Dependencies["store"].Status)
}

func TestCollect_Traffic(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	s := NewService(stubStore{name: "database"}, rdb, time.Second)

	report := s.Collect(ctx)
	assert.Equal(t, "connected", report.Dependencies["redis"].Status)
	assert.Equal(t, "ok", report.Status)

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyReqErrors, "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResTime, "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResCount, "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyStartTime, "1000000", 0).Err())

	report = s.Collect(ctx)
	assert.Equal(t, 10, report.Traffic.TotalRequests)
	assert.Equal(t, 2, report.Traffic.FailedCount)
	assert.Equal(t, 8, report.Traffic.SuccessCount)
	assert.Equal(t, "80.0", report.Traffic.SuccessRate)
	assert.Equal(t, "15.05", report.Traffic.AvgResponseTime)
}

func TestCollect_Collaborators(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	s := NewService(stubStore{name: "file"}, nil, time.Second,
		Collaborator{Name: "ipfs", URL: up.URL},
		Collaborator{Name: "scorer", URL: down.URL},
	)
	report := s.Collect(context.Background())
	assert.Equal(t, "reachable", report.Dependencies["ipfs"].Status)
	assert.NotNil(t, report.Dependencies["ipfs"].PingMs)
	assert.Equal(t, "unreachable", report.Dependencies["scorer"].Status)
	assert.Equal(t, "ok", report.Status)
}

func TestResetAndErrors(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	s := NewService(stubStore{name: "file"}, rdb, time.Second)

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "5", 0).Err())
	require.NoError(t, rdb.LPush(ctx, middleware.KeyErrorLog, `{"path":"/api/v1/credits","status":500}`, "not json").Err())

	entries, err := s.Errors(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/v1/credits", entries[0]["path"])

	require.NoError(t, s.Reset(ctx))
	_, err = rdb.Get(ctx, middleware.KeyReqTotal).Result()
	assert.ErrorIs(t, err, redis.Nil)
	_, err = rdb.Get(ctx, middleware.KeyStartTime).Result()
	assert.NoError(t, err)

	entries, err = s.Errors(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestErrors_NoRedis(t *testing.T) {
	s := NewService(nil, nil, 0)
	entries, err := s.Errors(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.NoError(t, s.Reset(context.Background()))
}
