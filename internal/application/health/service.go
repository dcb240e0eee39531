package health

import (
	"context"
	"encoding/json"
	"runtime"
	"sort"
	"strconv"
	"time"

	"carbonmarket-backend/internal/middleware"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
)

// StorePinger is the persistence backend being reported on.
type StorePinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Collaborator is an external HTTP dependency probed on every report.
type Collaborator struct {
	Name string
	URL  string
}

// Report is the /health/json payload.
type Report struct {
	Service      string               `json:"service"`
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	AllocMB    int `json:"allocMb"`
	HeapUsedMB int `json:"heapUsedMb"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string      `json:"status"`
	Kind   string      `json:"kind,omitempty"`
	PingMs interface{} `json:"pingMs"`
}

// Service gathers health data from the store, Redis and collaborators.
type Service struct {
	Store         StorePinger
	Redis         *redis.Client // optional
	Collaborators []Collaborator
	HTTP          *resty.Client
	Started       time.Time
}

func NewService(store StorePinger, rdb *redis.Client, timeout time.Duration, collaborators ...Collaborator) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{
		Store:         store,
		Redis:         rdb,
		Collaborators: collaborators,
		HTTP:          resty.New().SetTimeout(timeout),
		Started:       time.Now(),
	}
}

// Collect builds a report. Status is "ok" when the store answers and Redis,
// if configured, is reachable; otherwise "issue".
func (s *Service) Collect(ctx context.Context) Report {
	report := Report{
		Service:      "carbonmarket-api",
		Dependencies: make(map[string]DepStatus),
	}

	storeStatus := "disconnected"
	var storeMs *int64
	storeKind := ""
	if s.Store != nil {
		storeKind = s.Store.Name()
		start := time.Now()
		if err := s.Store.Ping(ctx); err == nil {
			ms := time.Since(start).Milliseconds()
			storeMs = &ms
			storeStatus = "connected"
		} else {
			storeStatus = "error"
		}
	}
	report.Dependencies["store"] = DepStatus{Status: storeStatus, Kind: storeKind, PingMs: storeMs}

	redisStatus := "disabled"
	var redisMs *int64
	traffic := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startMs := s.startedAt().UnixMilli()
	if s.Redis != nil {
		start := time.Now()
		if err := s.Redis.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisMs = &ms
			redisStatus = "connected"
			traffic, startMs = s.traffic(ctx, startMs)
		} else {
			redisStatus = "error"
		}
	}
	report.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisMs}
	report.Traffic = traffic

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := (time.Now().UnixMilli() - startMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	report.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		Memory:        MemoryInfo{AllocMB: int(m.Alloc / 1024 / 1024), HeapUsedMB: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	collaborators := append([]Collaborator(nil), s.Collaborators...)
	sort.Slice(collaborators, func(i, j int) bool { return collaborators[i].Name < collaborators[j].Name })
	for _, c := range collaborators {
		ms := s.ping(ctx, c.URL)
		status := "unreachable"
		if ms != nil {
			status = "reachable"
		}
		report.Dependencies[c.Name] = DepStatus{Status: status, PingMs: ms}
	}

	if storeStatus == "connected" && redisStatus != "error" {
		report.Status = "ok"
	} else {
		report.Status = "issue"
	}
	return report
}

func (s *Service) traffic(ctx context.Context, startMs int64) (TrafficInfo, int64) {
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	rdb := s.Redis

	totalReq, _ := rdb.Get(ctx, middleware.KeyReqTotal).Result()
	totalErr, _ := rdb.Get(ctx, middleware.KeyReqErrors).Result()
	totalTime, _ := rdb.Get(ctx, middleware.KeyResTime).Result()
	resCount, _ := rdb.Get(ctx, middleware.KeyResCount).Result()
	startStr, _ := rdb.Get(ctx, middleware.KeyStartTime).Result()
	lastReqStr, _ := rdb.Get(ctx, middleware.KeyLastReq).Result()

	if startStr != "" {
		if t, err := strconv.ParseInt(startStr, 10, 64); err == nil {
			startMs = t
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(totalReq)
	stats.FailedCount, _ = strconv.Atoi(totalErr)
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(totalTime, 64)
	countSum, _ := strconv.Atoi(resCount)
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if lastReqStr != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(lastReqStr), &lastReq)
		stats.LastRequest = lastReq
	}
	return stats, startMs
}

// Reset clears the traffic counters and restarts the uptime clock.
func (s *Service) Reset(ctx context.Context) error {
	if s.Redis == nil {
		return nil
	}
	keys := []string{middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq, middleware.KeyErrorLog}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return s.Redis.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err()
}

// Errors returns the most recent server errors, newest first.
func (s *Service) Errors(ctx context.Context) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0)
	if s.Redis == nil {
		return out, nil
	}
	entries, err := s.Redis.LRange(ctx, middleware.KeyErrorLog, 0, middleware.ErrorLogSize-1).Result()
	if err != nil {
		return out, err
	}
	for _, raw := range entries {
		var m map[string]interface{}
		if _ = json.Unmarshal([]byte(raw), &m); m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) startedAt() time.Time {
	if s.Started.IsZero() {
		return time.Now()
	}
	return s.Started
}

func (s *Service) ping(ctx context.Context, url string) *int64 {
	client := s.HTTP
	if client == nil {
		client = resty.New().SetTimeout(3 * time.Second)
	}
	start := time.Now()
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil || resp.StatusCode() >= 500 {
		return nil
	}
	ms := time.Since(start).Milliseconds()
	return &ms
}
