// Package metrics holds the prometheus collectors for one app instance.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several apps (tests, serverless warm
// starts) never collide on the default one. A nil *Metrics is a no-op.
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	lendingOps   *prometheus.CounterVec
	trades       prometheus.Counter
	tradedVolume prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		lendingOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_operations_total",
			Help: "Lending lifecycle operations by outcome.",
		}, []string{"operation", "result"}),
		trades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_trades_total",
			Help: "Marketplace purchases settled.",
		}),
		tradedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_traded_credits_total",
			Help: "Credits moved through marketplace purchases.",
		}),
	}
	registry.MustRegister(
		m.requests, m.durations, m.lendingOps, m.trades, m.tradedVolume,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, status).Inc()
	m.durations.WithLabelValues(method, route).Observe(seconds)
}

// ObserveLending counts one lending operation; result is "ok" or an error kind.
func (m *Metrics) ObserveLending(operation, result string) {
	if m == nil {
		return
	}
	m.lendingOps.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) ObserveTrade(amount float64) {
	if m == nil {
		return
	}
	m.trades.Inc()
	m.tradedVolume.Add(amount)
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
