// Package metrics exposes Prometheus collectors for the collection pipeline
// and the dashboard query cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. All methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	SymbolsTotal  *prometheus.CounterVec // labels: result=success|failure
	FetchErrors   *prometheus.CounterVec // labels: reason
	FetchDur      prometheus.Histogram
	StoreDur      prometheus.Histogram
	BarsStored    prometheus.Counter
	OversoldLast  prometheus.Gauge
	LastRunUnix   prometheus.Gauge
	CacheRequests *prometheus.CounterVec // labels: query, result=hit|miss
}

// NewMetrics creates the metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reversal_symbols_collected_total",
			Help: "Symbols processed by the collector, by result",
		}, []string{"result"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reversal_fetch_errors_total",
			Help: "Market data fetch failures, by reason",
		}, []string{"reason"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reversal_fetch_duration_seconds",
			Help:    "Market data fetch latency including the rate gate wait",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 20, 30, 60},
		}),
		StoreDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reversal_store_duration_seconds",
			Help:    "SQLite replace and marker update latency",
			Buckets: prometheus.DefBuckets,
		}),
		BarsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reversal_bars_stored_total",
			Help: "Enriched bars written to the store",
		}),
		OversoldLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reversal_oversold_symbols",
			Help: "Symbols whose latest bar was oversold in the last run",
		}),
		LastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reversal_last_run_timestamp_seconds",
			Help: "Unix time of the last completed collection run",
		}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reversal_cache_requests_total",
			Help: "Dashboard query cache lookups, by query and result",
		}, []string{"query", "result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SymbolsTotal,
		m.FetchErrors,
		m.FetchDur,
		m.StoreDur,
		m.BarsStored,
		m.OversoldLast,
		m.LastRunUnix,
		m.CacheRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one fetch call. An empty reason means success.
func (m *Metrics) ObserveFetch(d time.Duration, reason string) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
	if reason != "" {
		m.FetchErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveStore records one store write.
func (m *Metrics) ObserveStore(d time.Duration, bars int, err error) {
	if m == nil {
		return
	}
	m.StoreDur.Observe(d.Seconds())
	if err == nil {
		m.BarsStored.Add(float64(bars))
	}
}

// ObserveOutcome counts one processed symbol.
func (m *Metrics) ObserveOutcome(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.SymbolsTotal.WithLabelValues(result).Inc()
}

// ObserveRun records the end of a collection run.
func (m *Metrics) ObserveRun(oversold int) {
	if m == nil {
		return
	}
	m.OversoldLast.Set(float64(oversold))
	m.LastRunUnix.Set(float64(time.Now().Unix()))
}

// ObserveCache counts one cache lookup.
func (m *Metrics) ObserveCache(query string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(query, result).Inc()
}
