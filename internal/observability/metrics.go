package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quakewatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard service.
type Metrics struct {
	// Upstream fetch metrics.
	FetchAttempts *prometheus.CounterVec   // labels: endpoint={earthquakes,detail,weather}, outcome={success,error}
	FetchDuration *prometheus.HistogramVec // labels: endpoint
	FetchRetries  *prometheus.CounterVec   // labels: endpoint

	// Response cache metrics.
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,expired}
	CacheEntries prometheus.Gauge

	// Refresh orchestration metrics.
	Refreshes           *prometheus.CounterVec // labels: trigger, state={success,degraded,failed}
	RefreshDuration     prometheus.Histogram
	EarthquakesFiltered prometheus.Gauge
	AutoRefreshRunning  prometheus.Gauge

	AlertsPublished prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchAttempts,
		m.FetchDuration,
		m.FetchRetries,
		m.CacheLookups,
		m.CacheEntries,
		m.Refreshes,
		m.RefreshDuration,
		m.EarthquakesFiltered,
		m.AutoRefreshRunning,
		m.AlertsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Upstream HTTP attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single upstream HTTP attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Backoff retries scheduled after a failed attempt.",
		}, []string{"endpoint"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries held by the in-memory response cache after the last sweep.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Completed dashboard refreshes by trigger and resulting state.",
		}, []string{"trigger", "state"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete refresh cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		EarthquakesFiltered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "earthquakes_filtered",
			Help:      "Earthquakes remaining after the current filters.",
		}),
		AutoRefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auto_refresh_running",
			Help:      "1 while the auto-refresh ticker is active, 0 while paused.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "High-magnitude alerts published.",
		}),
	}
}
