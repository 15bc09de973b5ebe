package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radar_feed"

// Metrics holds the Prometheus counters, histograms, and gauges for the radar client.
type Metrics struct {
	// Scan pipeline metrics.
	ScanRequests       *prometheus.CounterVec // labels: result={hit,miss,error}
	ScanFetchDuration  prometheus.Histogram
	CacheEvictions     prometheus.Counter
	CacheEvictionError prometheus.Counter

	// Live scan notifier metrics.
	NotifierPolls *prometheus.CounterVec // labels: outcome={unchanged,new,error}
	NewScans      prometheus.Counter

	// Socket client metrics.
	SocketState      prometheus.Gauge // 0 disconnected, 1 connecting, 2 connected
	SocketReconnects prometheus.Counter
	SocketMessages   *prometheus.CounterVec // labels: kind={heartbeat,data}

	// Coordinate transform metrics.
	TransformDuration   prometheus.Histogram
	TransformQueueDepth prometheus.Gauge

	// Overlay metrics.
	OverlayCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all client metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.ScanRequests,
		m.ScanFetchDuration,
		m.CacheEvictions,
		m.CacheEvictionError,
		m.NotifierPolls,
		m.NewScans,
		m.SocketState,
		m.SocketReconnects,
		m.SocketMessages,
		m.TransformDuration,
		m.TransformQueueDepth,
		m.OverlayCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		ScanRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_requests_total",
			Help:      help("Scan requests by cache result."),
		}, []string{"result"}),
		ScanFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_fetch_duration_seconds",
			Help:      help("Duration of scan body downloads on cache miss."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      help("Cache namespaces deleted by the retention sweep."),
		}),
		CacheEvictionError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_eviction_errors_total",
			Help:      help("Retention sweeps that failed."),
		}),
		NotifierPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_polls_total",
			Help:      help("Latest-scan polls by outcome."),
		}, []string{"outcome"}),
		NewScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_scans_total",
			Help:      help("New scan timestamps detected by the notifier."),
		}),
		SocketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "socket_state",
			Help:      help("0 disconnected, 1 connecting, 2 connected."),
		}),
		SocketReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_reconnects_total",
			Help:      help("Reconnect attempts scheduled after transport interruptions."),
		}),
		SocketMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_messages_total",
			Help:      help("Inbound socket messages by kind."),
		}, []string{"kind"}),
		TransformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      help("Duration of azimuth/range to lon/lat grid transforms."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		TransformQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transform_queue_depth",
			Help:      help("Transform requests waiting for the worker."),
		}),
		OverlayCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_cache_total",
			Help:      help("GeoJSON overlay cache lookups by result."),
		}, []string{"result"}),
	}
}
