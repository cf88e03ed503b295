// Package prom implements every [observability] hook interface with
// Prometheus collectors.
//
// Call [Register] once at startup, before any tracking or serving:
//
//	m := prom.Register(prometheus.DefaultRegisterer)
//	observability.SetTrackerHooks(m)
//	observability.SetPipelineHooks(m)
//	observability.SetCacheHooks(m)
//	observability.SetHTTPHooks(m)
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nikhilxb/xnode-db/pkg/observability"
)

const namespace = "xnode"

// Metrics holds the collectors behind the hooks.
type Metrics struct {
	opsRecorded       *prometheus.CounterVec
	containersBuilt   *prometheus.CounterVec
	containerSize     *prometheus.HistogramVec
	violations        prometheus.Counter
	runs              *prometheus.CounterVec
	runDuration       prometheus.Histogram
	runOps            prometheus.Histogram
	snapshotSymbols   prometheus.Histogram
	snapshotDuration  prometheus.Histogram
	renders           *prometheus.CounterVec
	renderDuration    prometheus.Histogram
	cacheRequests     *prometheus.CounterVec
	cacheBytesWritten *prometheus.CounterVec
	httpInFlight      prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// Register creates the collectors and registers them with reg.
// It panics if any collector is already registered.
func Register(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		opsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "ops_recorded_total",
			Help:      "Tracked function calls recorded",
		}, []string{"op"}),
		containersBuilt: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "containers_built_total",
			Help:      "Containers created by grouping",
		}, []string{"kind", "level"}),
		containerSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "container_size",
			Help:      "Number of members per new container",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"kind"}),
		violations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "grouping_rejected_total",
			Help:      "Grouping requests rejected for breaking nesting rules",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "runs_total",
			Help:      "Script runs by outcome",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "run_duration_seconds",
			Help:      "Script run latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		runOps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "run_ops",
			Help:      "Ops recorded per script run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		snapshotSymbols: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "snapshot_symbols",
			Help:      "Symbols per snapshot",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		snapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "snapshot_duration_seconds",
			Help:      "Snapshot build latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "renders_total",
			Help:      "Render calls by outcome",
		}, []string{"status"}),
		renderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Render latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by key type and result",
		}, []string{"key_type", "result"}),
		cacheBytesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache",
		}, []string{"key_type"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// =============================================================================
// Tracker
// =============================================================================

func (m *Metrics) OnOpRecorded(name string) {
	m.opsRecorded.WithLabelValues(name).Inc()
}

func (m *Metrics) OnContainerBuilt(kind string, level, size int) {
	m.containersBuilt.WithLabelValues(kind, strconv.Itoa(level)).Inc()
	m.containerSize.WithLabelValues(kind).Observe(float64(size))
}

func (m *Metrics) OnInvariantViolation(error) {
	m.violations.Inc()
}

// =============================================================================
// Pipeline
// =============================================================================

func (m *Metrics) OnRunStart(context.Context, string) {}

func (m *Metrics) OnRunComplete(_ context.Context, _ string, ops int, d time.Duration, err error) {
	m.runs.WithLabelValues(status(err)).Inc()
	m.runDuration.Observe(d.Seconds())
	m.runOps.Observe(float64(ops))
}

func (m *Metrics) OnSnapshot(_ context.Context, symbols int, d time.Duration) {
	m.snapshotSymbols.Observe(float64(symbols))
	m.snapshotDuration.Observe(d.Seconds())
}

func (m *Metrics) OnRenderStart(context.Context, []string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, _ []string, d time.Duration, err error) {
	m.renders.WithLabelValues(status(err)).Inc()
	m.renderDuration.Observe(d.Seconds())
}

// =============================================================================
// Cache
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheRequests.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheRequests.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheBytesWritten.WithLabelValues(keyType).Add(float64(size))
}

// =============================================================================
// HTTP
// =============================================================================

func (m *Metrics) OnRequest(context.Context, string, string) {
	m.httpInFlight.Inc()
}

func (m *Metrics) OnResponse(_ context.Context, method, route string, code int, d time.Duration) {
	m.httpInFlight.Dec()
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ observability.TrackerHooks  = (*Metrics)(nil)
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.HTTPHooks     = (*Metrics)(nil)
)
