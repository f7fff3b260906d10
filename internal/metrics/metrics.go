package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/quarry/internal/version"
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	buildInfo      *prometheus.GaugeVec

	ratelimitDeniedTotal prometheus.Counter
	authDeniedTotal      *prometheus.CounterVec

	contentSource          *prometheus.GaugeVec
	contentSnapshotInfo    *prometheus.GaugeVec
	contentLoadedTimestamp prometheus.Gauge
	contentPages           prometheus.Gauge

	reloadsTotal      prometheus.Counter
	reloadErrorsTotal *prometheus.CounterVec
	reloadDuration    prometheus.Histogram

	profilingActive prometheus.Gauge
}

// New returns a fresh registry plus the standard collectors. HTTP
// metrics carry safe labels only (method, route, code) to avoid
// path cardinality explosions.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 52428800},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		authDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_auth_denied_total",
			Help: "Total denied panel authentications by reason",
		}, []string{"reason"}),
		contentSource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_source_info",
			Help: "Current content source (label carries value, gauge is always 1)",
		}, []string{"source"}),
		contentSnapshotInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_snapshot_info",
			Help: "Currently active content snapshot (label carries identity, value is always 1)",
		}, []string{"hash"}),
		contentLoadedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix timestamp of when the current content snapshot was loaded",
		}),
		contentPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_pages",
			Help: "Number of pages in the active snapshot, drafts included",
		}),
		reloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "content_reloads_total",
			Help: "Total number of successful content reloads",
		}),
		reloadErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_reload_errors_total",
			Help: "Total content reload failures by type",
		}, []string{"type"}),
		reloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "content_reload_duration_seconds",
			Help:    "Time to load and validate a content snapshot",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.errorsTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.authDeniedTotal,
		m.contentSource,
		m.contentSnapshotInfo,
		m.contentLoadedTimestamp,
		m.contentPages,
		m.reloadsTotal,
		m.reloadErrorsTotal,
		m.reloadDuration,
		m.profilingActive,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi *version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncAuthDenied(reason string) {
	m.authDeniedTotal.WithLabelValues(reason).Inc()
}

func (m *ServerMetrics) SetContentSource(source string) {
	m.contentSource.Reset() // clear previous label value
	m.contentSource.WithLabelValues(source).Set(1)
}

// SetSnapshot records the identity and shape of the active snapshot.
func (m *ServerMetrics) SetSnapshot(hash string, loadedAt time.Time, pages int) {
	m.contentSnapshotInfo.Reset()
	m.contentSnapshotInfo.WithLabelValues(hash).Set(1)
	m.contentLoadedTimestamp.Set(float64(loadedAt.Unix()))
	m.contentPages.Set(float64(pages))
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

// ReloadSucceeded and ReloadFailed implement the content watcher's
// metrics hook.
func (m *ServerMetrics) ReloadSucceeded(d time.Duration) {
	m.reloadsTotal.Inc()
	m.reloadDuration.Observe(d.Seconds())
}

func (m *ServerMetrics) ReloadFailed(reason string) {
	m.reloadErrorsTotal.WithLabelValues(reason).Inc()
}
