// Package metrics implements the observability hooks with Prometheus.
package metrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gpmc-lab-ufrgs/atlas/pkg/observability"
)

var (
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_events_total",
		Help: "Engine events handled, by kind and status",
	}, []string{"kind", "status"})
	EventDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_event_duration_ms",
		Help:    "Engine event handling duration in milliseconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
	}, []string{"kind"})
	DirectivesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_directives_total",
		Help: "Directives issued to effect sinks, by kind",
	}, []string{"kind"})
	SinkPanicsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_sink_panics_total",
		Help: "Effect sink panics recovered by the engine, by directive kind",
	}, []string{"kind"})
	ComparisonSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "atlas_comparison_size",
		Help:    "Comparison set size after each change",
		Buckets: []float64{0, 1, 2, 3, 4},
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_hits_total",
		Help: "Dataset cache hits",
	}, []string{"type"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_misses_total",
		Help: "Dataset cache misses",
	}, []string{"type"})
	CacheBytesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_cache_written_bytes_total",
		Help: "Bytes written to the dataset cache",
	}, []string{"type"})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_http_requests_total",
		Help: "HTTP requests handled, by method, route and status",
	}, []string{"method", "route", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atlas_fetches_total",
		Help: "Dataset fetches, by host and outcome",
	}, []string{"host", "outcome"})
	FetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atlas_fetch_duration_ms",
		Help:    "Dataset fetch duration in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 30000},
	}, []string{"host"})
	LiveViews = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "atlas_live_views",
		Help: "Mounted map views",
	}, func() float64 {
		if count := viewCounter.Load(); count != nil {
			return float64((*count)())
		}
		return 0
	})
)

var viewCounter atomic.Pointer[func() int]

func init() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventDurationMs)
	prometheus.MustRegister(DirectivesTotal)
	prometheus.MustRegister(SinkPanicsTotal)
	prometheus.MustRegister(ComparisonSize)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheBytesWritten)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(FetchesTotal)
	prometheus.MustRegister(FetchDurationMs)
	prometheus.MustRegister(LiveViews)
}

// TrackViews makes the live view gauge report count at scrape time.
func TrackViews(count func() int) { viewCounter.Store(&count) }

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }

// Register installs the Prometheus hooks in pkg/observability.
func Register() {
	observability.SetEngineHooks(EngineHooks{})
	observability.SetCacheHooks(CacheHooks{})
	observability.SetHTTPHooks(HTTPHooks{})
}

// EngineHooks records engine events.
type EngineHooks struct{}

func (EngineHooks) OnEvent(_ context.Context, kind string, _ int, status string, d time.Duration) {
	if status == "" {
		status = "ok"
	}
	EventsTotal.WithLabelValues(kind, status).Inc()
	EventDurationMs.WithLabelValues(kind).Observe(ms(d))
}

func (EngineHooks) OnDirective(_ context.Context, kind string) {
	DirectivesTotal.WithLabelValues(kind).Inc()
}

func (EngineHooks) OnSinkPanic(_ context.Context, kind string) {
	SinkPanicsTotal.WithLabelValues(kind).Inc()
}

func (EngineHooks) OnComparisonSize(_ context.Context, size int) {
	ComparisonSize.Observe(float64(size))
}

// CacheHooks records cache traffic.
type CacheHooks struct{}

func (CacheHooks) OnCacheHit(_ context.Context, keyType string) {
	CacheHitsTotal.WithLabelValues(keyType).Inc()
}

func (CacheHooks) OnCacheMiss(_ context.Context, keyType string) {
	CacheMissesTotal.WithLabelValues(keyType).Inc()
}

func (CacheHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	CacheBytesWritten.WithLabelValues(keyType).Add(float64(size))
}

// HTTPHooks records served requests and outgoing fetches.
type HTTPHooks struct{}

func (HTTPHooks) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	RequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	RequestDurationMs.WithLabelValues(route).Observe(ms(d))
}

func (HTTPHooks) OnFetch(_ context.Context, host string, status int, d time.Duration, err error) {
	outcome := statusClass(status)
	if err != nil {
		outcome = "error"
	}
	FetchesTotal.WithLabelValues(host, outcome).Inc()
	FetchDurationMs.WithLabelValues(host).Observe(ms(d))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// statusClass collapses a status code to "2xx", "4xx", ... to bound label
// cardinality.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return string(rune('0'+code/100)) + "xx"
}

var (
	_ observability.EngineHooks = EngineHooks{}
	_ observability.CacheHooks  = CacheHooks{}
	_ observability.HTTPHooks   = HTTPHooks{}
)
