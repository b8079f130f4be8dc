package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aitools"

// PrometheusRecorder implements Recorder on a dedicated Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	sessionResolutions *prometheus.CounterVec
	gateRedirects      *prometheus.CounterVec
	rateLimited        *prometheus.CounterVec

	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	creditsDebited     *prometheus.CounterVec

	usagePublished     *prometheus.CounterVec
	usageProcessed     *prometheus.CounterVec
	usageBatchSize     prometheus.Histogram
	usageBatchDuration prometheus.Histogram
	usageQueueDepth    prometheus.Gauge
	usageIngestLag     prometheus.Histogram
}

// NewPrometheus builds a recorder with its own registry, including the
// process and Go runtime collectors.
func NewPrometheus() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),

		sessionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "session_resolutions_total",
			Help:      "Session resolutions by resulting state.",
		}, []string{"state"}),
		gateRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "redirects_total",
			Help:      "Redirects issued by the session gate.",
		}, []string{"target"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"scope"}),

		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation requests by feature and outcome.",
		}, []string{"feature", "outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "backend_duration_seconds",
			Help:      "Latency of generation backend calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"feature"}),
		creditsDebited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "debited_total",
			Help:      "Credits debited per pool.",
		}, []string{"pool"}),

		usagePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "events_published_total",
			Help:      "Usage events published to the stream.",
		}, []string{"status"}),
		usageProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "events_processed_total",
			Help:      "Usage events handled by the worker.",
		}, []string{"status"}),
		usageBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "batch_size",
			Help:      "Number of events per processed batch.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		usageBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "batch_duration_seconds",
			Help:      "Time spent inserting a batch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		usageQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "queue_depth",
			Help:      "Length of the usage event stream.",
		}),
		usageIngestLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "ingest_lag_seconds",
			Help:      "Delay between event occurrence and persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	p.registry.MustRegister(
		p.httpRequests,
		p.httpDuration,
		p.sessionResolutions,
		p.gateRedirects,
		p.rateLimited,
		p.generations,
		p.generationDuration,
		p.creditsDebited,
		p.usagePublished,
		p.usageProcessed,
		p.usageBatchSize,
		p.usageBatchDuration,
		p.usageQueueDepth,
		p.usageIngestLag,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return p
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncSessionResolution(state string) {
	p.sessionResolutions.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) IncGateRedirect(target string) {
	p.gateRedirects.WithLabelValues(target).Inc()
}

func (p *PrometheusRecorder) IncRateLimited(scope string) {
	p.rateLimited.WithLabelValues(scope).Inc()
}

func (p *PrometheusRecorder) IncGeneration(feature, outcome string) {
	p.generations.WithLabelValues(feature, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveGenerationDuration(feature string, duration time.Duration) {
	p.generationDuration.WithLabelValues(feature).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) AddCreditsDebited(pool string, amount int) {
	if amount > 0 {
		p.creditsDebited.WithLabelValues(pool).Add(float64(amount))
	}
}

func (p *PrometheusRecorder) IncUsageEventPublished(status string) {
	p.usagePublished.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncUsageEventProcessed(status string) {
	p.usageProcessed.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveUsageBatchSize(size int) {
	p.usageBatchSize.Observe(float64(size))
}

func (p *PrometheusRecorder) ObserveUsageBatchDuration(duration time.Duration) {
	p.usageBatchDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) SetUsageQueueDepth(depth int64) {
	p.usageQueueDepth.Set(float64(depth))
}

func (p *PrometheusRecorder) ObserveUsageIngestLag(lag time.Duration) {
	if lag < 0 {
		lag = 0
	}
	p.usageIngestLag.Observe(lag.Seconds())
}
