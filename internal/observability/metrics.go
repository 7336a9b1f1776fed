package observability

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telansky/multigpt/internal/platform/envutil"
	"github.com/telansky/multigpt/internal/platform/logger"
)

// Metrics aggregates the gateway's prometheus instruments. A nil *Metrics
// is valid everywhere: every observe method no-ops, so call sites never
// need an enabled check beyond the nil guard.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmRetries  *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec
	llmCost     *prometheus.CounterVec

	mediaJobs       *prometheus.CounterVec
	mediaJobSeconds *prometheus.HistogramVec

	remoteFileCleanups *prometheus.CounterVec

	costInputPer1K  float64
	costOutputPer1K float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multigpt", Subsystem: "api",
			Name: "requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "multigpt", Subsystem: "api",
			Name:    "request_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "multigpt", Subsystem: "api",
			Name: "inflight_requests",
			Help: "Requests currently being served.",
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multigpt", Subsystem: "llm",
			Name: "requests_total",
			Help: "Upstream model attempts by model, endpoint and status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "multigpt", Subsystem: "llm",
			Name:    "request_seconds",
			Help:    "Upstream model attempt latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"model", "endpoint"}),
		llmRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multigpt", Subsystem: "llm",
			Name: "retries_total",
			Help: "Retry sleeps taken before upstream attempts.",
		}, []string{"model", "endpoint"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multigpt", Subsystem: "llm",
			Name: "tokens_total",
			Help: "Tokens reported by the upstream, by direction.",
		}, []string{"model", "direction"}),
		llmCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multigpt", Subsystem: "llm",
			Name: "cost_usd_total",
			Help: "Estimated spend derived from token counts and per-1k rates.",
		}, []string{"model", "direction"}),
		mediaJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multigpt", Subsystem: "media",
			Name: "jobs_total",
			Help: "Subprocess runs (ffmpeg, soffice) by tool and status.",
		}, []string{"tool", "status"}),
		mediaJobSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "multigpt", Subsystem: "media",
			Name:    "job_seconds",
			Help:    "Subprocess wall time by tool.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"tool"}),
		remoteFileCleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multigpt", Subsystem: "llm",
			Name: "remote_file_cleanups_total",
			Help: "Deletions of staged upstream files by outcome.",
		}, []string{"status"}),
		costInputPer1K:  envutil.Float("LLM_COST_INPUT_PER_1K", 0),
		costOutputPer1K: envutil.Float("LLM_COST_OUTPUT_PER_1K", 0),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmRetries, m.llmTokens, m.llmCost,
		m.mediaJobs, m.mediaJobSeconds, m.remoteFileCleanups,
	)
	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	route = orUnknown(route)
	method = orUnknown(method)
	m.apiRequests.WithLabelValues(route, method, orUnknown(status)).Inc()
	if dur > 0 {
		m.apiLatency.WithLabelValues(route, method).Observe(dur.Seconds())
	}
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	endpoint = orUnknown(endpoint)
	m.llmRequests.WithLabelValues(model, endpoint, orUnknown(status)).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, endpoint).Observe(dur.Seconds())
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
		if m.costInputPer1K > 0 {
			m.llmCost.WithLabelValues(model, "input").Add(float64(inputTokens) / 1000 * m.costInputPer1K)
		}
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
		if m.costOutputPer1K > 0 {
			m.llmCost.WithLabelValues(model, "output").Add(float64(outputTokens) / 1000 * m.costOutputPer1K)
		}
	}
}

func (m *Metrics) ObserveLLMRetry(model, endpoint string) {
	if m == nil {
		return
	}
	m.llmRetries.WithLabelValues(orUnknown(model), orUnknown(endpoint)).Inc()
}

func (m *Metrics) ObserveMediaJob(tool, status string, dur time.Duration) {
	if m == nil {
		return
	}
	tool = orUnknown(tool)
	m.mediaJobs.WithLabelValues(tool, orUnknown(status)).Inc()
	if dur > 0 {
		m.mediaJobSeconds.WithLabelValues(tool).Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveRemoteFileCleanup(status string) {
	if m == nil {
		return
	}
	m.remoteFileCleanups.WithLabelValues(orUnknown(status)).Inc()
}

func orUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
