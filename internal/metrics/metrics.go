package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the collectors of one process. A nil *Recorder is valid and
// records nothing, so components can be constructed without metrics in tests.
type Recorder struct {
	registry *prometheus.Registry

	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	reportGeneration *prometheus.HistogramVec
	aiCalls          *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "report_cache_hits_total",
			Help: "Report generations served from the in-memory cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "report_cache_misses_total",
			Help: "Report generations that missed the in-memory cache.",
		}),
		reportGeneration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_generation_seconds",
			Help:    "Report build latency by report type and result status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type", "status"}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "AI strategy calls by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_fallbacks_total",
			Help: "Operations answered from local aggregates or rule based fallbacks.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.cacheHits,
		r.cacheMisses,
		r.reportGeneration,
		r.aiCalls,
		r.fallbacks,
	)

	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.cacheMisses.Inc()
}

func (r *Recorder) ObserveReport(reportType, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.reportGeneration.WithLabelValues(reportType, status).Observe(elapsed.Seconds())
}

func (r *Recorder) AICall(strategy, outcome string) {
	if r == nil {
		return
	}
	r.aiCalls.WithLabelValues(strategy, outcome).Inc()
}

func (r *Recorder) Fallback(operation string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(operation).Inc()
}
