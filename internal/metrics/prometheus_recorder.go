package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	registry          *prom.Registry
	stageDuration     *prom.HistogramVec
	buildDuration     prom.Histogram
	stageResults      *prom.CounterVec
	buildOutcome      *prom.CounterVec
	extractorDuration *prom.HistogramVec
	extractorResults  *prom.CounterVec
	watchTriggers     *prom.CounterVec
	queueDepth        prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics
// (idempotent). Passing nil creates a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "doxysite",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "doxysite",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "doxysite",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "doxysite",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.extractorDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "doxysite",
			Name:      "extractor_duration_seconds",
			Help:      "Duration of doxygen extractor runs",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.extractorResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "doxysite",
			Name:      "extractor_results_total",
			Help:      "Extractor results by success/failure",
		}, []string{"result"})
		pr.watchTriggers = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "doxysite",
			Name:      "watch_triggers_total",
			Help:      "Rebuilds triggered by filesystem watch events",
		}, []string{"path"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "doxysite",
			Name:      "queue_depth",
			Help:      "Queued build jobs waiting for workers",
		})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
			pr.extractorDuration, pr.extractorResults, pr.watchTriggers, pr.queueDepth)
	})
	return pr
}

// HTTPHandler returns an http.Handler serving this recorder's registry.
func (p *PrometheusRecorder) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveExtractorDuration(d time.Duration, success bool) {
	if p == nil || p.extractorDuration == nil {
		return
	}
	p.extractorDuration.WithLabelValues(resultString(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncExtractorResult(success bool) {
	if p == nil || p.extractorResults == nil {
		return
	}
	p.extractorResults.WithLabelValues(resultString(success)).Inc()
}

func (p *PrometheusRecorder) IncWatchTrigger(path string) {
	if p == nil || p.watchTriggers == nil {
		return
	}
	p.watchTriggers.WithLabelValues(path).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func resultString(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
