package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Step and turn outcomes used as metric labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"

	OutcomeSuspended = "suspended"
	OutcomeEnded     = "ended"
	OutcomeReset     = "reset"
	OutcomeFailed    = "failed"
)

// PrometheusMetrics collects engine metrics. All series live in the
// "shopflow" namespace:
//
//	step_latency_ms{workflow,step,status}   histogram
//	suspends_total{workflow,step}           counter
//	faults_total{workflow,code}             counter
//	turns_total{workflow,outcome}           counter
//	retries_total{workflow,step,reason}     counter
//	active_turns                            gauge
//
// Expose it with promhttp.HandlerFor on the same registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	stepLatency *prometheus.HistogramVec
	suspends    *prometheus.CounterVec
	faults      *prometheus.CounterVec
	turns       *prometheus.CounterVec
	retries     *prometheus.CounterVec
	activeTurns prometheus.Gauge

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers the engine metrics with
// registry, or with prometheus.DefaultRegisterer when registry is nil.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shopflow",
			Name:      "step_latency_ms",
			Help:      "Processing step duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"workflow", "step", "status"}),
		suspends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopflow",
			Name:      "suspends_total",
			Help:      "Threads suspended at an interrupt step",
		}, []string{"workflow", "step"}),
		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopflow",
			Name:      "faults_total",
			Help:      "Engine faults that reset a thread",
		}, []string{"workflow", "code"}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopflow",
			Name:      "turns_total",
			Help:      "Completed turns by outcome",
		}, []string{"workflow", "outcome"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopflow",
			Name:      "retries_total",
			Help:      "Retry attempts reported by workflow steps",
		}, []string{"workflow", "step", "reason"}),
		activeTurns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "shopflow",
			Name:      "active_turns",
			Help:      "Turns currently executing",
		}),
	}
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordStepLatency observes the duration of one processing step.
func (pm *PrometheusMetrics) RecordStepLatency(workflow, step string, latency time.Duration, status string) {
	if !pm.on() {
		return
	}
	pm.stepLatency.WithLabelValues(workflow, step, status).Observe(float64(latency.Milliseconds()))
}

// IncrementSuspends counts a suspension at step.
func (pm *PrometheusMetrics) IncrementSuspends(workflow, step string) {
	if !pm.on() {
		return
	}
	pm.suspends.WithLabelValues(workflow, step).Inc()
}

// IncrementFaults counts an engine fault.
func (pm *PrometheusMetrics) IncrementFaults(workflow, code string) {
	if !pm.on() {
		return
	}
	pm.faults.WithLabelValues(workflow, code).Inc()
}

// IncrementTurns counts a finished turn.
func (pm *PrometheusMetrics) IncrementTurns(workflow, outcome string) {
	if !pm.on() {
		return
	}
	pm.turns.WithLabelValues(workflow, outcome).Inc()
}

// IncrementRetries counts a retry attempt made by a workflow step.
//
//	if s.RetryCount < maxRetries {
//	    metrics.IncrementRetries("listing", "retry", "create_failed")
//	}
func (pm *PrometheusMetrics) IncrementRetries(workflow, step, reason string) {
	if !pm.on() {
		return
	}
	pm.retries.WithLabelValues(workflow, step, reason).Inc()
}

func (pm *PrometheusMetrics) turnStarted() {
	if pm.on() {
		pm.activeTurns.Inc()
	}
}

func (pm *PrometheusMetrics) turnFinished() {
	if pm.on() {
		pm.activeTurns.Dec()
	}
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the gauge. Counters and histograms are cumulative.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.activeTurns.Set(0)
}
