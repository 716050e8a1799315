package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	readinessTotal        *prometheus.CounterVec
	inputModeTotal        *prometheus.CounterVec
	decisionRejections    prometheus.Counter
	confidenceHistogram   prometheus.Histogram
	confidenceCapsApplied *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grading API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Total number of grading API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_errors_total",
			Help: "Total number of error responses returned by grading endpoints.",
		}, []string{"method", "route", "status"})

		readinessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "readiness_total",
			Help:      "Readiness gate evaluations by outcome.",
		}, []string{"outcome"})

		inputModeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "input_mode_total",
			Help:      "Grading inputs selected by mode.",
		}, []string{"mode"})

		decisionRejections = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "decision_rejections_total",
			Help:      "Model answers rejected by the decision validator.",
		})

		confidenceHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "confidence",
			Help:      "Final synthesized confidence of accepted decisions.",
			Buckets:   []float64{0.2, 0.3, 0.4, 0.5, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		})

		confidenceCapsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gema",
			Subsystem: "grading",
			Name:      "caps_applied_total",
			Help:      "Confidence caps recorded by name.",
		}, []string{"cap"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			readinessTotal, inputModeTotal, decisionRejections, confidenceHistogram, confidenceCapsApplied,
		)
	})
}

// APIRequests exposes the counter for grading API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for grading API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for grading API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ObserveReadiness counts one readiness gate outcome.
func ObserveReadiness(ok bool) {
	RegisterMetrics()
	outcome := "blocked"
	if ok {
		outcome = "ready"
	}
	readinessTotal.WithLabelValues(outcome).Inc()
}

// ObserveInputMode counts the representation handed to the model.
func ObserveInputMode(mode string) {
	RegisterMetrics()
	inputModeTotal.WithLabelValues(mode).Inc()
}

// ObserveDecisionRejected counts a model answer that failed validation.
func ObserveDecisionRejected() {
	RegisterMetrics()
	decisionRejections.Inc()
}

// ObserveConfidence records the final confidence and every cap that triggered.
func ObserveConfidence(final float64, caps []string) {
	RegisterMetrics()
	confidenceHistogram.Observe(final)
	for _, name := range caps {
		confidenceCapsApplied.WithLabelValues(name).Inc()
	}
}
