package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	apiErrorsTotal           *prometheus.CounterVec
	evaluationPassesTotal    *prometheus.CounterVec
	evaluationPassSeconds    *prometheus.HistogramVec
	evaluationAnswersTotal   *prometheus.CounterVec
	evaluationsInFlightGauge prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peak_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peak_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peak_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationPassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peak_evaluation_passes_total",
			Help: "Evaluate and reset passes by outcome.",
		}, []string{"action", "status"})

		evaluationPassSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peak_evaluation_pass_seconds",
			Help:    "Duration of evaluate and reset passes.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"action"})

		evaluationAnswersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peak_evaluation_answers_total",
			Help: "Answers processed by committed evaluation passes.",
		}, []string{"outcome"})

		evaluationsInFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peak_evaluations_in_flight",
			Help: "Evaluate and reset passes currently running.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			evaluationPassesTotal,
			evaluationPassSeconds,
			evaluationAnswersTotal,
			evaluationsInFlightGauge,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluationPasses counts evaluate/reset passes by action and status.
func EvaluationPasses() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationPassesTotal
}

// EvaluationPassDuration observes how long each pass took.
func EvaluationPassDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationPassSeconds
}

// EvaluationAnswers counts scored and skipped answers.
func EvaluationAnswers() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationAnswersTotal
}

// EvaluationsInFlight tracks passes currently holding a paper.
func EvaluationsInFlight() prometheus.Gauge {
	RegisterMetrics()
	return evaluationsInFlightGauge
}
