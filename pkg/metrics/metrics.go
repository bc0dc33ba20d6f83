// Package metrics holds the Prometheus collectors shared by the remote clients,
// the pipeline and the transports. Collectors are registered on the default
// registry and exposed by the HTTP server at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote call metrics
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiling_remote_requests_total",
			Help: "Total number of calls to remote translation and completion services",
		},
		[]string{"service", "operation", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiling_remote_request_duration_seconds",
			Help:    "Duration of remote service calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation", "status"},
	)

	remoteRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiling_remote_request_size_bytes",
			Help:    "Size of text sent to remote services in bytes",
			Buckets: []float64{16, 64, 256, 1000, 5000, 10000, 50000},
		},
		[]string{"service", "operation"},
	)

	// Pipeline metrics
	stageOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiling_stage_outcomes_total",
			Help: "Outcome of each pipeline stage (translation, analysis, individual_analysis, question_response, english_sweep)",
		},
		[]string{"stage", "outcome"},
	)

	skippedTranslationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multiling_skipped_translations_total",
			Help: "Target languages served from the original text because they match the source language",
		},
	)

	completionFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiling_completion_fallbacks_total",
			Help: "Question responses replaced by a fallback string after a failed completion",
		},
		[]string{"lang"},
	)

	// Transport metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multiling_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multiling_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"method", "route"},
	)
)

// Outcome labels used by RecordStage.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// RecordRemoteCall records one call to a remote service.
func RecordRemoteCall(service, operation string, duration time.Duration, success bool, requestSize int) {
	status := OutcomeSuccess
	if !success {
		status = OutcomeError
	}
	remoteRequestsTotal.WithLabelValues(service, operation, status).Inc()
	remoteRequestDuration.WithLabelValues(service, operation, status).Observe(duration.Seconds())
	remoteRequestSize.WithLabelValues(service, operation).Observe(float64(requestSize))
}

// RecordStage records the outcome of a pipeline stage.
func RecordStage(stage string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	stageOutcomesTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordSkippedTranslation counts a target served without a remote call.
func RecordSkippedTranslation() {
	skippedTranslationsTotal.Inc()
}

// RecordCompletionFallback counts a per-language fallback response. Callers
// pass a bounded label such as translate.MetricLabel(code).
func RecordCompletionFallback(lang string) {
	completionFallbacksTotal.WithLabelValues(lang).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
