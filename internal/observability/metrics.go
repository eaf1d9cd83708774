package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// LLMRequestsTotal counts LLM Gateway calls by model and operation
	// (chat, embed) and their outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM Gateway calls",
		},
		[]string{"model", "operation", "outcome"},
	)
	// LLMRequestDuration records LLM Gateway call durations by model and operation.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM Gateway call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model", "operation"},
	)
	// LLMTokenUsage tracks token consumption by model and token type.
	LLMTokenUsage = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	// EmbedCacheLookups counts embed-cache hits and misses.
	EmbedCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embed_cache_lookups_total",
			Help: "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	// JobsProcessing gauges currently-running jobs per queue.
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_jobs_processing",
			Help: "Number of jobs currently processing per queue",
		},
		[]string{"queue"},
	)
	// JobsCompletedTotal counts completed jobs per queue.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_completed_total",
			Help: "Total number of jobs completed per queue",
		},
		[]string{"queue"},
	)
	// JobsFailedTotal counts failed jobs per queue and failure disposition
	// (retried, dlq).
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_failed_total",
			Help: "Total number of job failures per queue",
		},
		[]string{"queue", "disposition"},
	)

	// StageDuration records per-resume pipeline stage durations.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Resume pipeline stage duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// FinalScoreHistogram is the distribution of persisted composite scores.
	FinalScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "score_final_score",
			Help:    "Distribution of composite final_score (normalized fraction [0,1])",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// CircuitBreakerStatus tracks circuit breaker state per model.
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"model"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokenUsage)
	prometheus.MustRegister(EmbedCacheLookups)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(FinalScoreHistogram)
	prometheus.MustRegister(CircuitBreakerStatus)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// StartProcessingJob increments the processing gauge for the given queue.
func StartProcessingJob(queueName string) {
	JobsProcessing.WithLabelValues(queueName).Inc()
}

// CompleteJob marks a job complete by decrementing the processing gauge and
// incrementing the completed counter.
func CompleteJob(queueName string) {
	JobsProcessing.WithLabelValues(queueName).Dec()
	JobsCompletedTotal.WithLabelValues(queueName).Inc()
}

// FailJob marks a job failure by decrementing the processing gauge and
// counting the failure disposition ("retried" or "dlq").
func FailJob(queueName, disposition string) {
	JobsProcessing.WithLabelValues(queueName).Dec()
	JobsFailedTotal.WithLabelValues(queueName, disposition).Inc()
}

// RecordLLMRequest records one LLM Gateway call's outcome and duration.
func RecordLLMRequest(model, operation, outcome string, duration time.Duration) {
	LLMRequestsTotal.WithLabelValues(model, operation, outcome).Inc()
	LLMRequestDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// RecordLLMTokenUsage records token consumption for one call.
func RecordLLMTokenUsage(model, tokenType string, tokens int) {
	LLMTokenUsage.WithLabelValues(model, tokenType).Add(float64(tokens))
}

// RecordEmbedCacheLookup records an embed-cache hit or miss.
func RecordEmbedCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	EmbedCacheLookups.WithLabelValues(result).Inc()
}

// ObserveStage records one pipeline stage's duration.
func ObserveStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveFinalScore records a persisted composite score.
func ObserveFinalScore(score float64) {
	if score >= 0 && score <= 1 {
		FinalScoreHistogram.Observe(score)
	}
}

// RecordCircuitBreakerStatus records circuit breaker state for a model.
func RecordCircuitBreakerStatus(model string, status int) {
	CircuitBreakerStatus.WithLabelValues(model).Set(float64(status))
}
