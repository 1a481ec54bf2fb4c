package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of oracle requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Oracle request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	RepairStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repair_cascade_outcomes_total",
			Help: "Repair cascade outcomes by the step that produced valid JSON (or failed)",
		},
		[]string{"step"},
	)

	SchemaBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_schema_builds_total",
			Help: "Rubric schema build outcomes",
		},
		[]string{"outcome"},
	)
	SchemaCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_schema_cache_total",
			Help: "Rubric schema cache lookups",
		},
		[]string{"result"},
	)

	ReconciledPlaceholdersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciled_placeholder_results_total",
			Help: "Criterion results synthesized because the oracle dropped them",
		},
	)
	CriterionScoreRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "criterion_score_ratio",
			Help:    "Distribution of score/max_score across graded criteria",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
)

// InitMetrics registers all collectors once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(RepairStepsTotal)
	prometheus.MustRegister(SchemaBuildsTotal)
	prometheus.MustRegister(SchemaCacheHitsTotal)
	prometheus.MustRegister(ReconciledPlaceholdersTotal)
	prometheus.MustRegister(CriterionScoreRatio)
}

// HTTPMetricsMiddleware records request counts and latencies labeled by
// chi route pattern.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
