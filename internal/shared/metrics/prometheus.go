package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Surveillance metrics
	casesRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveillance_cases_registered_total",
			Help: "Total number of suspected cases registered",
		},
		[]string{"district"},
	)

	casesFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveillance_cases_finalized_total",
			Help: "Total number of cases finalized by classification",
		},
		[]string{"classification"},
	)

	labResultsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveillance_lab_results_imported_total",
			Help: "Total number of lab results imported from the LIMS",
		},
		[]string{"test"},
	)

	geocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveillance_geocode_requests_total",
			Help: "Total number of address-search requests",
		},
		[]string{"status"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surveillance_login_attempts_total",
			Help: "Total number of login attempts by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	linelistExports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "surveillance_linelist_exports_total",
			Help: "Total number of linelist CSV exports",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Surveillance metric helpers ---

// RecordCaseRegistered records a case registration
func RecordCaseRegistered(district string) {
	casesRegistered.WithLabelValues(district).Inc()
}

// RecordCaseFinalized records a case finalization
func RecordCaseFinalized(classification string) {
	casesFinalized.WithLabelValues(classification).Inc()
}

// RecordLabResultImported records a lab result pulled from the LIMS
func RecordLabResultImported(test string) {
	labResultsImported.WithLabelValues(test).Inc()
}

// RecordGeocodeRequest records an address-search request outcome
func RecordGeocodeRequest(status string) {
	geocodeRequests.WithLabelValues(status).Inc()
}

// RecordLoginAttempt records a login attempt
func RecordLoginAttempt(role string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	loginAttempts.WithLabelValues(role, outcome).Inc()
}

// RecordLinelistExport records a CSV export
func RecordLinelistExport() {
	linelistExports.Inc()
}
