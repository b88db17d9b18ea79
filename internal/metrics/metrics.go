package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ScansTotal counts classified scans by outcome (found, extra, out_of_scope, already_scanned).
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_scans_total",
			Help: "Total number of audit scans by outcome",
		},
		[]string{"outcome"},
	)

	// FindingsTotal counts appended findings by kind.
	FindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_findings_total",
			Help: "Total number of audit findings recorded by kind",
		},
		[]string{"kind"},
	)

	// TransitionsTotal counts audits entering each lifecycle state.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_transitions_total",
			Help: "Total number of audits entering a lifecycle state",
		},
		[]string{"state"},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, ScansTotal, FindingsTotal, TransitionsTotal)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /v1/audits/123/scan -> /v1/audits/{id}/scan.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

func IncScanOutcome(outcome string) {
	ScansTotal.WithLabelValues(outcome).Inc()
}

// AddFindings adds n findings of the given kind. n <= 0 is a no-op.
func AddFindings(kind string, n int) {
	if n <= 0 {
		return
	}
	FindingsTotal.WithLabelValues(kind).Add(float64(n))
}

func IncTransition(state string) {
	TransitionsTotal.WithLabelValues(state).Inc()
}
