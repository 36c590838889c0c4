package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "idlink_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// Reconciliation Metrics
var (
	// ReconcileOutcomes counts committed reconciliations.
	// outcome is one of "created", "linked", "returning".
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_reconcile_outcomes_total",
			Help: "Committed reconciliations by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// ReconcileFailures counts reconciliations that did not commit
	ReconcileFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_reconcile_failures_total",
			Help: "Failed reconciliations by provider and reason",
		},
		[]string{"provider", "reason"},
	)

	// ReconcileRetries counts race-recovery retries after a uniqueness violation
	ReconcileRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_reconcile_retries_total",
			Help: "Reconciliation retries triggered by a uniqueness violation",
		},
		[]string{"provider"},
	)

	// EmailLookups tracks secondary email fetches against provider APIs
	EmailLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_email_lookups_total",
			Help: "Secondary email lookups by provider and result",
		},
		[]string{"provider", "result"},
	)
)

// Provider API Metrics
var (
	// ProviderAPICalls tracks outbound calls to identity provider APIs
	ProviderAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_provider_api_calls_total",
			Help: "Identity provider API calls by provider, method, route, and status code",
		},
		[]string{"provider", "method", "route", "status"},
	)

	// ProviderAPIDuration tracks provider API latency
	ProviderAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "idlink_provider_api_duration_ms",
			Help:                            "Identity provider API call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"provider", "method", "route"},
	)

	// ProviderAPIErrors tracks failed provider API calls by type
	ProviderAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_provider_api_errors_total",
			Help: "Identity provider API errors by provider, route, and error type",
		},
		[]string{"provider", "route", "error_type"},
	)

	// ProviderRateLimitRemaining tracks the remaining request budget reported by the provider
	ProviderRateLimitRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idlink_provider_ratelimit_remaining",
			Help: "Requests remaining in the provider's current rate limit window",
		},
		[]string{"provider"},
	)
)

// HTTP Metrics
var (
	// HTTPRequests tracks handled HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idlink_http_requests_total",
			Help: "HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks HTTP request latency
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "idlink_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)
)
