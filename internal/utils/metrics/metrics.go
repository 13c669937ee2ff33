package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts login attempts by outcome.
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_login_attempts_total",
		Help: "The total number of login attempts",
	}, []string{"status"})

	// TokenVerificationsTotal counts orchestrator outcomes per request.
	TokenVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_token_verifications_total",
		Help: "The total number of token verification outcomes",
	}, []string{"outcome"})

	// TokenReuseDetectedTotal counts refresh reuse signals. Any non-zero
	// value deserves attention.
	TokenReuseDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_service_token_reuse_detected_total",
		Help: "The total number of refresh token reuse detections",
	})

	// RotationsTotal counts refresh rotations by status.
	RotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_token_rotations_total",
		Help: "The total number of refresh token rotations",
	}, []string{"status"})

	// CodesIssuedTotal counts one-time codes issued by purpose and kind.
	CodesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_codes_issued_total",
		Help: "The total number of one-time codes issued",
	}, []string{"purpose", "kind"})

	// CodeValidationsTotal counts code validations by status.
	CodeValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_code_validations_total",
		Help: "The total number of one-time code validations",
	}, []string{"status"})

	// CacheOperationsTotal counts session cache operations by op and status.
	CacheOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_cache_operations_total",
		Help: "The total number of session cache operations",
	}, []string{"operation", "status"})

	// PolicyRejectionsTotal counts login policy cap rejections.
	PolicyRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_policy_rejections_total",
		Help: "The total number of login policy rejections",
	}, []string{"kind"})

	// SessionEvictionsTotal counts soft-replace evictions.
	SessionEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_service_session_evictions_total",
		Help: "The total number of sessions evicted by soft replace",
	})

	// ServiceTokenRotationsTotal counts service token rotations by status.
	ServiceTokenRotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_service_token_rotations_total",
		Help: "The total number of service token rotations",
	}, []string{"status"})

	// AuditEventsDroppedTotal counts audit events dropped on queue overflow.
	AuditEventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_service_audit_events_dropped_total",
		Help: "The total number of audit events dropped due to backpressure",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_service_http_requests_total",
		Help: "The total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes HTTP request latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_service_http_request_duration_seconds",
		Help:    "The HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// DatabaseOperationDuration observes store call latency.
	DatabaseOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_service_database_operation_duration_seconds",
		Help:    "The database operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
