package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchswap_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchswap_rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Task Metrics
	TasksAssignedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchswap_tasks_assigned_total",
			Help: "Total number of watch tasks assigned",
		},
	)

	TaskRequestsEmptyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchswap_task_requests_empty_total",
			Help: "Total number of task requests with no eligible video",
		},
	)

	ProofsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_proofs_submitted_total",
			Help: "Total number of proofs submitted",
		},
		[]string{"kind"},
	)

	TasksResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_tasks_resolved_total",
			Help: "Total number of task resolutions by outcome",
		},
		[]string{"outcome"},
	)

	ResolutionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_resolution_conflicts_total",
			Help: "Resolutions that found the task already resolved",
		},
		[]string{"outcome"},
	)

	ReviewLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchswap_review_latency_seconds",
			Help:    "Time between proof submission and resolution",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s to ~43 minutes
		},
	)

	ReviewTimersArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchswap_review_timers_armed",
			Help: "Number of review timers currently armed",
		},
	)

	TasksExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchswap_tasks_expired_total",
			Help: "Total number of tasks expired by account removal",
		},
	)

	// Reputation Metrics
	StrikesIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_strikes_issued_total",
			Help: "Total number of strikes issued",
		},
		[]string{"role"},
	)

	AccessDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_access_denied_total",
			Help: "Total number of requests refused by the access gate",
		},
		[]string{"reason"},
	)

	// Video Metrics
	VideosAddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchswap_videos_added_total",
			Help: "Total number of videos added",
		},
	)

	ModerationRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchswap_moderation_rejections_total",
			Help: "Total number of videos rejected by moderation",
		},
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_notifications_total",
			Help: "Total number of notifications by kind and delivery status",
		},
		[]string{"kind", "status"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchswap_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchswap_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Backlog Metrics
	OutboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchswap_outbox_depth",
			Help: "Notifications waiting in the outbox queue",
		},
	)

	DeadLetterDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchswap_dead_letter_depth",
			Help: "Notifications parked in the dead letter queue",
		},
	)

	ReviewsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchswap_reviews_pending",
			Help: "Proofs awaiting owner review",
		},
	)

	ReviewsOverdue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchswap_reviews_overdue",
			Help: "Proofs still awaiting review after their review window closed",
		},
	)

	// Session Metrics
	DraftSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_draft_sessions_total",
			Help: "Total number of add-video drafts by outcome",
		},
		[]string{"outcome"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchswap_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordTaskRequest records the outcome of a task request
func RecordTaskRequest(assigned bool) {
	if assigned {
		TasksAssignedTotal.Inc()
	} else {
		TaskRequestsEmptyTotal.Inc()
	}
}

// RecordProofSubmitted records a submitted proof
func RecordProofSubmitted(kind string) {
	ProofsSubmittedTotal.WithLabelValues(kind).Inc()
}

// RecordResolution records a task resolution. A resolution that did not
// apply is counted as a conflict.
func RecordResolution(outcome string, applied bool, latencySeconds float64) {
	if !applied {
		ResolutionConflictsTotal.WithLabelValues(outcome).Inc()
		return
	}
	TasksResolvedTotal.WithLabelValues(outcome).Inc()
	ReviewLatency.Observe(latencySeconds)
}

// RecordStrike records a strike against a viewer or owner
func RecordStrike(role string) {
	StrikesIssuedTotal.WithLabelValues(role).Inc()
}

// RecordAccessDenied records a refusal by the access gate
func RecordAccessDenied(reason string) {
	AccessDeniedTotal.WithLabelValues(reason).Inc()
}

// RecordNotification records a notification hand-off
func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

// SetReviewTimersArmed updates the armed timer gauge
func SetReviewTimersArmed(n int) {
	ReviewTimersArmed.Set(float64(n))
}

// SetBacklog updates the backlog gauges. Negative values are skipped.
func SetBacklog(outbox, deadLetter, pending, overdue int) {
	if outbox >= 0 {
		OutboxDepth.Set(float64(outbox))
	}
	if deadLetter >= 0 {
		DeadLetterDepth.Set(float64(deadLetter))
	}
	ReviewsPending.Set(float64(pending))
	ReviewsOverdue.Set(float64(overdue))
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordDraft records a draft session outcome
func RecordDraft(outcome string) {
	DraftSessionsTotal.WithLabelValues(outcome).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
