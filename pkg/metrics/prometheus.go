package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "user_role"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// Business metrics
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of product submissions by outcome",
		},
		[]string{"outcome", "vip_tier"},
	)

	commissionAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "commission_amount",
			Help:    "Commission amount credited per ledger entry",
			Buckets: []float64{0.01, 0.1, 1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"reason"},
	)

	ledgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Total number of ledger entries appended",
		},
		[]string{"reason"},
	)

	ledgerSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_entries_skipped_total",
			Help: "Ledger entries skipped because they were already recorded",
		},
	)

	freezeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freeze_transitions_total",
			Help: "Total number of account freeze transitions",
		},
		[]string{"kind"},
	)

	balanceDriftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "balance_drift_total",
			Help: "Cached balances found out of line with the ledger",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Redis metrics
	redisOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	lockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "user_lock_wait_seconds",
			Help:    "Time spent waiting for a per-user lock",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "status"},
	)

	// Event stream metrics
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Total number of ledger events published",
		},
		[]string{"status"},
	)

	// Scheduler metrics
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// Authentication metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "status"},
	)

	systemErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "component"},
	)
)

// HTTP Metrics
func RecordHTTPRequest(method, endpoint, statusCode, userRole string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, userRole).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, statusCode).Observe(duration)
}

// Submission Metrics
func RecordSubmission(outcome, tier string) {
	submissionsTotal.WithLabelValues(outcome, tier).Inc()
}

// Ledger Metrics
func RecordLedgerEntry(reason string, amount float64) {
	ledgerEntriesTotal.WithLabelValues(reason).Inc()
	if amount > 0 {
		commissionAmount.WithLabelValues(reason).Observe(amount)
	}
}

func RecordLedgerSkipped(count int) {
	ledgerSkippedTotal.Add(float64(count))
}

func RecordFreezeTransition(kind string) {
	freezeTransitionsTotal.WithLabelValues(kind).Inc()
}

func RecordBalanceDrift() {
	balanceDriftTotal.Inc()
}

// Database Metrics
func RecordDBQuery(operation, table string, duration float64) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// Redis Metrics
func RecordRedisOperation(operation, status string) {
	redisOperationsTotal.WithLabelValues(operation, status).Inc()
}

// Lock Metrics
func RecordLockWait(backend, status string, duration float64) {
	lockWaitDuration.WithLabelValues(backend, status).Observe(duration)
}

// Event Metrics
func RecordEventsPublished(status string, count int) {
	eventsPublishedTotal.WithLabelValues(status).Add(float64(count))
}

// Scheduler Metrics
func RecordJobRun(job, status string, duration float64) {
	jobRunsTotal.WithLabelValues(job, status).Inc()
	jobDuration.WithLabelValues(job).Observe(duration)
}

// Authentication Metrics
func RecordAuthAttempt(method, status string) {
	authAttemptsTotal.WithLabelValues(method, status).Inc()
}

func RecordSystemError(errorType, component string) {
	systemErrorsTotal.WithLabelValues(errorType, component).Inc()
}
