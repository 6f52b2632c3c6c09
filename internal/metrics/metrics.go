package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Jobs
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Total number of job runs by outcome.",
		},
		[]string{"job", "result"}, // result: ok, error
	)
	jobSkippedTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_ticks_skipped_total",
			Help: "Ticks discarded because the previous run of the job was still in flight.",
		},
		[]string{"job"},
	)
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_run_duration_seconds",
			Help:    "Duration of a single job run (seconds).",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"job"},
	)

	// Dispatch
	postsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "posts_published_total",
			Help: "Total number of scheduled posts published.",
		},
	)
	postsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "posts_failed_total",
			Help: "Total number of scheduled posts that failed to publish.",
		},
	)
	publishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "post_publish_duration_seconds",
			Help:    "Time spent on a single platform publish attempt (seconds).",
			Buckets: prometheus.DefBuckets,
		},
	)
	dispatchLag = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "post_dispatch_lag_seconds",
			Help:    "Lag between a post's scheduled time and its dispatch attempt (seconds).",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
	postsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduled_posts_count",
			Help: "Current count of scheduled posts by status.",
		},
		[]string{"status"},
	)

	// Notifications
	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of durable notifications created.",
		},
		[]string{"type"},
	)
	notificationsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Total number of notifications dropped by a disabled user rule.",
		},
		[]string{"type"},
	)

	// Rate limiting
	rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Total number of rate limiter decisions.",
		},
		[]string{"rule", "decision"}, // decision: allowed, rejected, failopen
	)

	// Collection / retention
	metricSamplesUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "metric_samples_upserted_total",
			Help: "Total number of metric samples written by collection.",
		},
	)
	retentionDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_rows_deleted_total",
			Help: "Total number of rows deleted by the retention sweeper.",
		},
		[]string{"category"}, // analytics, conversations, failed_posts
	)

	// Kafka
	kafkaEventsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_events_sent_total",
			Help: "Total number of lifecycle events successfully published.",
		},
	)
	kafkaEngagementProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_engagement_processed_total",
			Help: "Total number of engagement events turned into notifications.",
		},
	)
	kafkaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Total number of Kafka-related errors.",
		},
		[]string{"component", "operation"},
	)

	// Redis
	redisRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests.",
		},
		[]string{"operation"},
	)
	redisErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors.",
		},
		[]string{"operation"},
	)
	redisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,

			jobRuns,
			jobSkippedTicks,
			jobDuration,

			postsPublished,
			postsFailed,
			publishDuration,
			dispatchLag,
			postsByStatus,

			notificationsCreated,
			notificationsSuppressed,

			rateLimitDecisions,

			metricSamplesUpserted,
			retentionDeleted,

			kafkaEventsSent,
			kafkaEngagementProcessed,
			kafkaErrors,

			redisRequests,
			redisErrors,
			redisDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP ---
func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, code).Inc()
	httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// --- Jobs ---
func IncJobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	jobRuns.WithLabelValues(job, result).Inc()
}
func IncJobSkippedTick(job string) { jobSkippedTicks.WithLabelValues(job).Inc() }
func ObserveJobDuration(job string, d time.Duration) {
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// --- Dispatch ---
func IncPostPublished()                      { postsPublished.Inc() }
func IncPostFailed()                         { postsFailed.Inc() }
func ObservePublishDuration(d time.Duration) { publishDuration.Observe(d.Seconds()) }
func ObserveDispatchLagSeconds(sec float64) {
	if sec < 0 {
		sec = 0
	}
	dispatchLag.Observe(sec)
}
func SetPostStatusCount(status string, count int64) {
	if count < 0 {
		count = 0
	}
	postsByStatus.WithLabelValues(status).Set(float64(count))
}

// --- Notifications ---
func IncNotificationCreated(typ string)    { notificationsCreated.WithLabelValues(typ).Inc() }
func IncNotificationSuppressed(typ string) { notificationsSuppressed.WithLabelValues(typ).Inc() }

// --- Rate limiting ---
func IncRateLimitDecision(rule, decision string) {
	rateLimitDecisions.WithLabelValues(rule, decision).Inc()
}

// --- Collection / retention ---
func IncMetricSamplesUpserted() { metricSamplesUpserted.Inc() }
func AddRetentionDeleted(category string, n int64) {
	if n < 0 {
		n = 0
	}
	retentionDeleted.WithLabelValues(category).Add(float64(n))
}

// --- Kafka ---
func IncKafkaEventSent()           { kafkaEventsSent.Inc() }
func IncKafkaEngagementProcessed() { kafkaEngagementProcessed.Inc() }
func IncKafkaError(component, operation string) {
	kafkaErrors.WithLabelValues(component, operation).Inc()
}

// --- Redis ---
func IncRedisRequest(op string) { redisRequests.WithLabelValues(op).Inc() }
func IncRedisError(op string)   { redisErrors.WithLabelValues(op).Inc() }
func ObserveRedisDuration(op string, d time.Duration) {
	redisDuration.WithLabelValues(op).Observe(d.Seconds())
}
