package ratelimit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"social_automation/internal/cache"
	"social_automation/internal/metrics"
)

// Rule is one named sliding-window configuration. Each rule is its own key
// namespace, so exhausting one never affects another.
type Rule struct {
	Name   string
	Window time.Duration
	Max    int64
}

var (
	AuthAttempt       = Rule{Name: "auth_attempt", Window: 5 * time.Minute, Max: 10}
	AutoReply         = Rule{Name: "auto_reply", Window: time.Hour, Max: 20}
	ContentGeneration = Rule{Name: "content_generation", Window: time.Hour, Max: 10}
	BulkSchedule      = Rule{Name: "bulk_schedule", Window: time.Minute, Max: 30}

	// Internal loop guards; not in the user-facing set but every component
	// that talks to an external adapter goes through one of these.
	Publish      = Rule{Name: "publish", Window: time.Minute, Max: 30}
	MetricsFetch = Rule{Name: "metrics_fetch", Window: time.Hour, Max: 120}

	// HTTP read surface.
	APIRead = Rule{Name: "api_read", Window: time.Minute, Max: 120}
)

type counterStore interface {
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Limiter struct {
	store  counterStore
	logger *logrus.Logger
}

func NewLimiter(store counterStore, logger *logrus.Logger) *Limiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Limiter{store: store, logger: logger}
}

// Allow reports whether one more invocation of operation fits under the
// rule for the (origin, identity, operation) triple. The increment and the
// compare happen against the same atomic counter round trip, so concurrent
// callers cannot race past the limit.
//
// Allow fails open: when the counter store is unreachable the guarded
// operation proceeds and the fault is logged. Availability wins over strict
// limiting.
func (l *Limiter) Allow(ctx context.Context, rule Rule, origin, identity, operation string) bool {
	key := cache.RateKey(rule.Name, origin, identity, operation)

	count, err := l.store.IncrWithExpiry(ctx, key, rule.Window)
	if err != nil {
		l.logger.WithError(err).WithField("rule", rule.Name).Warn("rate limiter store unreachable, allowing")
		metrics.IncRateLimitDecision(rule.Name, "failopen")
		return true
	}

	if count > rule.Max {
		metrics.IncRateLimitDecision(rule.Name, "rejected")
		return false
	}

	metrics.IncRateLimitDecision(rule.Name, "allowed")
	return true
}
