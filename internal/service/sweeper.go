package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"social_automation/internal/metrics"
)

// Retention windows, in days.
const (
	AnalyticsRetentionDays    = 365
	ConversationRetentionDays = 180
	FailedPostRetentionDays   = 7
)

type retentionStore interface {
	DeleteAnalyticsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteConversationsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteFailedPostsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper deletes expired rows, one batch delete per category per tick.
// A failing category never blocks the others.
type Sweeper struct {
	store  retentionStore
	logger *logrus.Logger
}

func NewSweeper(store retentionStore, logger *logrus.Logger) *Sweeper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sweeper{store: store, logger: logger}
}

func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()

	categories := []struct {
		name   string
		days   int
		delete func(context.Context, time.Time) (int64, error)
	}{
		{"analytics", AnalyticsRetentionDays, s.store.DeleteAnalyticsOlderThan},
		{"conversations", ConversationRetentionDays, s.store.DeleteConversationsOlderThan},
		{"failed_posts", FailedPostRetentionDays, s.store.DeleteFailedPostsOlderThan},
	}

	var errs []error
	for _, c := range categories {
		n, err := c.delete(ctx, now.AddDate(0, 0, -c.days))
		if err != nil {
			s.logger.WithError(err).WithField("category", c.name).Warn("retention delete failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		metrics.AddRetentionDeleted(c.name, n)
		if n > 0 {
			s.logger.WithFields(logrus.Fields{"category": c.name, "deleted": n}).Info("retention sweep")
		}
	}

	return errors.Join(errs...)
}
