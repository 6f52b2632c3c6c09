package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"social_automation/internal/metrics"
	"social_automation/internal/models"
	"social_automation/internal/ratelimit"
)

type metricStore interface {
	Upsert(ctx context.Context, sample *models.MetricSample) error
}

// Collector pulls daily analytics for every active account. Collection has
// no user-facing unit of work, so failures are log-only and scoped to the
// account that caused them.
type Collector struct {
	accounts accountStore
	samples  metricStore
	adapters adapterRegistry
	limiter  limiter

	fetchTimeout time.Duration
	logger       *logrus.Logger
}

func NewCollector(
	accounts accountStore,
	samples metricStore,
	adapters adapterRegistry,
	limiter limiter,
	logger *logrus.Logger,
) *Collector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Collector{
		accounts:     accounts,
		samples:      samples,
		adapters:     adapters,
		limiter:      limiter,
		fetchTimeout: 30 * time.Second,
		logger:       logger,
	}
}

func (c *Collector) RunOnce(ctx context.Context) error {
	accounts, err := c.accounts.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active accounts: %w", err)
	}

	day := todayUTC()

	for _, account := range accounts {
		c.collectOne(ctx, account, day)
	}
	return nil
}

func (c *Collector) collectOne(ctx context.Context, account *models.Account, day time.Time) {
	log := c.logger.WithFields(logrus.Fields{"account_id": account.ID, "platform": account.Platform})

	if !c.limiter.Allow(ctx, ratelimit.MetricsFetch, limiterOrigin, strconv.FormatInt(account.ID, 10), account.Platform) {
		log.Debug("metrics fetch rate limited, skipping account")
		return
	}

	adapter, err := c.adapters.Get(account.Platform)
	if err != nil {
		log.WithError(err).Warn("no adapter for platform, skipping account")
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	samples, err := adapter.FetchMetrics(fetchCtx, account)
	if err != nil {
		log.WithError(err).Warn("fetch metrics failed, skipping account")
		return
	}

	for _, m := range samples {
		sample := &models.MetricSample{
			AccountID:  account.ID,
			MetricType: m.Type,
			Value:      m.Value,
			MetricDate: day,
		}
		if err := c.samples.Upsert(ctx, sample); err != nil {
			log.WithError(err).WithField("metric_type", m.Type).Warn("metric upsert failed")
			continue
		}
		metrics.IncMetricSamplesUpserted()
	}
}

// todayUTC is the upsert day key; one row per (account, type, day), last
// collection of the day wins.
func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
