// Package service holds the background execution core: the dispatch
// pipeline, the metrics collector, and the retention sweeper. Each exposes
// RunOnce for the job orchestrator to drive.
package service

import (
	"context"
	"time"

	"social_automation/internal/models"
	"social_automation/internal/platform"
	"social_automation/internal/ratelimit"
)

// Job names and cadences. Cadences are deliberately not configurable.
const (
	JobDispatch   = "dispatch"
	JobCollection = "metrics_collection"
	JobRetention  = "retention_sweep"

	DispatchInterval   = 60 * time.Second
	CollectionInterval = time.Hour
	RetentionInterval  = 24 * time.Hour
)

type accountStore interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	ListActive(ctx context.Context) ([]*models.Account, error)
}

type adapterRegistry interface {
	Get(name string) (platform.Adapter, error)
}

type limiter interface {
	Allow(ctx context.Context, rule ratelimit.Rule, origin, identity, operation string) bool
}

// limiterOrigin marks counters owned by the background loops, as opposed to
// request-scoped callers that use a network origin.
const limiterOrigin = "internal"
