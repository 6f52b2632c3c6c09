// Package platform declares the boundary to the per-network publish and
// analytics adapters. Concrete adapters live outside this core and are
// registered at startup; errors they return are opaque strings recorded
// against the item that triggered the call.
package platform

import (
	"context"
	"errors"

	"social_automation/internal/models"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

type PublishRequest struct {
	Content     string
	MediaURLs   []string
	Credentials string
}

type PublishResult struct {
	PlatformPostID string
}

type Metric struct {
	Type  string
	Value float64
}

// Adapter is one social network's client. No retry contract is assumed;
// callers bound every invocation with a context timeout.
type Adapter interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
	FetchMetrics(ctx context.Context, account *models.Account) ([]Metric, error)
}

// Registry maps platform names to their adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(platform string, a Adapter) {
	r.adapters[platform] = a
}

func (r *Registry) Get(platform string) (Adapter, error) {
	a, ok := r.adapters[platform]
	if !ok {
		return nil, ErrUnsupportedPlatform
	}
	return a, nil
}
