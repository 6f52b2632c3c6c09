// Package notify combines the durable notification log with a bounded
// per-user realtime projection. The durable row is the source of truth; the
// realtime copy may be evicted at any time without losing history.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"social_automation/internal/cache"
	"social_automation/internal/metrics"
	"social_automation/internal/models"
	"social_automation/internal/repository"
)

// RealtimeCapacity bounds the per-user realtime set. Inserting past the
// capacity evicts the oldest entries.
const RealtimeCapacity = 50

const (
	TypePostPublished = "post_published"
	TypePostFailed    = "post_failed"
	TypeEngagement    = "engagement"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*models.Notification, int, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) error
	MarkAllRead(ctx context.Context, userID int64) error
	GetRule(ctx context.Context, userID int64, typ string) (*models.NotificationRule, error)
}

type realtimeCache interface {
	AppendBounded(ctx context.Context, key string, value []byte, capacity int64) error
	ListRange(ctx context.Context, key string, capacity int64) ([][]byte, error)
}

type Service struct {
	repo   notificationStore
	cache  realtimeCache
	logger *logrus.Logger
}

func NewService(repo notificationStore, cache realtimeCache, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// feedEntry is the denormalized projection stored in the realtime set.
type feedEntry struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Create records one notification, honoring the user's per-type rule.
// A disabled rule makes the whole call a no-op; no rule means enabled.
// The realtime append is best-effort: the durable row already exists, so a
// cache fault is logged and swallowed.
func (s *Service) Create(ctx context.Context, userID int64, typ, title, message string, payload json.RawMessage) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if typ == "" {
		return fmt.Errorf("type is empty")
	}

	rule, err := s.repo.GetRule(ctx, userID, typ)
	switch {
	case err == nil:
		if !rule.Enabled {
			metrics.IncNotificationSuppressed(typ)
			return nil
		}
	case errors.Is(err, repository.ErrNotFound):
		// default-allow
	default:
		// Rule lookup faults must not drop notifications.
		s.logger.WithError(err).WithField("user_id", userID).Warn("rule lookup failed, defaulting to enabled")
	}

	n := &models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Payload: payload,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	metrics.IncNotificationCreated(typ)

	entry := feedEntry{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		s.logger.WithError(err).Warn("marshal feed entry")
		return nil
	}
	if err := s.cache.AppendBounded(ctx, cache.RealtimeFeedKey(userID), b, RealtimeCapacity); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("realtime append failed")
	}

	return nil
}

// List pages the durable log newest-first.
func (s *Service) List(ctx context.Context, userID int64, page, pageSize int, unreadOnly bool) ([]*models.Notification, *models.Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize

	items, total, err := s.repo.List(ctx, userID, pageSize, offset, unreadOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("list notifications: %w", err)
	}

	return items, &models.Pagination{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasNext:  page*pageSize < total,
		HasPrev:  page > 1,
	}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID int64, ids []int64) error {
	return s.repo.MarkRead(ctx, userID, ids)
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// RealtimeFeed returns the bounded projection, newest first. Entries are
// opaque JSON payloads for the presentation layer.
func (s *Service) RealtimeFeed(ctx context.Context, userID int64) ([]json.RawMessage, error) {
	vals, err := s.cache.ListRange(ctx, cache.RealtimeFeedKey(userID), RealtimeCapacity)
	if err != nil {
		return nil, fmt.Errorf("realtime feed: %w", err)
	}

	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		out = append(out, json.RawMessage(v))
	}
	return out, nil
}
