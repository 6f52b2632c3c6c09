package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"social_automation/internal/kafka"
	"social_automation/internal/metrics"
	"social_automation/internal/models"
	"social_automation/internal/notify"
	"social_automation/internal/platform"
	"social_automation/internal/ratelimit"
)

type postStore interface {
	GetDuePosts(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	MarkPublished(ctx context.Context, id int64, platformPostID string) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type notifier interface {
	Create(ctx context.Context, userID int64, typ, title, message string, payload json.RawMessage) error
}

type eventPublisher interface {
	PublishPostEvent(event *kafka.PostEvent) error
}

// Dispatcher moves due scheduled posts from pending to a terminal status.
// Within a tick every post's outcome is independent; a failure marks that
// post failed and the batch continues.
type Dispatcher struct {
	posts    postStore
	accounts accountStore
	adapters adapterRegistry
	limiter  limiter
	notifier notifier
	events   eventPublisher // optional

	batchSize      int
	publishTimeout time.Duration
	logger         *logrus.Logger
}

func NewDispatcher(
	posts postStore,
	accounts accountStore,
	adapters adapterRegistry,
	limiter limiter,
	notifier notifier,
	events eventPublisher,
	logger *logrus.Logger,
) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Dispatcher{
		posts:          posts,
		accounts:       accounts,
		adapters:       adapters,
		limiter:        limiter,
		notifier:       notifier,
		events:         events,
		batchSize:      10,
		publishTimeout: 30 * time.Second,
		logger:         logger,
	}
}

// RunOnce claims one batch of due posts and processes each to completion.
// Only the claim query itself can fail the tick; per-post errors stay with
// their post.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	now := time.Now()

	due, err := d.posts.GetDuePosts(ctx, now, d.batchSize)
	if err != nil {
		return fmt.Errorf("get due posts: %w", err)
	}

	for _, p := range due {
		d.dispatchOne(ctx, p, now)
	}

	d.refreshStatusGauges(ctx)
	return nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, p *models.ScheduledPost, now time.Time) {
	log := d.logger.WithFields(logrus.Fields{"post_id": p.ID, "account_id": p.AccountID})

	account, err := d.accounts.GetByID(ctx, p.AccountID)
	if err != nil {
		// A post referencing a missing account is a data fault, recorded
		// like any other publish failure.
		d.fail(ctx, p, nil, fmt.Sprintf("account lookup failed: %v", err))
		return
	}
	if !account.IsActive {
		d.fail(ctx, p, account, "account is not active")
		return
	}
	if account.Credentials == "" {
		d.fail(ctx, p, account, "account has no credentials")
		return
	}

	// A limited post is not claimed: it stays pending and is reconsidered
	// on the next tick.
	if !d.limiter.Allow(ctx, ratelimit.Publish, limiterOrigin, strconv.FormatInt(account.ID, 10), account.Platform) {
		log.Debug("publish rate limited, deferring to next tick")
		return
	}

	adapter, err := d.adapters.Get(account.Platform)
	if err != nil {
		d.fail(ctx, p, account, fmt.Sprintf("no adapter for platform %q", account.Platform))
		return
	}

	metrics.ObserveDispatchLagSeconds(now.Sub(p.ScheduledTime).Seconds())

	pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
	defer cancel()

	start := time.Now()
	res, err := adapter.Publish(pubCtx, platform.PublishRequest{
		Content:     p.Content,
		MediaURLs:   p.MediaURLs,
		Credentials: account.Credentials,
	})
	metrics.ObservePublishDuration(time.Since(start))

	if err != nil {
		d.fail(ctx, p, account, err.Error())
		return
	}

	if err := d.posts.MarkPublished(ctx, p.ID, res.PlatformPostID); err != nil {
		// The platform call succeeded but the status write did not; the post
		// stays pending and the next tick re-attempts. This is the
		// documented at-least-once edge.
		log.WithError(err).Error("mark published failed")
		return
	}

	metrics.IncPostPublished()
	log.WithField("platform_post_id", res.PlatformPostID).Info("post published")

	d.notifyOutcome(ctx, p, account, notify.TypePostPublished, "Post published",
		fmt.Sprintf("Your scheduled post on %s was published.", account.Platform), "")
	d.publishEvent(kafka.NewPostPublishedEvent(p.ID, p.AccountID))
}

// fail records a terminal failed status plus the user-facing trail. account
// may be nil when the lookup itself failed; the notification is skipped then
// because there is no user to address.
func (d *Dispatcher) fail(ctx context.Context, p *models.ScheduledPost, account *models.Account, reason string) {
	log := d.logger.WithFields(logrus.Fields{"post_id": p.ID, "account_id": p.AccountID})

	if err := d.posts.MarkFailed(ctx, p.ID, reason); err != nil {
		log.WithError(err).Error("mark failed failed")
		return
	}

	metrics.IncPostFailed()
	log.WithField("reason", reason).Warn("post failed")

	if account != nil {
		platformName := account.Platform
		d.notifyOutcome(ctx, p, account, notify.TypePostFailed, "Post failed to publish",
			fmt.Sprintf("Your scheduled post on %s could not be published: %s", platformName, reason), reason)
	}
	d.publishEvent(kafka.NewPostFailedEvent(p.ID, p.AccountID, reason))
}

func (d *Dispatcher) notifyOutcome(ctx context.Context, p *models.ScheduledPost, account *models.Account, typ, title, message, errText string) {
	payload, err := json.Marshal(map[string]any{
		"post_id":    p.ID,
		"account_id": p.AccountID,
		"platform":   account.Platform,
		"error":      errText,
	})
	if err != nil {
		payload = nil
	}

	if err := d.notifier.Create(ctx, account.UserID, typ, title, message, payload); err != nil {
		d.logger.WithError(err).WithField("post_id", p.ID).Warn("outcome notification failed")
	}
}

func (d *Dispatcher) publishEvent(event *kafka.PostEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishPostEvent(event); err != nil {
		d.logger.WithError(err).WithField("kind", event.Kind).Warn("lifecycle event publish failed")
	}
}

func (d *Dispatcher) refreshStatusGauges(ctx context.Context) {
	counts, err := d.posts.CountByStatus(ctx)
	if err != nil {
		d.logger.WithError(err).Debug("post status counts unavailable")
		return
	}
	for status, count := range counts {
		metrics.SetPostStatusCount(status, count)
	}
}
