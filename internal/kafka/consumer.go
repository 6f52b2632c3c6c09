package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"social_automation/internal/metrics"
)

// NotificationCreator is the notification store surface the consumer writes
// through. Rule checks and fan-out happen behind it.
type NotificationCreator interface {
	Create(ctx context.Context, userID int64, typ, title, message string, payload json.RawMessage) error
}

// Consumer turns inbound engagement events (produced by the webhook layer)
// into user notifications.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler sarama.ConsumerGroupHandler
	logger  *logrus.Logger
}

func NewConsumer(
	brokers []string,
	groupID string,
	topic string,
	notifier NotificationCreator,
	logger *logrus.Logger,
) (*Consumer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cfg := sarama.NewConfig()

	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	// Commit by hand, only after the notification is durably written.
	cfg.Consumer.Offsets.AutoCommit.Enable = false

	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRange(),
	}
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	h := &engagementGroupHandler{
		notifier: notifier,
		logger:   logger,
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: h,
		logger:  logger,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.WithError(err).Warn("consumer group error")
			metrics.IncKafkaError("consumer", "group")
		}
	}()

	for {
		err := c.group.Consume(ctx, []string{c.topic}, c.handler)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.WithError(err).Warn("consume loop error")
			time.Sleep(1 * time.Second)
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type engagementGroupHandler struct {
	notifier NotificationCreator
	logger   *logrus.Logger
}

func (h *engagementGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *engagementGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *engagementGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for msg := range claim.Messages() {
		var ev EngagementEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.UserID <= 0 || ev.Kind == "" {
			// Malformed payloads cannot succeed on redelivery; skip and move on.
			h.logger.WithFields(logrus.Fields{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Warn("skipping malformed engagement event")
			metrics.IncKafkaError("consumer", "decode")
			session.MarkMessage(msg, "")
			session.Commit()
			continue
		}

		// Retry until the write lands or shutdown; the offset stays
		// uncommitted so nothing is lost across restarts.
		if err := h.createWithRetry(session.Context(), &ev, msg.Value); err != nil {
			metrics.IncKafkaError("consumer", "process")
			return err
		}

		metrics.IncKafkaEngagementProcessed()
		session.MarkMessage(msg, "")
		session.Commit()
	}
	return nil
}

func (h *engagementGroupHandler) createWithRetry(ctx context.Context, ev *EngagementEvent, payload []byte) error {
	attempt := 0

	for {
		attempt++
		err := h.notifier.Create(ctx, ev.UserID, "engagement", engagementTitle(ev.Kind), ev.Summary, payload)
		if err == nil {
			return nil
		}

		backoff := retryBackoff(attempt)
		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": ev.UserID,
			"kind":    ev.Kind,
			"attempt": attempt,
		}).Warnf("create engagement notification failed, retry in %s", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func engagementTitle(kind string) string {
	switch kind {
	case "mention":
		return "You were mentioned"
	case "comment":
		return "New comment"
	case "direct_message":
		return "New message"
	default:
		return "New engagement"
	}
}

// linear backoff, capped at 30s
func retryBackoff(attempt int) time.Duration {
	d := time.Duration(attempt) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
