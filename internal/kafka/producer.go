package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"social_automation/internal/metrics"
)

type Producer struct {
	topic    string
	producer sarama.SyncProducer
}

func NewSyncProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 500 * time.Millisecond

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create sarama sync producer: %w", err)
	}

	return &Producer{
		topic:    topic,
		producer: prod,
	}, nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// PublishPostEvent sends one lifecycle envelope, keyed by account so events
// for the same account stay ordered within a partition.
func (p *Producer) PublishPostEvent(event *PostEvent) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if event.PostID <= 0 {
		return fmt.Errorf("invalid post id")
	}

	b, err := json.Marshal(event)
	if err != nil {
		metrics.IncKafkaError("producer", "marshal")
		return fmt.Errorf("marshal post event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(strconv.FormatInt(event.AccountID, 10)),
		Value:     sarama.ByteEncoder(b),
		Timestamp: time.Now(),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		metrics.IncKafkaError("producer", "send")
		return fmt.Errorf("send post event: %w", err)
	}

	metrics.IncKafkaEventSent()
	return nil
}
