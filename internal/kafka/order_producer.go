package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/exlearn/billing-service/internal/domain"
	"github.com/exlearn/billing-service/pkg/logger"

	"github.com/IBM/sarama"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderPersistFailed = "order.persist_failed"
)

// OrderEvent is the message body published for order lifecycle events.
// order.persist_failed events feed the manual reconciliation queue:
// they mark purchases where credits were debited but the order write
// did not land.
type OrderEvent struct {
	OrderID   string              `json:"order_id,omitempty"`
	UserID    string              `json:"user_id"`
	PayerID   string              `json:"payer_id"`
	Category  domain.ItemCategory `json:"item_category"`
	ItemRefID string              `json:"item_ref_id"`
	Amount    int64               `json:"amount"`
	Quantity  int                 `json:"quantity"`
	Currency  string              `json:"currency"`
	Timestamp time.Time           `json:"timestamp"`
}

// OrderProducer publishes order lifecycle events.
type OrderProducer interface {
	PublishOrderCreated(ctx context.Context, event OrderEvent) error
	PublishOrderPersistFailed(ctx context.Context, event OrderEvent) error
	Close() error
}

type kafkaOrderProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewOrderProducer creates a sarama-backed order event producer.
func NewOrderProducer(brokers []string, log *logger.Logger) (OrderProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create producer: %w", err)
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return &kafkaOrderProducer{producer: producer, log: log}, nil
}

// PublishOrderCreated publishes an order.created event
func (p *kafkaOrderProducer) PublishOrderCreated(ctx context.Context, event OrderEvent) error {
	return p.publishEvent(TopicOrderCreated, event)
}

// PublishOrderPersistFailed publishes an order.persist_failed event
func (p *kafkaOrderProducer) PublishOrderPersistFailed(ctx context.Context, event OrderEvent) error {
	return p.publishEvent(TopicOrderPersistFailed, event)
}

func (p *kafkaOrderProducer) publishEvent(topic string, event OrderEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	// Key by payer so all events for one payer land in one partition.
	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.PayerID),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(topic),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	p.log.Info("Published order event to topic %s: partition=%d offset=%d", topic, partition, offset)
	return nil
}

// Close shuts down the producer
func (p *kafkaOrderProducer) Close() error {
	return p.producer.Close()
}
