package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"tradegate/pkg/logger"
)

// Consumer reads one or more topics as part of a consumer group
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// MessageHandler processes one message. A handler error is logged and consumption continues.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	return &Consumer{
		reader: reader,
		log:    log.Component("kafka_consumer").With("group_id", cfg.GroupID, "topics", cfg.Topics),
	}
}

// Consume blocks until ctx is cancelled, passing each message to handler
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Infow("consumer started")

	for {
		// Check before blocking so shutdown never waits on I/O
		select {
		case <-ctx.Done():
			c.log.Infow("consumer stopped")
			return ctx.Err()
		default:
		}

		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Infow("consumer stopped")
				return ctx.Err()
			}
			c.log.Errorw("read failed", "error", err)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Errorw("handler failed", "topic", msg.Topic, "key", string(msg.Key), "error", err)
		}
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
