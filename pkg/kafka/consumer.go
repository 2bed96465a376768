package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/warehouse-core/pkg/logging"
)

// MessageHandler handles one fetched message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// MessageReader is the subset of *kafka.Reader the consumer uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not retryable: the message is committed
// and skipped instead of being left for redelivery.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Consumer reads a single topic with a consumer group
type Consumer struct {
	topic   string
	group   string
	reader  MessageReader
	handler MessageHandler
	logger  *logging.Logger
}

// NewConsumer creates a group consumer for topic
func NewConsumer(config *Config, topic string, handler MessageHandler, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		GroupID:        config.ConsumerGroup,
		Topic:          topic,
		MinBytes:       config.MinBytes,
		MaxBytes:       config.MaxBytes,
		MaxWait:        config.MaxWait,
		CommitInterval: 0,
	})
	return NewConsumerWithReader(reader, topic, config.ConsumerGroup, handler, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader
func NewConsumerWithReader(reader MessageReader, topic, group string, handler MessageHandler, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{
		topic:   topic,
		group:   group,
		reader:  reader,
		handler: handler,
		logger:  logger.WithComponent("kafka-consumer"),
	}
}

// Run fetches and handles messages until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Starting consumer for topic", "topic", c.topic, "group", c.group)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", c.topic)
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("Error handling message",
				"topic", c.topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			if !IsPermanent(err) {
				// left uncommitted so the group redelivers after a rebalance or restart
				continue
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Error committing message", "topic", c.topic, "offset", msg.Offset, "error", err)
		}
	}
}

// Close closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
