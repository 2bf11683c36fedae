// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. Compile events and cache-invalidation notices travel
// as JSON; consumers decode them in a MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/classic-search-compat/pkg/resilience"
)

// ErrMalformed marks a message that can never be processed. The consumer
// commits such messages instead of retrying them.
var ErrMalformed = errors.New("malformed message")

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ReaderOptions selects how a consumer joins its topic. Every searcher needs
// its own Group for broadcast topics such as cache invalidation, and
// FromLatest skips notices published before the process started.
type ReaderOptions struct {
	Group      string
	FromLatest bool
	// Retry bounds redelivery of a message whose handler keeps failing.
	Retry resilience.RetryConfig
}

// ConsumerStats counts messages by how the consumer disposed of them.
type ConsumerStats struct {
	Processed int64 `json:"processed"`
	Malformed int64 `json:"malformed"`
	Abandoned int64 `json:"abandoned"`
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger

	processed atomic.Int64
	malformed atomic.Int64
	abandoned atomic.Int64
}

// NewConsumer creates a Consumer for topic. An empty opts.Group falls back
// to the configured consumer group.
func NewConsumer(cfg config.KafkaConfig, topic string, opts ReaderOptions, handler MessageHandler) *Consumer {
	group := opts.Group
	if group == "" {
		group = cfg.ConsumerGroup
	}
	start := kafka.FirstOffset
	if opts.FromLatest {
		start = kafka.LastOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: start,
	})

	return &Consumer{
		reader:  r,
		handler: handler,
		retry:   opts.Retry,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", group),
	}
}

// Start enters the consume loop until ctx is cancelled. A message is
// committed once its handler succeeds, reports ErrMalformed, or has failed
// every retry attempt, so one bad message never stalls the partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		c.dispatch(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	err := resilience.Retry(ctx, "kafka-handle", c.retry, func() error {
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			if errors.Is(err, ErrMalformed) {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	})
	switch {
	case err == nil:
		c.processed.Add(1)
	case errors.Is(err, ErrMalformed):
		c.malformed.Add(1)
		c.logger.Warn("skipping malformed message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
	default:
		c.abandoned.Add(1)
		c.logger.Error("abandoning message after retries",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// Stats returns the running disposition counts.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Malformed: c.malformed.Load(),
		Abandoned: c.abandoned.Load(),
	}
}

// DecodeJSON unmarshals a message value into T. Decoding failures wrap
// ErrMalformed.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return result, nil
}
