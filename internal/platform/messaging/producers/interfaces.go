package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher publishes keyed messages to a single topic. Keys hold
// per-account ordering, so callers key by account ID.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
