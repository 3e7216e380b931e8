package events

import (
	"context"
	"fmt"
)

// Topic is a logical bus topic. Each topic maps to one NATS subject under the
// configured prefix.
type Topic string

const (
	// TopicEvents carries integration events from producers to the engine.
	TopicEvents Topic = "events"
	// TopicRetry carries RetryMessage notifications for retried events.
	TopicRetry Topic = "retry"
)

// KeyHeader is the message header carrying the partition key (the order id).
const KeyHeader = "Eventdesk-Key"

// Subject returns the NATS subject for topic under prefix.
func Subject(prefix string, topic Topic) string {
	return fmt.Sprintf("%s.%s", prefix, topic)
}

// Delivery is one message handed to a Handler.
type Delivery struct {
	Topic   Topic
	Key     string
	Data    []byte
	Attempt int
}

// Handler processes one delivery. A nil return acknowledges the message.
// Errors for which model.IsRetryable is true cause redelivery; any other
// error terminates the message.
type Handler func(ctx context.Context, d Delivery) error

// Identified is implemented by values that carry a stable message id. The
// bus uses it for broker-side deduplication.
type Identified interface {
	MessageID() string
}

// Publisher is the interface for emitting messages.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, key string, value any) error
	Close() error
}
