package events

import "context"

// Subscriber delivers messages from the bus to a Handler.
type Subscriber interface {
	// Subscribe attaches handler to topic as the consumer group named group.
	// Messages are delivered one at a time, in order. Call the returned
	// cancel function to stop delivery.
	Subscribe(ctx context.Context, topic Topic, group string, handler Handler) (func(), error)
}
