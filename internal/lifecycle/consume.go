package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/eventdesk/internal/events"
	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// Consume subscribes the engine to the events topic as consumer group
// group. Each delivery is decoded and ingested; see HandleDelivery. Call
// the returned function to stop consuming.
func (e *Engine) Consume(ctx context.Context, sub events.Subscriber, group string) (func(), error) {
	stop, err := sub.Subscribe(ctx, events.TopicEvents, group, e.HandleDelivery)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", events.TopicEvents, err)
	}
	e.logger.Info("consuming events", "group", group)
	return stop, nil
}

// HandleDelivery ingests one message from the events topic. Undecodable
// or invalid messages return a validation error so the bus drops them;
// store failures return retryable errors so the bus redelivers.
func (e *Engine) HandleDelivery(ctx context.Context, d events.Delivery) error {
	var ev model.Event
	if err := json.Unmarshal(d.Data, &ev); err != nil {
		return &model.ValidationError{Errors: []model.FieldError{{
			Field: "message", Message: fmt.Sprintf("is not a valid event: %v", err),
		}}}
	}
	if ev.OrderID == "" {
		ev.OrderID = d.Key
	}
	_, err := e.Ingest(ctx, &ev)
	return err
}
