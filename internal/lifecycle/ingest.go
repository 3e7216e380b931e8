package lifecycle

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/eventdesk/internal/events"
	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/retry"
)

// Result is the outcome of Submit.
type Result struct {
	Event   *model.Event `json:"event"`
	Created bool         `json:"created"`
	// Warning is set when the event was stored but could not be published.
	Warning string `json:"warning,omitempty"`
}

// Ingest persists an event reported by the producer. Events without an ID,
// or with an ID the store does not know, are inserted; the original payload
// is always the inserted payload and any retry history must account for
// exactly retryCount retries. Events with a known ID update the stored
// record's status, message, error details and, when present, payload,
// payload format and integration name. Retry bookkeeping and the original
// payload are never taken from the producer on update. Re-ingesting an
// unchanged event is a no-op, and so is a copy carrying a version older than
// the stored one.
func (e *Engine) Ingest(ctx context.Context, in *model.Event) (_ *model.Event, err error) {
	ctx, done := e.begin(ctx, "ingest", eventID(in))
	defer func() { done(err) }()

	ev, _, err := e.ingest(ctx, in)
	return ev, err
}

// Submit ingests in and then publishes the stored event to the events
// topic, keyed by order ID. A publish failure does not undo the write; it
// is logged and reported in Result.Warning.
func (e *Engine) Submit(ctx context.Context, in *model.Event) (_ *Result, err error) {
	ctx, done := e.begin(ctx, "submit", eventID(in))
	defer func() { done(err) }()

	ev, created, err := e.ingest(ctx, in)
	if err != nil {
		return nil, err
	}
	res := &Result{Event: ev, Created: created}
	if perr := e.publish(ctx, events.TopicEvents, ev.OrderID, ev); perr != nil {
		e.logger.Warn("event stored but not published", "event_id", ev.ID, "order_id", ev.OrderID, "err", perr)
		res.Warning = perr.Error()
	}
	return res, nil
}

func (e *Engine) ingest(ctx context.Context, in *model.Event) (*model.Event, bool, error) {
	if in == nil {
		return nil, false, model.NewError(model.KindValidation, "event is required")
	}
	ev := in.Clone()
	model.NormalizeEvent(ev)
	if err := model.ValidateEvent(ev); err != nil {
		return nil, false, err
	}
	if ev.RetryCount > retry.MaxRetries {
		return nil, false, &model.ValidationError{Errors: []model.FieldError{{
			Field:   "retryCount",
			Message: fmt.Sprintf("must not exceed %d", retry.MaxRetries),
		}}}
	}

	if ev.ID != "" {
		cur, err := e.get(ctx, ev.ID)
		switch {
		case err == nil:
			next, err := e.merge(ctx, cur, ev)
			return next, false, err
		case model.KindOf(err) != model.KindNotFound:
			return nil, false, err
		}
	}
	created, err := e.insert(ctx, ev)
	return created, err == nil, err
}

func (e *Engine) insert(ctx context.Context, ev *model.Event) (*model.Event, error) {
	if len(ev.RetryHistory) != ev.RetryCount {
		return nil, &model.ValidationError{Errors: []model.FieldError{{
			Field:   "retryHistory",
			Message: fmt.Sprintf("has %d entries but retryCount is %d", len(ev.RetryHistory), ev.RetryCount),
		}}}
	}
	now := e.timestamp()
	ev.OriginalPayload = ev.Payload
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.UpdatedAt = now
	if ev.UpdatedAt.Before(ev.CreatedAt) {
		ev.UpdatedAt = ev.CreatedAt
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if _, err := e.store.InsertEvent(sctx, ev); err != nil {
		return nil, storeError(err, ev.ID)
	}
	e.metrics.RecordTransition(ctx, "", ev.Status)
	e.notify(ChangeCreated, ev)
	e.logger.Debug("event ingested", "event_id", ev.ID, "order_id", ev.OrderID, "status", ev.Status)
	return ev, nil
}

func (e *Engine) merge(ctx context.Context, cur, in *model.Event) (*model.Event, error) {
	// A copy older than the stored record, such as our own Submit publish
	// redelivered after a retry, must not roll it back.
	if in.Version > 0 && in.Version < cur.Version {
		e.logger.Debug("stale event copy ignored", "event_id", cur.ID, "version", in.Version, "stored_version", cur.Version)
		return cur, nil
	}
	next := cur.Clone()
	next.OrderID = in.OrderID
	next.Status = in.Status
	next.Message = in.Message
	next.ErrorDetails = in.ErrorDetails
	if in.Payload != "" {
		next.Payload = in.Payload
		if next.OriginalPayload == "" {
			next.OriginalPayload = in.Payload
		}
	}
	if in.PayloadFormat != "" {
		next.PayloadFormat = in.PayloadFormat
	}
	if in.IntegrationName != "" {
		next.IntegrationName = in.IntegrationName
	}
	if sameState(cur, next) {
		return cur, nil
	}

	next.UpdatedAt = e.timestamp()
	if next.UpdatedAt.Before(next.CreatedAt) {
		next.UpdatedAt = next.CreatedAt
	}
	if err := e.update(ctx, next, cur.Version); err != nil {
		return nil, err
	}
	if cur.Status != next.Status {
		e.metrics.RecordTransition(ctx, cur.Status, next.Status)
	}
	e.notify(ChangeUpdated, next)
	e.logger.Debug("event updated by producer", "event_id", next.ID, "from", cur.Status, "to", next.Status)
	return next, nil
}

// sameState reports whether a and b agree on every producer-owned field.
func sameState(a, b *model.Event) bool {
	return a.OrderID == b.OrderID &&
		a.Status == b.Status &&
		a.Message == b.Message &&
		a.Payload == b.Payload &&
		a.OriginalPayload == b.OriginalPayload &&
		a.PayloadFormat == b.PayloadFormat &&
		a.ErrorDetails == b.ErrorDetails &&
		a.IntegrationName == b.IntegrationName
}

func eventID(ev *model.Event) string {
	if ev == nil {
		return ""
	}
	return ev.ID
}
