package lifecycle

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/eventdesk/internal/events"
	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/retry"
)

// Reprocess moves a FAILED event back to PENDING and clears its error
// details. Any other status is rejected without side effects.
func (e *Engine) Reprocess(ctx context.Context, id string) (_ *model.Event, err error) {
	ctx, done := e.begin(ctx, "reprocess", id)
	defer func() { done(err) }()

	cur, err := e.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != model.StatusFailed {
		return nil, model.NewError(model.KindInvalidState,
			"only FAILED events can be reprocessed (event %s is %s)", id, cur.Status)
	}

	next := cur.Clone()
	next.Status = model.StatusPending
	next.ErrorDetails = ""
	next.UpdatedAt = e.timestamp()
	if err := e.update(ctx, next, cur.Version); err != nil {
		return nil, err
	}
	e.metrics.RecordTransition(ctx, cur.Status, next.Status)
	e.notify(ChangeReprocessed, next)
	e.logger.Info("event reprocessed", "event_id", id, "order_id", next.OrderID)
	return next, nil
}

// Retry applies an edited payload to a FAILED event that has retries left,
// records the attempt in its history and publishes a RetryMessage on the
// retry topic.
//
// The store update commits before publishing. If the publish fails the
// updated event is returned together with a transport error; the retry is
// not rolled back.
func (e *Engine) Retry(ctx context.Context, req *model.RetryRequest) (_ *model.Event, err error) {
	if req == nil {
		return nil, model.NewError(model.KindValidation, "retry request is required")
	}
	ctx, done := e.begin(ctx, "retry", req.EventID)
	defer func() { done(err) }()

	r := *req
	r.EventID = strings.TrimSpace(r.EventID)
	r.PayloadFormat = model.ParsePayloadFormat(string(r.PayloadFormat))
	if err := model.ValidateRetryRequest(&r); err != nil {
		return nil, err
	}

	cur, err := e.get(ctx, r.EventID)
	if err != nil {
		if model.KindOf(err) == model.KindNotFound {
			return nil, model.WrapError(model.KindNotFound, err, "no FAILED event with id %s", r.EventID)
		}
		return nil, err
	}
	if r.PayloadFormat == "" && cur.PayloadFormat != "" {
		r.PayloadFormat = cur.PayloadFormat
		if perr := model.CheckPayload(r.UpdatedPayload, r.PayloadFormat); perr != nil {
			return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "updatedPayload", Message: perr.Error()}}}
		}
	}

	now := e.timestamp()
	next, err := retry.Apply(cur, &r, now)
	if err != nil {
		return nil, err
	}
	if err := e.update(ctx, next, cur.Version); err != nil {
		return nil, err
	}
	e.metrics.RecordTransition(ctx, cur.Status, next.Status)
	e.notify(ChangeRetried, next)
	e.logger.Info("event retried", "event_id", next.ID, "order_id", next.OrderID, "attempt", next.RetryCount)

	msg := retry.Message(cur, next, &r, now)
	if perr := e.publish(ctx, events.TopicRetry, next.OrderID, msg); perr != nil {
		e.logger.Error("retry committed but notification not published", "event_id", next.ID, "order_id", next.OrderID, "err", perr)
		return next, perr
	}
	return next, nil
}

// Republish publishes the retry notification for id's latest retry again.
// It serves the case where Retry committed but its publish failed: the
// event is PENDING by then, so a second Retry is refused. The message keeps
// the original message ID, so the bus drops it if the first publish did
// get through.
func (e *Engine) Republish(ctx context.Context, id string) (_ *model.RetryMessage, err error) {
	ctx, done := e.begin(ctx, "republish", id)
	defer func() { done(err) }()

	cur, err := e.get(ctx, id)
	if err != nil {
		return nil, err
	}
	msg, err := retry.Replay(cur)
	if err != nil {
		return nil, err
	}
	if err := e.publish(ctx, events.TopicRetry, cur.OrderID, msg); err != nil {
		return nil, err
	}
	e.logger.Info("retry notification republished", "event_id", id, "order_id", cur.OrderID, "attempt", msg.RetryAttempt)
	return &msg, nil
}
