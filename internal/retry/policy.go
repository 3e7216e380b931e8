// Package retry holds the bounded-retry policy for failed events. Everything
// here is pure: callers own persistence and publication.
package retry

import (
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// MaxRetries is the ceiling on user-initiated retries of a single event.
const MaxRetries = 3

// CanRetry reports whether e still has retries left. An event that has used
// all of them is permanently non-retryable, whatever its status.
func CanRetry(e *model.Event) bool {
	return e.RetryCount < MaxRetries
}

// NextHistoryEntry builds the history entry for the retry about to be applied
// to e. RetryNumber is the count after the increment, so the first retry is 1.
func NextHistoryEntry(e *model.Event, req *model.RetryRequest, now time.Time) model.RetryHistoryEntry {
	return model.RetryHistoryEntry{
		RetryNumber: e.RetryCount + 1,
		Timestamp:   now,
		UserNotes:   req.UserNotes,
		OldPayload:  e.OriginalPayload,
		NewPayload:  req.UpdatedPayload,
	}
}

// Check returns the error a retry of e would fail with, or nil.
// The limit is checked before status.
func Check(e *model.Event) error {
	if !CanRetry(e) {
		return model.NewError(model.KindRetryLimitExceeded,
			"event %s has reached the maximum of %d retries", e.ID, MaxRetries)
	}
	if e.Status != model.StatusFailed {
		return model.NewError(model.KindNotFound,
			"no FAILED event with id %s (status is %s)", e.ID, e.Status)
	}
	return nil
}

// Apply returns a copy of e with req applied: retry count incremented,
// history appended, payload and format overwritten and status reset to
// PENDING. e itself is not modified.
func Apply(e *model.Event, req *model.RetryRequest, now time.Time) (*model.Event, error) {
	if err := Check(e); err != nil {
		return nil, err
	}

	next := e.Clone()
	entry := NextHistoryEntry(e, req, now)
	next.RetryCount++
	next.RetryHistory = append(next.RetryHistory, entry)
	if next.OriginalPayload == "" {
		next.OriginalPayload = e.Payload
	}
	next.Payload = req.UpdatedPayload
	next.PayloadFormat = req.PayloadFormat
	next.Status = model.StatusPending
	next.UpdatedAt = now
	return next, nil
}

// Message builds the notification published on the retry topic for an event
// that has just been retried. prior is the event as it was before Apply.
func Message(prior, retried *model.Event, req *model.RetryRequest, now time.Time) model.RetryMessage {
	return model.RetryMessage{
		EventID:              retried.ID,
		OrderID:              retried.OrderID,
		OriginalStatus:       prior.Status,
		UpdatedPayload:       req.UpdatedPayload,
		OriginalPayload:      retried.OriginalPayload,
		OriginalErrorDetails: prior.ErrorDetails,
		RetryAttempt:         retried.RetryCount,
		RetryTimestamp:       now,
		UserNotes:            req.UserNotes,
		PayloadFormat:        req.PayloadFormat,
	}
}

// Replay rebuilds the notification for e's most recent retry from its
// history. It fails unless e is PENDING with a complete history, which is
// the state a committed retry leaves behind.
func Replay(e *model.Event) (model.RetryMessage, error) {
	if e.RetryCount == 0 || len(e.RetryHistory) != e.RetryCount {
		return model.RetryMessage{}, model.NewError(model.KindInvalidState,
			"event %s has no retry to republish", e.ID)
	}
	if e.Status != model.StatusPending {
		return model.RetryMessage{}, model.NewError(model.KindInvalidState,
			"event %s is %s; only a PENDING retried event can be republished", e.ID, e.Status)
	}
	last := e.RetryHistory[len(e.RetryHistory)-1]
	return model.RetryMessage{
		EventID:              e.ID,
		OrderID:              e.OrderID,
		OriginalStatus:       model.StatusFailed,
		UpdatedPayload:       last.NewPayload,
		OriginalPayload:      e.OriginalPayload,
		OriginalErrorDetails: e.ErrorDetails,
		RetryAttempt:         e.RetryCount,
		RetryTimestamp:       last.Timestamp,
		UserNotes:            last.UserNotes,
		PayloadFormat:        e.PayloadFormat,
	}, nil
}
