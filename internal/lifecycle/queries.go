package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/stats"
)

// DefaultRecentLimit is the number of events Recent returns when no limit
// is given.
const DefaultRecentLimit = 50

// Get returns the event with the given ID.
func (e *Engine) Get(ctx context.Context, id string) (_ *model.Event, err error) {
	ctx, done := e.begin(ctx, "get", id)
	defer func() { done(err) }()
	return e.get(ctx, id)
}

// List returns events matching filter, newest first.
func (e *Engine) List(ctx context.Context, filter model.EventFilter) (_ []*model.Event, err error) {
	ctx, done := e.begin(ctx, "list", "")
	defer func() { done(err) }()

	if filter.Status != "" {
		filter.Status = model.ParseStatus(string(filter.Status))
		if !filter.Status.IsValid() {
			return nil, &model.ValidationError{Errors: []model.FieldError{{
				Field: "status", Message: fmt.Sprintf("invalid value %q", filter.Status),
			}}}
		}
	}
	if !filter.CreatedAfter.IsZero() && !filter.CreatedBefore.IsZero() && filter.CreatedBefore.Before(filter.CreatedAfter) {
		return nil, &model.ValidationError{Errors: []model.FieldError{{
			Field: "before", Message: "must not be earlier than after",
		}}}
	}
	if filter.Limit < 0 {
		return nil, &model.ValidationError{Errors: []model.FieldError{{
			Field: "limit", Message: "must not be negative",
		}}}
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	out, err := e.store.ListEvents(sctx, filter)
	if err != nil {
		return nil, storeError(err, "")
	}
	return out, nil
}

// Search returns events whose order ID contains substr, ignoring case.
func (e *Engine) Search(ctx context.Context, substr string) ([]*model.Event, error) {
	return e.List(ctx, model.EventFilter{OrderIDContains: strings.TrimSpace(substr)})
}

// FilterByStatus returns events with the given status.
func (e *Engine) FilterByStatus(ctx context.Context, status model.Status) ([]*model.Event, error) {
	if status == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "status", Message: "is required"}}}
	}
	return e.List(ctx, model.EventFilter{Status: status})
}

// Recent returns the newest events. A non-positive limit means
// DefaultRecentLimit.
func (e *Engine) Recent(ctx context.Context, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return e.List(ctx, model.EventFilter{Limit: limit})
}

// Failed returns every FAILED event.
func (e *Engine) Failed(ctx context.Context) ([]*model.Event, error) {
	return e.List(ctx, model.EventFilter{Status: model.StatusFailed})
}

// ByIntegration returns events for one integration.
func (e *Engine) ByIntegration(ctx context.Context, name string) ([]*model.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "integrationName", Message: "is required"}}}
	}
	return e.List(ctx, model.EventFilter{IntegrationName: name})
}

// Between returns events created in [start, end].
func (e *Engine) Between(ctx context.Context, start, end time.Time) ([]*model.Event, error) {
	if start.IsZero() || end.IsZero() {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "range", Message: "start and end are required"}}}
	}
	return e.List(ctx, model.EventFilter{CreatedAfter: start.UTC(), CreatedBefore: end.UTC()})
}

// Stats returns status counts over all stored events.
func (e *Engine) Stats(ctx context.Context) (_ stats.Snapshot, err error) {
	ctx, done := e.begin(ctx, "stats", "")
	defer func() { done(err) }()

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	snap, err := e.stats.Compute(sctx)
	if err != nil {
		return stats.Snapshot{}, storeError(err, "")
	}
	return snap, nil
}

// IntegrationSummary returns the number of events per integration name.
func (e *Engine) IntegrationSummary(ctx context.Context) (_ map[string]int, err error) {
	ctx, done := e.begin(ctx, "integration_summary", "")
	defer func() { done(err) }()

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	out, err := e.stats.IntegrationSummary(sctx)
	if err != nil {
		return nil, storeError(err, "")
	}
	return out, nil
}

// Ping checks that the store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return storeError(e.store.Ping(sctx), "")
}
