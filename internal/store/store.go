// Package store defines the persistence interface for integration events.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

var (
	// ErrNotFound is returned when no event has the requested ID.
	ErrNotFound = errors.New("event not found")

	// ErrConflict is returned by UpdateEvent when the stored version no
	// longer matches the caller's expected version.
	ErrConflict = errors.New("event version conflict")
)

// Store is a keyed collection of event records.
//
// Returned events are copies; callers may mutate them freely.
type Store interface {
	// InsertEvent persists a new event and returns its ID. An empty
	// e.ID is replaced by a generated one. The stored version starts at 1
	// and e is updated with the assigned ID and version.
	InsertEvent(ctx context.Context, e *model.Event) (string, error)

	// UpdateEvent replaces the stored event with the same ID if its current
	// version equals expectedVersion, then bumps the version. It returns
	// ErrNotFound for unknown IDs and ErrConflict on version mismatch.
	UpdateEvent(ctx context.Context, e *model.Event, expectedVersion int64) error

	GetEvent(ctx context.Context, id string) (*model.Event, error)
	FindByStatus(ctx context.Context, status model.Status) ([]*model.Event, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*model.Event, error)
	FindAll(ctx context.Context) ([]*model.Event, error)

	// ListEvents returns events matching filter, newest first.
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
