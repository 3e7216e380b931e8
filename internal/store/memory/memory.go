// Package memory implements store.Store in process memory. It backs tests
// and the EVENTDESK_STORE=memory development mode; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alfredjeanlab/eventdesk/internal/idgen"
	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/store"
)

// Store is a mutex-guarded map of events keyed by ID.
type Store struct {
	mu     sync.RWMutex
	events map[string]*model.Event
	closed bool
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{events: make(map[string]*model.Event)}
}

func (s *Store) InsertEvent(ctx context.Context, e *model.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errClosed
	}

	if e.ID == "" {
		id, err := idgen.NewEventID()
		if err != nil {
			return "", err
		}
		e.ID = id
	}
	if _, exists := s.events[e.ID]; exists {
		return "", fmt.Errorf("insert event %s: duplicate id", e.ID)
	}
	e.Version = 1
	s.events[e.ID] = e.Clone()
	return e.ID, nil
}

func (s *Store) UpdateEvent(ctx context.Context, e *model.Event, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	cur, ok := s.events[e.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return store.ErrConflict
	}
	e.Version = expectedVersion + 1
	s.events[e.ID] = e.Clone()
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) FindByStatus(ctx context.Context, status model.Status) ([]*model.Event, error) {
	return s.ListEvents(ctx, model.EventFilter{Status: status})
}

func (s *Store) FindByOrderID(ctx context.Context, orderID string) ([]*model.Event, error) {
	return s.ListEvents(ctx, model.EventFilter{OrderID: orderID})
}

func (s *Store) FindAll(ctx context.Context) ([]*model.Event, error) {
	return s.ListEvents(ctx, model.EventFilter{})
}

func (s *Store) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	var result []*model.Event
	for _, e := range s.events {
		if matches(e, filter) {
			result = append(result, e.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return ctx.Err()
}

// Close marks the store closed; later calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var errClosed = fmt.Errorf("memory store is closed")

func matches(e *model.Event, f model.EventFilter) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.OrderID != "" && e.OrderID != f.OrderID {
		return false
	}
	if f.OrderIDContains != "" &&
		!strings.Contains(strings.ToLower(e.OrderID), strings.ToLower(f.OrderIDContains)) {
		return false
	}
	if f.IntegrationName != "" && e.IntegrationName != f.IntegrationName {
		return false
	}
	if !f.CreatedAfter.IsZero() && e.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && e.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	return true
}
