package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/store"
)

// Destination receives export snapshots.
type Destination interface {
	// Name identifies the destination in logs and errors.
	Name() string
	Write(ctx context.Context, snap *Snapshot) error
}

// Scheduler snapshots the store on an interval and hands each snapshot to
// its destinations. A destination whose last successful write had the same
// digest is skipped, so an idle store is not re-uploaded every tick.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	written map[string]string // destination name -> digest last written

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
		written:      make(map[string]string),
	}
}

// Start exports immediately and then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.export(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.export(ctx)
			}
		}
	}()
}

// Stop cancels the schedule and waits for an export in progress.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) export(ctx context.Context) {
	if err := s.ExportOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("export incomplete", "err", err)
	}
}

// ExportOnce takes one snapshot and writes it to every destination that
// has not already received the same content. A failing destination does
// not stop the others; all failures are returned together.
func (s *Scheduler) ExportOnce(ctx context.Context) error {
	snap, err := TakeSnapshot(ctx, s.store, s.now())
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	var errs []error
	for _, dest := range s.destinations {
		name := dest.Name()
		if s.lastDigest(name) == snap.Digest {
			s.logger.Debug("export unchanged, skipped", "destination", name, "events", snap.Events)
			continue
		}
		start := time.Now()
		if err := dest.Write(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		s.setDigest(name, snap.Digest)
		s.logger.Info("events exported",
			"destination", name,
			"events", snap.Events,
			"failed", snap.Stats.Failed,
			"bytes", len(snap.Data),
			"duration", time.Since(start),
		)
	}
	return errors.Join(errs...)
}

func (s *Scheduler) lastDigest(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written[name]
}

func (s *Scheduler) setDigest(name, digest string) {
	s.mu.Lock()
	s.written[name] = digest
	s.mu.Unlock()
}
