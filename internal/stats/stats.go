// Package stats computes aggregate counts over stored events.
package stats

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/store"
)

// UnknownIntegration is the summary key for events without an integration name.
const UnknownIntegration = "unknown"

// Snapshot is a point-in-time count of events by status.
type Snapshot struct {
	Total              int     `json:"total"`
	Success            int     `json:"success"`
	Failed             int     `json:"failed"`
	Pending            int     `json:"pending"`
	SuccessRatePercent float64 `json:"successRatePercent"`
}

// Summarize counts events by status. The success rate is 0 for an empty set.
func Summarize(events []*model.Event) Snapshot {
	var s Snapshot
	for _, e := range events {
		s.Total++
		switch e.Status {
		case model.StatusSuccess:
			s.Success++
		case model.StatusFailed:
			s.Failed++
		case model.StatusPending:
			s.Pending++
		}
	}
	if s.Total > 0 {
		s.SuccessRatePercent = float64(s.Success) * 100 / float64(s.Total)
	}
	return s
}

// ByIntegration counts events per integration name.
func ByIntegration(events []*model.Event) map[string]int {
	out := make(map[string]int)
	for _, e := range events {
		name := e.IntegrationName
		if name == "" {
			name = UnknownIntegration
		}
		out[name]++
	}
	return out
}

// Aggregator computes statistics by scanning the store.
type Aggregator struct {
	store store.Store
}

func New(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Compute returns counts over every stored event.
func (a *Aggregator) Compute(ctx context.Context) (Snapshot, error) {
	events, err := a.store.FindAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading events: %w", err)
	}
	return Summarize(events), nil
}

// IntegrationSummary returns the number of events per integration name.
func (a *Aggregator) IntegrationSummary(ctx context.Context) (map[string]int, error) {
	events, err := a.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return ByIntegration(events), nil
}
