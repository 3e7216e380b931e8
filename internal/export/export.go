// Package export writes periodic JSONL snapshots of the event store to
// external destinations.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/stats"
	"github.com/alfredjeanlab/eventdesk/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string         `json:"version"`
	Type       string         `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	EventCount int            `json:"event_count"`
	Stats      stats.Snapshot `json:"stats"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Snapshot is one encoded export of the store.
type Snapshot struct {
	// Data is the JSONL document: a header line, then one line per event.
	Data []byte
	// Taken is the header timestamp.
	Taken  time.Time
	Events int
	Stats  stats.Snapshot
	// Digest is the hex SHA-256 of the event lines only, so two snapshots
	// of an unchanged store share a digest whatever their Taken time.
	Digest string
}

// TakeSnapshot encodes every stored event, sorted by ID, preceded by a
// header carrying the status counts and taken as its timestamp.
func TakeSnapshot(ctx context.Context, s store.Store, taken time.Time) (*Snapshot, error) {
	events, err := s.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ID < events[j].ID
	})

	snap := &Snapshot{
		Taken:  taken.UTC(),
		Events: len(events),
		Stats:  stats.Summarize(events),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  snap.Taken,
		EventCount: snap.Events,
		Stats:      snap.Stats,
	}); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	bodyStart := buf.Len()
	for _, e := range events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return nil, fmt.Errorf("encode event %s: %w", e.ID, err)
		}
	}

	sum := sha256.Sum256(buf.Bytes()[bodyStart:])
	snap.Digest = hex.EncodeToString(sum[:])
	snap.Data = buf.Bytes()
	return snap, nil
}

// ExportJSONL writes a snapshot taken now to w.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	snap, err := TakeSnapshot(ctx, s, time.Now())
	if err != nil {
		return err
	}
	_, err = w.Write(snap.Data)
	return err
}
