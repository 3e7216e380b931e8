package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/store/memory"
)

func seedStore(t *testing.T, events ...*model.Event) *memory.Store {
	t.Helper()
	st := memory.New()
	for _, e := range events {
		if _, err := st.InsertEvent(context.Background(), e); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}
	return st
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), memory.New(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.EventCount != 0 || h.Stats.Total != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_WithEvents(t *testing.T) {
	now := time.Now().UTC()
	st := seedStore(t,
		&model.Event{ID: "ev-zzz", OrderID: "PO-2", Status: model.StatusSuccess, CreatedAt: now, UpdatedAt: now},
		&model.Event{
			ID: "ev-aaa", OrderID: "PO-1", Status: model.StatusPending, Payload: "<b/>", OriginalPayload: "<a/>",
			RetryCount: 1, RetryHistory: []model.RetryHistoryEntry{{RetryNumber: 1, Timestamp: now, OldPayload: "<a/>", NewPayload: "<b/>"}},
			CreatedAt: now, UpdatedAt: now,
		},
	)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), st, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.EventCount != 2 || h.Stats.Success != 1 || h.Stats.Pending != 1 {
		t.Fatalf("header = %+v", h)
	}

	var got []model.Event
	for _, line := range lines[1:] {
		var rec struct {
			Type string      `json:"type"`
			Data model.Event `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		if rec.Type != "event" {
			t.Fatalf("record type = %q, want event", rec.Type)
		}
		got = append(got, rec.Data)
	}
	if got[0].ID != "ev-aaa" || got[1].ID != "ev-zzz" {
		t.Fatalf("events not sorted: got %q, %q", got[0].ID, got[1].ID)
	}
	if len(got[0].RetryHistory) != 1 || got[0].OriginalPayload != "<a/>" {
		t.Fatalf("retry state not exported: %+v", got[0])
	}
	if strings.Contains(buf.String(), `\u003c`) {
		t.Fatal("payloads should not be HTML-escaped")
	}
}

func TestExportJSONL_StoreError(t *testing.T) {
	st := memory.New()
	st.Close()
	if err := ExportJSONL(context.Background(), st, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error from closed store")
	}
}

func TestTakeSnapshot_Digest(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := seedStore(t, &model.Event{ID: "ev-1", OrderID: "PO-1", Status: model.StatusFailed, CreatedAt: now, UpdatedAt: now})

	first, err := TakeSnapshot(ctx, st, now)
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if first.Events != 1 || first.Stats.Failed != 1 || !first.Taken.Equal(now) || len(first.Digest) != 64 {
		t.Fatalf("snapshot = %+v", first)
	}
	if !strings.Contains(string(first.Data), `"timestamp":"2026-03-01T12:00:00Z"`) {
		t.Fatalf("header does not carry the snapshot time:\n%s", first.Data)
	}

	later, err := TakeSnapshot(ctx, st, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if later.Digest != first.Digest {
		t.Fatal("digest changed although no event did")
	}

	ev, _ := st.GetEvent(ctx, "ev-1")
	ev.Status = model.StatusSuccess
	if err := st.UpdateEvent(ctx, ev, ev.Version); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	changed, err := TakeSnapshot(ctx, st, now)
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if changed.Digest == first.Digest {
		t.Fatal("digest unchanged after an event changed")
	}
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
