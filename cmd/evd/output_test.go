package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/client"
	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/stats"
	"github.com/alfredjeanlab/eventdesk/internal/ui"
)

func TestMain(m *testing.M) {
	ui.ForceNoColor()
	os.Exit(m.Run())
}

func TestPrintEventTable(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := &model.Event{
		ID:              "ev-1",
		OrderID:         "ORD-1",
		Status:          model.StatusFailed,
		IntegrationName: "shipping",
		ErrorDetails:    "timeout",
		RetryCount:      1,
		Payload:         "<order/>",
		OriginalPayload: "<order broken/>",
		CreatedAt:       ts,
		UpdatedAt:       ts,
		RetryHistory: []model.RetryHistoryEntry{
			{RetryNumber: 1, Timestamp: ts, UserNotes: "fixed address"},
		},
	}

	var buf bytes.Buffer
	printEventTable(&buf, ev)
	out := buf.String()

	for _, want := range []string{
		"ID:           ev-1",
		"Order:        ORD-1",
		"Status:       FAILED",
		"Integration:  shipping",
		"Error:        timeout",
		"Retries:      1",
		"Payload:\n<order/>",
		"Original Payload:\n<order broken/>",
		"#1 [",
		"fixed address",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Message:") {
		t.Errorf("empty message should be omitted:\n%s", out)
	}
}

func TestPrintEventTable_SameOriginalPayload(t *testing.T) {
	var buf bytes.Buffer
	printEventTable(&buf, &model.Event{ID: "ev-1", OrderID: "o", Status: model.StatusPending, Payload: "x", OriginalPayload: "x"})
	if strings.Contains(buf.String(), "Original Payload") {
		t.Errorf("unchanged original payload should be omitted:\n%s", buf.String())
	}
}

func TestPrintEventListTable(t *testing.T) {
	list := []*model.Event{
		{ID: "ev-1", OrderID: "ORD-1", Status: model.StatusSuccess, Message: "delivered"},
		{ID: "ev-2", OrderID: "ORD-2", Status: model.StatusFailed, Message: "ignored", ErrorDetails: strings.Repeat("e", 60)},
	}

	var buf bytes.Buffer
	printEventListTable(&buf, list, 7)
	out := buf.String()

	if !strings.HasPrefix(out, "ID") {
		t.Errorf("expected header first:\n%s", out)
	}
	if !strings.Contains(out, "delivered") {
		t.Errorf("missing message for ev-1:\n%s", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("failed event should show error details, not message:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("e", 47)+"...") {
		t.Errorf("long error should be truncated:\n%s", out)
	}
	if !strings.Contains(out, "2 events (7 total)") {
		t.Errorf("missing footer:\n%s", out)
	}
}

func TestPrintStats(t *testing.T) {
	snap := &stats.Snapshot{Total: 4, Success: 3, Failed: 1, SuccessRatePercent: 75}

	var buf bytes.Buffer
	printStats(&buf, snap, map[string]int{"shipping": 3, "billing": 1})
	out := buf.String()

	if !strings.Contains(out, "Success Rate: 75.0%") {
		t.Errorf("missing success rate:\n%s", out)
	}
	b := strings.Index(out, "billing")
	s := strings.Index(out, "shipping")
	if b < 0 || s < 0 || b > s {
		t.Errorf("integrations should be listed in name order:\n%s", out)
	}
}

func TestPrintStats_NoIntegrations(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, &stats.Snapshot{}, nil)
	if strings.Contains(buf.String(), "By Integration") {
		t.Errorf("empty summary should print no section:\n%s", buf.String())
	}
}

func TestPrintRetryNotice(t *testing.T) {
	var buf bytes.Buffer
	printRetryNotice(&buf, &model.RetryMessage{
		EventID:        "ev-1",
		OrderID:        "ORD-1",
		RetryAttempt:   2,
		RetryTimestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UserNotes:      "manual fix",
	})
	out := buf.String()
	if !strings.Contains(out, "retry #2 of ev-1 (order ORD-1): manual fix") {
		t.Errorf("unexpected notice: %q", out)
	}
}

func TestPrintStreamEvent(t *testing.T) {
	data := []byte(`{"id":"ev-1","orderId":"ORD-1","status":"FAILED","errorDetails":"boom"}`)

	var buf bytes.Buffer
	if err := printStreamEvent(&buf, client.StreamEvent{ID: "3", Topic: "event.updated", Data: data}); err != nil {
		t.Fatalf("printStreamEvent: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"updated", "ev-1", "order=ORD-1", "FAILED", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestPrintStreamEvent_JSON(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	data := []byte(`{"id":"ev-1"}`)
	var buf bytes.Buffer
	if err := printStreamEvent(&buf, client.StreamEvent{Topic: "event.created", Data: data}); err != nil {
		t.Fatalf("printStreamEvent: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != string(data) {
		t.Errorf("got %q, want raw data", got)
	}
}

func TestPrintStreamEvent_Malformed(t *testing.T) {
	var buf bytes.Buffer
	if err := printStreamEvent(&buf, client.StreamEvent{Topic: "event.created", Data: []byte("{")}); err == nil {
		t.Fatal("expected error for malformed data")
	}
}
