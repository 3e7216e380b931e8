package sample

import (
	"reflect"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

func TestEventsDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := New(42).Events(20, now)
	b := New(42).Events(20, now)
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			t.Fatalf("event %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestEventsValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, e := range New(7).Events(50, now) {
		if err := model.ValidateEvent(e); err != nil {
			t.Errorf("event %d invalid: %v", i, err)
		}
		if err := model.CheckPayload(e.Payload, e.PayloadFormat); err != nil {
			t.Errorf("event %d payload: %v", i, err)
		}
		if (e.Status == model.StatusFailed) != (e.ErrorDetails != "") {
			t.Errorf("event %d: status %s with errorDetails %q", i, e.Status, e.ErrorDetails)
		}
		if !e.CreatedAt.Before(now) || e.CreatedAt.Before(now.Add(-time.Hour)) {
			t.Errorf("event %d created at %v", i, e.CreatedAt)
		}
	}
}

func TestFailed(t *testing.T) {
	e := Failed("PO-9")
	if e.Status != model.StatusFailed || e.OrderID != "PO-9" {
		t.Fatalf("Failed() = %+v", e)
	}
	if err := model.CheckPayload(e.Payload, e.PayloadFormat); err != nil {
		t.Fatalf("payload: %v", err)
	}
}
