package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/client"
	"github.com/alfredjeanlab/eventdesk/internal/lifecycle"
	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// streamFixture runs a real HTTP server and one streaming client against it.
type streamFixture struct {
	api     *client.HTTPClient
	changes chan client.StreamEvent
	done    chan error
}

func startStreamFixture(t *testing.T, topics ...string) *streamFixture {
	t.Helper()
	s, _, handler := newTestServer()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	f := &streamFixture{
		api:     client.NewHTTPClient(ts.URL, ""),
		changes: make(chan client.StreamEvent, 16),
		done:    make(chan error, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		f.done <- f.api.Stream(ctx, topics, func(se client.StreamEvent) error {
			f.changes <- se
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Error("stream did not stop after cancel")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return f
}

// next returns the next streamed change whose topic is kind, skipping others.
func (f *streamFixture) next(t *testing.T, kind lifecycle.ChangeKind) model.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case se := <-f.changes:
			if se.Topic != string(kind) {
				continue
			}
			if se.ID == "" {
				t.Fatalf("%s change has no id", kind)
			}
			var ev model.Event
			if err := json.Unmarshal(se.Data, &ev); err != nil {
				t.Fatalf("%s change is not an event: %v", kind, err)
			}
			return ev
		case err := <-f.done:
			t.Fatalf("stream ended before %s: %v", kind, err)
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestStreamIntegration_Lifecycle(t *testing.T) {
	f := startStreamFixture(t, "event.*")
	ctx := context.Background()

	sub, err := f.api.Submit(ctx, &model.Event{
		OrderID:       "PO-77",
		Status:        model.StatusFailed,
		Payload:       `{"qty":0}`,
		PayloadFormat: model.FormatJSON,
		ErrorDetails:  "quantity must be positive",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !sub.Created || sub.Event.ID == "" {
		t.Fatalf("Submit = %+v", sub)
	}
	if got := f.next(t, lifecycle.ChangeCreated); got.ID != sub.Event.ID {
		t.Fatalf("created change for %q, want %q", got.ID, sub.Event.ID)
	}

	res, err := f.api.Retry(ctx, &model.RetryRequest{
		EventID:        sub.Event.ID,
		UpdatedPayload: `{"qty":1}`,
		UserNotes:      "bumped qty",
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if res.Warning != "" {
		t.Fatalf("unexpected warning: %s", res.Warning)
	}

	got := f.next(t, lifecycle.ChangeRetried)
	if got.ID != sub.Event.ID || got.Status != model.StatusPending || got.RetryCount != 1 {
		t.Fatalf("retried change = %+v", got)
	}
	if len(got.RetryHistory) != 1 || got.RetryHistory[0].UserNotes != "bumped qty" {
		t.Fatalf("retry history = %+v", got.RetryHistory)
	}
}

func TestStreamIntegration_TopicFilter(t *testing.T) {
	f := startStreamFixture(t, string(lifecycle.ChangeReprocessed))
	ctx := context.Background()

	sub, err := f.api.Submit(ctx, &model.Event{OrderID: "PO-78", Status: model.StatusFailed})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.api.Reprocess(ctx, sub.Event.ID); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}

	select {
	case se := <-f.changes:
		if se.Topic != string(lifecycle.ChangeReprocessed) {
			t.Fatalf("filtered stream delivered %q", se.Topic)
		}
		var ev model.Event
		if err := json.Unmarshal(se.Data, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.ID != sub.Event.ID || ev.Status != model.StatusPending || ev.ErrorDetails != "" {
			t.Fatalf("reprocessed change = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reprocessed change")
	}
}

func TestStreamIntegration_RejectedRetryNotStreamed(t *testing.T) {
	f := startStreamFixture(t, string(lifecycle.ChangeRetried))
	ctx := context.Background()

	sub, err := f.api.Submit(ctx, &model.Event{OrderID: "PO-79", Status: model.StatusSuccess})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = f.api.Retry(ctx, &model.RetryRequest{EventID: sub.Event.ID, UpdatedPayload: "x"})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != model.KindNotFound {
		t.Fatalf("Retry on SUCCESS event: err = %v", err)
	}

	select {
	case se := <-f.changes:
		t.Fatalf("rejected retry streamed %q", se.Topic)
	case <-time.After(100 * time.Millisecond):
	}
}
