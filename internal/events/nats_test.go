package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
)

// startTestNATS starts an embedded NATS server with JetStream enabled.
func startTestNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBus(t *testing.T, url string, cfg BusConfig) *NATSBus {
	t.Helper()
	cfg.URL = url
	if cfg.NakDelay == 0 {
		cfg.NakDelay = 10 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus, err := NewNATSBus(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewNATSBus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestNATSBus_PublishSubscribe(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})
	ctx := context.Background()

	got := make(chan Delivery, 4)
	stop, err := bus.Subscribe(ctx, TopicEvents, "test", func(_ context.Context, d Delivery) error {
		got <- d
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	e := &model.Event{ID: "ev-1", OrderID: "PO-001", Status: model.StatusPending, Version: 1}
	if err := bus.Publish(ctx, TopicEvents, e.OrderID, e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case d := <-got:
		if d.Topic != TopicEvents || d.Key != "PO-001" {
			t.Errorf("delivery topic=%q key=%q", d.Topic, d.Key)
		}
		if d.Attempt != 1 {
			t.Errorf("Attempt = %d, want 1", d.Attempt)
		}
		var decoded model.Event
		if err := json.Unmarshal(d.Data, &decoded); err != nil {
			t.Fatalf("decoding delivery: %v", err)
		}
		if decoded.ID != "ev-1" || decoded.OrderID != "PO-001" {
			t.Errorf("decoded = %+v", decoded)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestNATSBus_TopicsAreSeparate(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})
	ctx := context.Background()

	got := make(chan Delivery, 4)
	stop, err := bus.Subscribe(ctx, TopicRetry, "test", func(_ context.Context, d Delivery) error {
		got <- d
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := bus.Publish(ctx, TopicEvents, "PO-1", map[string]string{"orderId": "PO-1"}); err != nil {
		t.Fatalf("Publish events: %v", err)
	}
	msg := model.RetryMessage{EventID: "ev-2", OrderID: "PO-2", RetryAttempt: 1}
	if err := bus.Publish(ctx, TopicRetry, msg.OrderID, msg); err != nil {
		t.Fatalf("Publish retry: %v", err)
	}

	select {
	case d := <-got:
		if d.Topic != TopicRetry || d.Key != "PO-2" {
			t.Errorf("delivery topic=%q key=%q, want retry/PO-2", d.Topic, d.Key)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for retry delivery")
	}
	select {
	case d := <-got:
		t.Fatalf("unexpected second delivery: %+v", d)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNATSBus_InOrderDelivery(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		v := map[string]int{"n": i}
		if err := bus.Publish(ctx, TopicEvents, "PO-1", v); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	got := make(chan int, 10)
	stop, err := bus.Subscribe(ctx, TopicEvents, "ordered", func(_ context.Context, d Delivery) error {
		var v map[string]int
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return err
		}
		got <- v["n"]
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	for want := 0; want < 10; want++ {
		select {
		case n := <-got:
			if n != want {
				t.Fatalf("got message %d, want %d", n, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", want)
		}
	}
}

func TestNATSBus_RetryableErrorRedelivers(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})
	ctx := context.Background()

	var calls atomic.Int32
	done := make(chan int, 1)
	stop, err := bus.Subscribe(ctx, TopicEvents, "flaky", func(_ context.Context, d Delivery) error {
		if calls.Add(1) < 3 {
			return model.NewError(model.KindConcurrentModification, "try again")
		}
		done <- d.Attempt
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := bus.Publish(ctx, TopicEvents, "PO-1", map[string]string{"orderId": "PO-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case attempt := <-done:
		if attempt != 3 {
			t.Errorf("Attempt = %d, want 3", attempt)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out after %d calls", calls.Load())
	}
}

func TestNATSBus_PoisonMessageTerminated(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})
	ctx := context.Background()

	var mu sync.Mutex
	var keys []string
	next := make(chan struct{}, 4)
	stop, err := bus.Subscribe(ctx, TopicEvents, "poison", func(_ context.Context, d Delivery) error {
		mu.Lock()
		keys = append(keys, d.Key)
		mu.Unlock()
		next <- struct{}{}
		if d.Key == "bad" {
			return &model.ValidationError{Errors: []model.FieldError{{Field: "orderId", Message: "is required"}}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := bus.Publish(ctx, TopicEvents, "bad", map[string]string{}); err != nil {
		t.Fatalf("Publish bad: %v", err)
	}
	if err := bus.Publish(ctx, TopicEvents, "good", map[string]string{"orderId": "PO-1"}); err != nil {
		t.Fatalf("Publish good: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-next:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}
	// No redelivery of the terminated message.
	select {
	case <-next:
		mu.Lock()
		t.Fatalf("unexpected redelivery, keys = %v", keys)
		mu.Unlock()
	case <-time.After(300 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 2 || keys[0] != "bad" || keys[1] != "good" {
		t.Errorf("keys = %v, want [bad good]", keys)
	}
}

func TestNATSBus_DeduplicatesByMessageID(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})
	ctx := context.Background()

	e := &model.Event{ID: "ev-1", OrderID: "PO-001", Version: 2}
	for i := 0; i < 3; i++ {
		if err := bus.Publish(ctx, TopicEvents, e.OrderID, e); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	e.Version = 3
	if err := bus.Publish(ctx, TopicEvents, e.OrderID, e); err != nil {
		t.Fatalf("Publish v3: %v", err)
	}

	stream, err := bus.js.Stream(ctx, bus.cfg.Stream)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.State.Msgs != 2 {
		t.Errorf("stream holds %d messages, want 2", info.State.Msgs)
	}
}

func TestNATSBus_EnsureStreamIdempotent(t *testing.T) {
	srv := startTestNATS(t)
	newTestBus(t, srv.ClientURL(), BusConfig{Stream: "SHARED"})
	// A second bus finds the existing stream and updates it.
	bus := newTestBus(t, srv.ClientURL(), BusConfig{Stream: "SHARED"})
	if err := bus.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNATSBus_PublishEncodingError(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})

	err := bus.Publish(context.Background(), TopicEvents, "k", make(chan int))
	if !errors.Is(err, model.ErrTransport) {
		t.Fatalf("got %v, want transport error", err)
	}
}

func TestNATSBus_BreakerOpensAfterFailures(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{BreakerFailures: 2, BreakerTimeout: time.Minute})

	srv.Shutdown()

	publish := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		return bus.Publish(ctx, TopicEvents, "PO-1", map[string]string{"orderId": "PO-1"})
	}
	for i := 0; i < 2; i++ {
		err := publish()
		if !errors.Is(err, model.ErrTransport) {
			t.Fatalf("publish %d: got %v, want transport error", i, err)
		}
	}

	err := publish()
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("got %v, want open circuit", err)
	}
	if !errors.Is(err, model.ErrTransport) {
		t.Fatalf("open circuit error %v is not a transport error", err)
	}
	if got := bus.BreakerState(); got != "open" {
		t.Errorf("BreakerState() = %q, want open", got)
	}
}

func TestNATSBus_SubscribeStopsOnContextCancel(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	stop, err := bus.Subscribe(ctx, TopicEvents, "cancel", func(context.Context, Delivery) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()
	stop() // idempotent with the context-triggered stop
	time.Sleep(100 * time.Millisecond)

	if err := bus.Publish(context.Background(), TopicEvents, "PO-1", map[string]string{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times after cancel", n)
	}
}

func TestWatcher_ReceivesRetryNotifications(t *testing.T) {
	srv := startTestNATS(t)
	bus := newTestBus(t, srv.ClientURL(), BusConfig{})

	w, err := NewWatcher(srv.ClientURL(), "")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ch, cancel, err := w.Watch(TopicRetry)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	msg := model.RetryMessage{EventID: "ev-1", OrderID: "PO-001", RetryAttempt: 1}
	if err := bus.Publish(context.Background(), TopicRetry, msg.OrderID, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case data := <-ch:
		var got model.RetryMessage
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decoding: %v", err)
		}
		if got.EventID != "ev-1" || got.RetryAttempt != 1 {
			t.Errorf("got %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestWatcher_Cancel(t *testing.T) {
	srv := startTestNATS(t)

	w, err := NewWatcher(srv.ClientURL(), "eventdesk")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ch, cancel, err := w.Watch(TopicRetry)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cancel()
	cancel() // calling twice must not panic

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestWatcher_CancelDuringMessages(t *testing.T) {
	srv := startTestNATS(t)

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connecting publisher: %v", err)
	}
	defer nc.Close()

	w, err := NewWatcher(srv.ClientURL(), "eventdesk")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ch, cancel, err := w.Watch(TopicRetry)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = nc.Publish("eventdesk.retry", []byte(`{"eventId":"x"}`))
		}
		nc.Flush()
	}()

	cancel()
	<-done

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}
