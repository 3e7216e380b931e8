// Package lifecycle owns the event status state machine. It persists
// ingested events, applies reprocess and retry transitions atomically
// against the store, and publishes retry notifications to the bus.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/events"
	"github.com/alfredjeanlab/eventdesk/internal/metrics"
	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/stats"
	"github.com/alfredjeanlab/eventdesk/internal/store"
)

const (
	defaultStoreTimeout   = 5 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// Engine implements the event lifecycle. It is safe for concurrent use.
type Engine struct {
	store          store.Store
	publisher      events.Publisher
	stats          *stats.Aggregator
	logger         *slog.Logger
	metrics        metrics.Recorder
	tracer         *metrics.Tracer
	now            func() time.Time
	storeTimeout   time.Duration
	publishTimeout time.Duration
	onChange       ChangeFunc
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithMetrics(m metrics.Recorder) Option { return func(e *Engine) { e.metrics = m } }

func WithTracer(t *metrics.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithClock replaces time.Now. Timestamps are always stored in UTC.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(d time.Duration) Option { return func(e *Engine) { e.storeTimeout = d } }

// WithPublishTimeout bounds each bus publish.
func WithPublishTimeout(d time.Duration) Option { return func(e *Engine) { e.publishTimeout = d } }

// New returns an Engine over st. A nil publisher disables publishing.
func New(st store.Store, pub events.Publisher, opts ...Option) *Engine {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	e := &Engine{
		store:          st,
		publisher:      pub,
		stats:          stats.New(st),
		logger:         slog.Default(),
		metrics:        metrics.Noop{},
		tracer:         metrics.NewTracer(nil),
		now:            time.Now,
		storeTimeout:   defaultStoreTimeout,
		publishTimeout: defaultPublishTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// begin starts a span for op and returns a function that ends it and
// records the operation outcome.
func (e *Engine) begin(ctx context.Context, op, id string) (context.Context, func(error)) {
	start := e.now()
	ctx, span := e.tracer.Start(ctx, op, id)
	return ctx, func(err error) {
		e.metrics.RecordOperation(ctx, op, e.now().Sub(start), err)
		metrics.End(span, err)
	}
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// storeError translates a store failure into the lifecycle error taxonomy.
func storeError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return model.WrapError(model.KindNotFound, err, "event %s not found", id)
	case errors.Is(err, store.ErrConflict):
		return model.WrapError(model.KindConcurrentModification, err, "event %s was modified concurrently", id)
	case errors.Is(err, context.DeadlineExceeded):
		return model.WrapError(model.KindTimeout, err, "store call timed out")
	case errors.Is(err, context.Canceled):
		return err
	}
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	return model.WrapError(model.KindInternal, err, "store")
}

func (e *Engine) get(ctx context.Context, id string) (*model.Event, error) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	ev, err := e.store.GetEvent(sctx, id)
	return ev, storeError(err, id)
}

func (e *Engine) update(ctx context.Context, next *model.Event, expectedVersion int64) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return storeError(e.store.UpdateEvent(sctx, next, expectedVersion), next.ID)
}

func (e *Engine) publish(ctx context.Context, topic events.Topic, key string, value any) error {
	pctx, cancel := context.WithCancel(ctx)
	if e.publishTimeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, e.publishTimeout)
	}
	defer cancel()
	err := e.publisher.Publish(pctx, topic, key, value)
	e.metrics.RecordPublish(ctx, string(topic), err)
	if err == nil {
		return nil
	}
	kind := model.KindTransport
	if errors.Is(err, context.DeadlineExceeded) {
		kind = model.KindTimeout
	}
	return model.WrapError(kind, err, "publishing to %s", topic)
}
