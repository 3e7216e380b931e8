package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BusConfig configures a NATSBus.
type BusConfig struct {
	URL             string
	Stream          string
	SubjectPrefix   string
	MaxDeliver      int
	NakDelay        time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	DuplicateWindow time.Duration
}

func (c *BusConfig) setDefaults() {
	if c.Stream == "" {
		c.Stream = "EVENTDESK"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "eventdesk"
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = 10
	}
	if c.NakDelay <= 0 {
		c.NakDelay = time.Second
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = 2 * time.Minute
	}
}

// NATSBus publishes and consumes messages through a JetStream stream that
// holds every topic subject, so all topics share one ordered log.
type NATSBus struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	cfg     BusConfig
	breaker *gobreaker.CircuitBreaker[*jetstream.PubAck]
	logger  *slog.Logger
}

// NewNATSBus connects to cfg.URL with automatic reconnection and makes sure
// the stream exists. Extra nats.Option values are appended to the defaults.
func NewNATSBus(ctx context.Context, cfg BusConfig, logger *slog.Logger, opts ...nats.Option) (*NATSBus, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(cfg.URL, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	b := &NATSBus{
		conn:    nc,
		js:      js,
		cfg:     cfg,
		breaker: newBreaker[*jetstream.PubAck]("nats-publish", cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		logger:  logger,
	}
	if err := b.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return b, nil
}

func (b *NATSBus) ensureStream(ctx context.Context) error {
	streamCfg := jetstream.StreamConfig{
		Name: b.cfg.Stream,
		Subjects: []string{
			Subject(b.cfg.SubjectPrefix, TopicEvents),
			Subject(b.cfg.SubjectPrefix, TopicRetry),
		},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
		Duplicates: b.cfg.DuplicateWindow,
	}

	_, err := b.js.Stream(ctx, b.cfg.Stream)
	if err == nil {
		if _, err := b.js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", b.cfg.Stream, err)
		}
		return nil
	}
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := b.js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", b.cfg.Stream, err)
		}
		return nil
	}
	return fmt.Errorf("check stream %s: %w", b.cfg.Stream, err)
}

func (b *NATSBus) subject(topic Topic) string {
	return Subject(b.cfg.SubjectPrefix, topic)
}

// Publish JSON-encodes value and publishes it to topic, waiting for the
// stream to acknowledge it. Every failure is a transport error.
func (b *NATSBus) Publish(ctx context.Context, topic Topic, key string, value any) error {
	subject := b.subject(topic)
	data, err := json.Marshal(value)
	if err != nil {
		return model.WrapError(model.KindTransport, err, "encoding message for %s", subject)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(KeyHeader, key)

	var opts []jetstream.PublishOpt
	if id, ok := value.(Identified); ok {
		if mid := id.MessageID(); mid != "" {
			opts = append(opts, jetstream.WithMsgID(mid))
		}
	}

	_, err = b.breaker.Execute(func() (*jetstream.PubAck, error) {
		return b.js.PublishMsg(ctx, msg, opts...)
	})
	if err != nil {
		return model.WrapError(model.KindTransport, err, "publishing to %s", subject)
	}
	return nil
}

// BreakerState reports the publish circuit breaker state.
func (b *NATSBus) BreakerState() string {
	return b.breaker.State().String()
}

// Subscribe attaches handler to topic through a durable pull consumer. The
// consumer allows a single unacknowledged message, so deliveries are
// processed in stream order.
func (b *NATSBus) Subscribe(ctx context.Context, topic Topic, group string, handler Handler) (func(), error) {
	durable := fmt.Sprintf("%s-%s", group, topic)
	cons, err := b.js.CreateOrUpdateConsumer(ctx, b.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: b.subject(topic),
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxAckPending: 1,
		MaxDeliver:    b.cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("creating consumer %s: %w", durable, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		b.dispatch(ctx, topic, handler, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("consuming %s: %w", durable, err)
	}

	var once sync.Once
	stop := func() { once.Do(cc.Stop) }
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-cc.Closed():
		}
	}()
	return stop, nil
}

func (b *NATSBus) dispatch(ctx context.Context, topic Topic, handler Handler, msg jetstream.Msg) {
	d := Delivery{
		Topic: topic,
		Key:   msg.Headers().Get(KeyHeader),
		Data:  msg.Data(),
	}
	if meta, err := msg.Metadata(); err == nil {
		d.Attempt = int(meta.NumDelivered)
	}

	err := handler(ctx, d)
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			b.logger.Warn("ack failed", "subject", msg.Subject(), "err", ackErr)
		}
	case model.IsRetryable(err):
		b.logger.Warn("handler failed, redelivering", "subject", msg.Subject(), "key", d.Key, "attempt", d.Attempt, "err", err)
		if nakErr := msg.NakWithDelay(b.cfg.NakDelay); nakErr != nil {
			b.logger.Warn("nak failed", "subject", msg.Subject(), "err", nakErr)
		}
	default:
		b.logger.Error("dropping poison message", "subject", msg.Subject(), "key", d.Key, "err", err)
		if termErr := msg.Term(); termErr != nil {
			b.logger.Warn("term failed", "subject", msg.Subject(), "err", termErr)
		}
	}
}

// Ping reports whether the connection to NATS is up.
func (b *NATSBus) Ping() error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS connection is %s", b.conn.Status())
	}
	return nil
}

func (b *NATSBus) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
	return nil
}

// Watcher receives messages over core NATS without joining a consumer
// group. It sees only messages published while it is subscribed.
type Watcher struct {
	conn   *nats.Conn
	prefix string
}

// NewWatcher connects to NATS with automatic reconnection support.
// Extra nats.Option values (e.g. disconnect/reconnect handlers) can be appended.
func NewWatcher(url, prefix string, opts ...nats.Option) (*Watcher, error) {
	if prefix == "" {
		prefix = "eventdesk"
	}
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Watcher{conn: nc, prefix: prefix}, nil
}

// Watch returns a channel that receives raw payloads published to topic.
// Call the returned cancel function to unsubscribe and close the channel.
func (w *Watcher) Watch(topic Topic) (<-chan []byte, func(), error) {
	subject := Subject(w.prefix, topic)
	ch := make(chan []byte, 64)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := w.conn.Subscribe(subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg.Data:
		default:
			// Drop when full so the NATS client never blocks.
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	// Flush so the subscription is registered before messages are routed.
	if err := w.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

func (w *Watcher) Close() error {
	w.conn.Close()
	return nil
}
