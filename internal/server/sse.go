package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/lifecycle"
	"github.com/alfredjeanlab/eventdesk/internal/model"
)

const (
	// changeLogSize is how many recent changes are kept for Last-Event-ID
	// replay.
	changeLogSize = 1000

	streamKeepalive  = 15 * time.Second
	streamBufferSize = 64
)

// change is one committed lifecycle change as sent on the stream.
type change struct {
	seq   uint64
	topic string
	data  []byte
}

// changeLog is a fixed-size ring of the most recent changes in sequence
// order. It is not safe for concurrent use.
type changeLog struct {
	entries []change
	head    int // index of the oldest entry once full
}

func (l *changeLog) add(c change) {
	if len(l.entries) < changeLogSize {
		l.entries = append(l.entries, c)
		return
	}
	l.entries[l.head] = c
	l.head = (l.head + 1) % changeLogSize
}

// after returns the retained changes with seq > seq, oldest first.
func (l *changeLog) after(seq uint64) []change {
	var out []change
	for i := range l.entries {
		c := l.entries[(l.head+i)%len(l.entries)]
		if c.seq > seq {
			out = append(out, c)
		}
	}
	return out
}

// topicFilter holds dot-separated topic patterns. An empty filter matches
// every topic.
type topicFilter []string

func parseTopicFilter(s string) topicFilter {
	var f topicFilter
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			f = append(f, p)
		}
	}
	return f
}

func (f topicFilter) matches(topic string) bool {
	if len(f) == 0 {
		return true
	}
	for _, pattern := range f {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a pattern.
// "*" matches one segment and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

type subscriber struct {
	filter topicFilter
	ch     chan change
}

// Hub fans committed lifecycle changes out to stream subscribers and
// retains the most recent ones for replay.
type Hub struct {
	mu   sync.Mutex
	seq  uint64
	log  changeLog
	subs map[*subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Broadcast publishes ev under the change kind as topic. It has the shape
// of lifecycle.ChangeFunc.
func (h *Hub) Broadcast(kind lifecycle.ChangeKind, ev *model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("encoding stream change", "kind", kind, "event_id", ev.ID, "err", err)
		return
	}
	h.publish(string(kind), data)
}

func (h *Hub) publish(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	c := change{seq: h.seq, topic: topic, data: data}
	h.log.add(c)

	for sub := range h.subs {
		if !sub.filter.matches(topic) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			// Subscriber is not keeping up; it misses this change.
		}
	}
}

// subscribe registers a subscriber. When replay is set, the retained
// changes after lastSeq that match filter are returned; they were
// committed before anything the subscriber will receive on its channel.
func (h *Hub) subscribe(filter topicFilter, replay bool, lastSeq uint64) (*subscriber, []change) {
	sub := &subscriber{filter: filter, ch: make(chan change, streamBufferSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
	if !replay {
		return sub, nil
	}
	var backlog []change
	for _, c := range h.log.after(lastSeq) {
		if filter.matches(c.topic) {
			backlog = append(backlog, c)
		}
	}
	return sub, backlog
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// subscribers reports the number of connected subscribers.
func (h *Hub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleEventStream handles GET /v1/events/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var (
		lastSeq uint64
		replay  bool
	)
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			lastSeq, replay = n, true
		}
	}

	sub, backlog := s.hub.subscribe(parseTopicFilter(r.URL.Query().Get("topics")), replay, lastSeq)
	defer s.hub.unsubscribe(sub)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, c := range backlog {
		writeChange(w, c)
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case c := <-sub.ch:
			writeChange(w, c)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeChange(w http.ResponseWriter, c change) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", c.seq, c.topic, c.data)
}
