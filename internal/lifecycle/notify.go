package lifecycle

import "github.com/alfredjeanlab/eventdesk/internal/model"

// ChangeKind names a committed change to an event.
type ChangeKind string

const (
	ChangeCreated     ChangeKind = "event.created"
	ChangeUpdated     ChangeKind = "event.updated"
	ChangeReprocessed ChangeKind = "event.reprocessed"
	ChangeRetried     ChangeKind = "event.retried"
)

// ChangeFunc observes committed changes. It is called synchronously after
// the store write and must not block.
type ChangeFunc func(kind ChangeKind, ev *model.Event)

// WithOnChange registers fn to be told about every committed change.
func WithOnChange(fn ChangeFunc) Option { return func(e *Engine) { e.onChange = fn } }

func (e *Engine) notify(kind ChangeKind, ev *model.Event) {
	if e.onChange == nil {
		return
	}
	e.onChange(kind, ev.Clone())
}
