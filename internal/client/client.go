// Package client provides a transport-agnostic interface for the eventdesk
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"github.com/alfredjeanlab/eventdesk/internal/stats"
)

// EventsClient is the interface that all evd CLI commands use to
// communicate with the eventdesk server.
type EventsClient interface {
	Submit(ctx context.Context, ev *model.Event) (*SubmitResponse, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error)

	Reprocess(ctx context.Context, id string) (*model.Event, error)
	Retry(ctx context.Context, req *model.RetryRequest) (*RetryResponse, error)
	// Republish re-sends the notification for an event's latest retry.
	Republish(ctx context.Context, id string) (*model.RetryMessage, error)

	Stats(ctx context.Context) (*stats.Snapshot, error)
	IntegrationSummary(ctx context.Context) (map[string]int, error)

	// Stream calls fn for each change the server streams until ctx is
	// done, the stream ends, or fn returns an error.
	Stream(ctx context.Context, topics []string, fn func(StreamEvent) error) error

	Health(ctx context.Context) (string, error)
	Close() error
}

// SubmitResponse is the result of Submit.
type SubmitResponse struct {
	Event   *model.Event `json:"event"`
	Created bool         `json:"created"`
	Warning string       `json:"warning,omitempty"`
}

// RetryResponse is the result of Retry. Warning is set when the retry was
// committed but its notification could not be published.
type RetryResponse struct {
	Event   *model.Event `json:"event"`
	Warning string       `json:"warning,omitempty"`
}

// ListEventsRequest holds list criteria. Zero values are ignored.
type ListEventsRequest struct {
	Status      string
	OrderID     string
	Search      string
	Integration string
	After       time.Time
	Before      time.Time
	Limit       int
}

// ListEventsResponse is the result of ListEvents.
type ListEventsResponse struct {
	Events []*model.Event `json:"events"`
	Total  int            `json:"total"`
}

// StreamEvent is one change received from the server's event stream.
type StreamEvent struct {
	ID    string
	Topic string
	Data  []byte
}
