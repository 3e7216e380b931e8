package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// handleSubmitEvent handles POST /v1/events.
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var in model.Event
	if !s.decodeBody(w, r, &in) {
		return
	}
	res, err := s.engine.Submit(r.Context(), &in)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	list, err := s.engine.List(r.Context(), filter)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	// Ensure events is never null in JSON output.
	if list == nil {
		list = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": list,
		"total":  len(list),
	})
}

// parseEventFilter reads list criteria from query parameters. Timestamps
// are RFC 3339.
func parseEventFilter(q url.Values) (model.EventFilter, error) {
	var ve model.ValidationError
	filter := model.EventFilter{
		Status:          model.ParseStatus(q.Get("status")),
		OrderID:         strings.TrimSpace(q.Get("order_id")),
		OrderIDContains: strings.TrimSpace(q.Get("search")),
		IntegrationName: strings.TrimSpace(q.Get("integration")),
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{
		{"after", &filter.CreatedAfter},
		{"before", &filter.CreatedBefore},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			ve.Errors = append(ve.Errors, model.FieldError{Field: p.name, Message: fmt.Sprintf("invalid RFC 3339 timestamp %q", v)})
			continue
		}
		*p.dst = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			ve.Errors = append(ve.Errors, model.FieldError{Field: "limit", Message: fmt.Sprintf("invalid integer %q", v)})
		} else {
			filter.Limit = n
		}
	}
	if ve.HasErrors() {
		return filter, &ve
	}
	return filter, nil
}

// handleGetEvent handles GET /v1/events/{id}.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleReprocessEvent handles POST /v1/events/{id}/reprocess.
func (s *Server) handleReprocessEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.engine.Reprocess(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// retryResponse is the body of a retry. Warning is set when the retry was
// committed but its notification could not be published.
type retryResponse struct {
	Event   *model.Event `json:"event"`
	Warning string       `json:"warning,omitempty"`
}

// handleRetryEvent handles POST /v1/events/{id}/retry. The path id wins
// over any eventId in the body.
func (s *Server) handleRetryEvent(w http.ResponseWriter, r *http.Request) {
	var req model.RetryRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	req.EventID = r.PathValue("id")

	ev, err := s.engine.Retry(r.Context(), &req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, retryResponse{Event: ev})
	case ev != nil:
		// Committed; only the notification failed.
		writeJSON(w, http.StatusAccepted, retryResponse{Event: ev, Warning: err.Error()})
	default:
		s.writeEngineError(w, r, err)
	}
}

// handleRepublishEvent handles POST /v1/events/{id}/republish and answers
// with the notification that was sent.
func (s *Server) handleRepublishEvent(w http.ResponseWriter, r *http.Request) {
	msg, err := s.engine.Republish(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleGetStats handles GET /v1/stats.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleIntegrationSummary handles GET /v1/stats/integrations.
func (s *Server) handleIntegrationSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.IntegrationSummary(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if summary == nil {
		summary = map[string]int{}
	}
	writeJSON(w, http.StatusOK, summary)
}
