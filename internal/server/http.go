package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// maxBodyBytes caps request bodies. Payloads are order documents, not bulk
// uploads.
const maxBodyBytes = 4 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("POST /v1/events", s.handleSubmitEvent)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("POST /v1/events/{id}/reprocess", s.handleReprocessEvent)
	mux.HandleFunc("POST /v1/events/{id}/retry", s.handleRetryEvent)
	mux.HandleFunc("POST /v1/events/{id}/republish", s.handleRepublishEvent)
	mux.HandleFunc("GET /v1/stats", s.handleGetStats)
	mux.HandleFunc("GET /v1/stats/integrations", s.handleIntegrationSummary)
	return AuthMiddleware(authToken, LoggingMiddleware(s.logger, mux))
}

// handleHealth handles GET /v1/health. The store is pinged so load
// balancers stop routing to an instance that lost its database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON request body into v. On failure it writes the
// error response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Kind: model.KindValidation})
			return false
		}
		s.writeEngineError(w, r, model.WrapError(model.KindValidation, err, "invalid JSON body"))
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string             `json:"error"`
	Kind   model.ErrorKind    `json:"kind,omitempty"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeEngineError maps a lifecycle error to its status and writes it.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := statusForKind(kind)
	body := errorBody{Error: err.Error(), Kind: kind}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Errors
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "err", err)
	}
	writeJSON(w, status, body)
}
