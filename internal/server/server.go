// Package server exposes the lifecycle engine over HTTP/JSON, streams
// committed changes to dashboards over SSE and serves the gRPC health
// protocol.
package server

import (
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/eventdesk/internal/lifecycle"
	"github.com/alfredjeanlab/eventdesk/internal/model"
)

// Server serves the eventdesk API over an Engine.
type Server struct {
	engine *lifecycle.Engine
	hub    *Hub
	logger *slog.Logger
}

// New returns a Server over engine. Changes broadcast on hub are streamed
// to SSE clients; pass the same hub to lifecycle.WithOnChange. A nil hub
// gets a private one.
func New(engine *lifecycle.Engine, hub *Hub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = NewHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, hub: hub, logger: logger}
}

// Hub returns the server's change hub.
func (s *Server) Hub() *Hub { return s.hub }

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInvalidState, model.KindRetryLimitExceeded, model.KindConcurrentModification:
		return http.StatusConflict
	case model.KindTransport:
		return http.StatusBadGateway
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
