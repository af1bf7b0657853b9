// Package server exposes the hub over HTTP for local tooling and frontends.
//
// Endpoints:
//   - GET  /health
//   - POST /converse  { "session_id": "...", "message": "..." }
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aidconnect/hub/hub"
	"github.com/aidconnect/hub/observability"
)

// Server event types.
const (
	EventListen   observability.EventType = "server.listen"
	EventShutdown observability.EventType = "server.shutdown"
	EventRequest  observability.EventType = "server.request"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownGrace     = 10 * time.Second
)

// Converser is the part of the hub the server needs.
type Converser interface {
	Converse(ctx context.Context, sessionID, message string) (*hub.Reply, error)
	Tools() []string
}

// Option configures a Server.
type Option func(*Server)

// WithObserver sets the event observer.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// Server wraps a Converser behind a JSON HTTP API.
type Server struct {
	hub      Converser
	addr     string
	observer observability.Observer
}

// New creates a Server listening on addr once Run is called.
func New(h Converser, addr string, opts ...Option) *Server {
	s := &Server{hub: h, addr: addr, observer: observability.NoOpObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until ctx is canceled, then drains in-flight requests within
// the shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /converse", s.handleConverse)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		observability.Emit(ctx, s.observer, EventListen, observability.LevelInfo, "server", map[string]any{
			"addr": s.addr,
		})
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		observability.Emit(context.Background(), s.observer, EventShutdown, observability.LevelInfo, "server", nil)
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

type converseRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type converseResponse struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"session_id,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "aidconnect-hub",
		"tools":   s.hub.Tools(),
	})
}

func (s *Server) handleConverse(w http.ResponseWriter, r *http.Request) {
	var req converseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, converseResponse{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, converseResponse{Error: "message is required"})
		return
	}

	start := time.Now()
	reply, err := s.hub.Converse(r.Context(), req.SessionID, req.Message)
	if err != nil {
		observability.Emit(r.Context(), s.observer, EventRequest, observability.LevelWarning, "server", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		sid := req.SessionID
		if reply != nil {
			sid = reply.SessionID
		}
		writeJSON(w, http.StatusInternalServerError, converseResponse{
			SessionID: sid,
			Error:     err.Error(),
		})
		return
	}

	observability.Emit(r.Context(), s.observer, EventRequest, observability.LevelVerbose, "server", map[string]any{
		"path":        r.URL.Path,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	writeJSON(w, http.StatusOK, converseResponse{
		OK:        true,
		SessionID: reply.SessionID,
		Reply:     reply.Text,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
