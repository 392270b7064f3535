// Package server exposes the swarm over HTTP JSON and a WebSocket stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/config"
	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/internal/intake"
	"github.com/auslab/swarm/internal/mission"
	"github.com/auslab/swarm/internal/picker"
	"github.com/auslab/swarm/internal/storage"
	"github.com/auslab/swarm/pkg/core"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// StateSource is the read side of the state publisher.
type StateSource interface {
	Latest() (*core.Snapshot, error)
}

// Dependencies holds everything the server talks to. Presets, Missions and
// Camera are optional; their routes are left out when nil.
type Dependencies struct {
	Dispatcher *dispatcher.Dispatcher
	State      StateSource
	Limits     command.Limits
	Presets    storage.Backend
	Missions   *mission.Runner
	Camera     picker.Camera
	Logger     *slog.Logger
}

// Server routes requests into the dispatcher and serves snapshots.
type Server struct {
	cfg    config.ServerConfig
	deps   Dependencies
	picker *picker.Picker
	hub    *Hub
	mux    *http.ServeMux
	logger *slog.Logger
}

// New creates a server and registers its routes.
func New(cfg config.ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Dispatcher == nil || deps.State == nil {
		return nil, errors.New("server needs a dispatcher and a state source")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		picker: picker.New(cfg.GroundHeight),
		mux:    http.NewServeMux(),
		logger: logger,
	}

	hub, err := NewHub(deps.State, s.submit, cfg.BroadcastInterval, logger)
	if err != nil {
		return nil, err
	}
	s.hub = hub
	s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.health)
	s.mux.HandleFunc("GET /state", s.state)
	s.mux.HandleFunc("GET /ws", s.hub.ServeWS)

	for _, kind := range []core.Kind{
		core.KindSpawn, core.KindTakeoff, core.KindLand, core.KindHover,
		core.KindGoto, core.KindVelocity, core.KindFormation, core.KindReset,
	} {
		s.mux.HandleFunc("POST /"+string(kind), s.commandHandler(kind))
	}

	s.mux.HandleFunc("GET /pick", s.lastPick)
	s.mux.HandleFunc("POST /pick", s.pick)

	if s.deps.Presets != nil {
		s.mux.HandleFunc("GET /formations", s.listPresets)
		s.mux.HandleFunc("POST /formations", s.savePreset)
		s.mux.HandleFunc("GET /formations/{name}", s.getPreset)
		s.mux.HandleFunc("DELETE /formations/{name}", s.deletePreset)
	}

	if s.deps.Missions != nil {
		s.mux.HandleFunc("GET /mission", s.missionStatus)
		s.mux.HandleFunc("POST /mission", s.startMission)
		s.mux.HandleFunc("DELETE /mission", s.cancelMission)
	}
}

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// submit admits a request through the dispatcher and returns its ticket.
func (s *Server) submit(kind string, payload json.RawMessage, source string) (command.Ticket, error) {
	res, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{Kind: kind, Payload: payload, Source: source})
	if err != nil {
		return command.Ticket{}, err
	}
	return intake.Ticket(res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, bodyFor(err))
}
