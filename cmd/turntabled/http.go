package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// ============================================================================
// HTTP API
// ============================================================================
//   GET /api/inhibited  -> {"inhibited": bool}   (atomic read of the gate)
//   GET /api/state      -> StateSnapshot         (round-trip through the daemon loop)
//   GET /ws/state       -> state websocket       (state_ws.go)
// ============================================================================

type Server struct {
	logger *slog.Logger

	hub  *Hub
	gate ReleaseGate

	// Snapshot requests go through the daemon loop.
	events chan<- Event

	snapshotTimeout time.Duration
}

type ServerConfig struct {
	Hub HubConfig

	// SnapshotTimeout bounds snapshot round-trips. Zero means snapshotTimeoutMS.
	SnapshotTimeout time.Duration
}

// NewServer constructs the HTTP/WS server components. Mount Router() on an
// http.Server and start Hub().Run(ctx) and RunBroadcaster.
func NewServer(logger *slog.Logger, gate ReleaseGate, events chan<- Event, cfg ServerConfig) *Server {
	timeout := cfg.SnapshotTimeout
	if timeout <= 0 {
		timeout = snapshotTimeoutMS * time.Millisecond
	}
	return &Server{
		logger:          logger,
		hub:             NewHub(logger, cfg.Hub),
		gate:            gate,
		events:          events,
		snapshotTimeout: timeout,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/inhibited", s.handleInhibited).Methods(http.MethodGet)
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/ws/state", s.handleStateWS)
	return r
}

var errSnapshotUnavailable = errors.New("daemon loop unavailable")

// requestSnapshot asks the daemon loop for a snapshot, bounded by snapshotTimeout.
func (s *Server) requestSnapshot(ctx context.Context) (StateSnapshot, error) {
	if s.events == nil {
		return StateSnapshot{}, errSnapshotUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.snapshotTimeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case s.events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

func (s *Server) handleInhibited(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"inhibited": s.gate.IsInhibited()}, s.logger)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := s.requestSnapshot(r.Context())
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]string{"error": err.Error()}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, snap, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("http response encode failed", "error", err)
	}
}

// runHTTPServer serves handler on port and shuts it down gracefully when ctx is canceled.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("http server listening", "port", port)

	errCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
