package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Server exposes the daemon's admin endpoints: health, status, history,
// manual build triggering and metrics, all on a single listener.
type Server struct {
	addr    string
	daemon  *Daemon
	metrics http.Handler

	server   *http.Server
	listener net.Listener
}

// NewServer builds the admin server. metrics may be nil, in which case
// /metrics answers 404.
func NewServer(addr string, d *Daemon, metrics http.Handler) *Server {
	s := &Server{addr: addr, daemon: d, metrics: metrics}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/build", s.handleBuild)
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listener synchronously so a taken port fails startup
// instead of surfacing later as a dead admin endpoint.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind admin server on %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		slog.Info("Admin server listening", slog.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr returns the bound address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := s.daemon.healthResponse()
	writeJSON(w, httpStatusFor(resp.Status), resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.daemon.statusSnapshot(r.Context()))
}

// handleHistory answers with persisted build records when the history store
// is open, falling back to the in-memory recent-job ring otherwise.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if s.daemon.store != nil {
		entries, err := s.daemon.store.Recent(r.Context(), limit)
		if err != nil {
			slog.Error("History query failed", slog.String("error", err.Error()))
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"source": "store", "builds": entries})
		return
	}

	jobs := s.daemon.queue.Recent()
	if len(jobs) > limit {
		jobs = jobs[len(jobs)-limit:]
	}
	// Newest first, matching the store ordering.
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": "memory", "builds": jobs})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, err := s.daemon.TriggerBuild(TriggerManual, "http request")
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "build queue is full"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.NotFound(w, r)
		return
	}
	s.metrics.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encoding response failed", slog.String("error", err.Error()))
	}
}
