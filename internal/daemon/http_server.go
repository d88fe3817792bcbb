package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/inflight/internal/config"
	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
	"git.home.luguber.info/inful/inflight/internal/logfields"
	"git.home.luguber.info/inful/inflight/internal/metrics"
	"git.home.luguber.info/inful/inflight/internal/promexport"
)

// HTTPServer exposes the daemon's registry over HTTP: Prometheus scrape
// endpoint, a JSON counter API, and health.
type HTTPServer struct {
	cfg    *config.Config
	daemon *Daemon
	server *http.Server
}

// CounterResponse is the JSON representation of one counter.
type CounterResponse struct {
	Name      string     `json:"name"`
	Count     int64      `json:"count"`
	Persisted *int64     `json:"persisted,omitempty"`
	TakenAt   *time.Time `json:"persisted_at,omitempty"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// NewHTTPServer creates the HTTP server for the daemon.
func NewHTTPServer(cfg *config.Config, daemon *Daemon) *HTTPServer {
	return &HTTPServer{cfg: cfg, daemon: daemon}
}

// Start binds the listener and serves until the context is canceled.
// The bind happens eagerly so address conflicts surface immediately.
func (s *HTTPServer) Start(ctx context.Context) error {
	promReg, err := promexport.Register(s.daemon.Registry(), s.cfg.Namespace)
	if err != nil {
		return ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to register prometheus collector")
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promexport.HTTPHandler(promReg))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/counters", s.handleListCounters)
	mux.HandleFunc("GET /api/counters/{name}", s.handleGetCounter)
	mux.HandleFunc("DELETE /api/counters/{name}", s.handleRemoveCounter)
	mux.HandleFunc("GET /api/snapshots/{name}", s.handleSnapshots)

	ln, err := net.Listen("tcp", s.cfg.HTTP.Listen)
	if err != nil {
		return ierrors.WrapError(err, ierrors.CategoryDaemon, "failed to bind HTTP listener").
			WithContext("listen", s.cfg.HTTP.Listen)
	}

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("HTTP server listening", logfields.Listen(ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return ierrors.WrapError(err, ierrors.CategoryDaemon, "HTTP server failed")
		}
		return nil
	}
}

// Stop shuts the server down gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return ierrors.WrapError(err, ierrors.CategoryDaemon, "HTTP server shutdown failed")
	}
	return nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"registry": s.daemon.Registry().String(),
		"counters": s.daemon.Registry().Len(),
		"uptime":   time.Since(s.daemon.StartTime()).String(),
	})
}

func (s *HTTPServer) handleListCounters(w http.ResponseWriter, _ *http.Request) {
	var out []CounterResponse
	s.daemon.Registry().Each(func(name string, c *metrics.Counter) {
		out = append(out, s.counterResponse(name, c))
	})
	if out == nil {
		out = []CounterResponse{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c, err := s.daemon.Registry().Get(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:    err.Error(),
			Category: string(ierrors.CategoryState),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.counterResponse(name, c))
}

func (s *HTTPServer) handleRemoveCounter(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.daemon.Registry().Remove(name) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:    (&metrics.NotFoundError{Name: name, Registry: s.daemon.Registry().String()}).Error(),
			Category: string(ierrors.CategoryState),
		})
		return
	}
	slog.Info("Counter removed via API", logfields.Counter(name))
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.daemon.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:    "snapshot persistence is disabled",
			Category: string(ierrors.CategoryConfig),
		})
		return
	}

	name := r.PathValue("name")
	snaps, err := s.daemon.store.ByCounter(r.Context(), name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:    err.Error(),
			Category: string(ierrors.GetCategory(err)),
		})
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *HTTPServer) counterResponse(name string, c *metrics.Counter) CounterResponse {
	resp := CounterResponse{Name: name, Count: c.Count()}
	if s.daemon.projection != nil {
		if latest, ok := s.daemon.projection.Latest(name); ok {
			resp.Persisted = &latest.Count
			t := latest.TakenAt
			resp.TakenAt = &t
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", logfields.Error(err))
	}
}
