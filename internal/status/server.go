// Package status exposes the sync subsystem state over HTTP for operators.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"news_offline/internal/domain"
)

type Drainer interface {
	Drain(ctx context.Context) (*domain.DrainStats, error)
}

// DrainFunc adapts a function to Drainer.
type DrainFunc func(ctx context.Context) (*domain.DrainStats, error)

func (f DrainFunc) Drain(ctx context.Context) (*domain.DrainStats, error) {
	return f(ctx)
}

type QueueReader interface {
	ListPending(ctx context.Context) ([]domain.SyncQueueItem, error)
}

type Connectivity interface {
	Online() bool
}

type Server struct {
	addr         string
	drainer      Drainer
	queue        QueueReader
	connectivity Connectivity
	logger       *slog.Logger
}

func New(addr string, drainer Drainer, queue QueueReader, connectivity Connectivity, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		drainer:      drainer,
		queue:        queue,
		connectivity: connectivity,
		logger:       logger.With("component", "status"),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/queue", s.listQueue)
		r.Get("/connectivity", s.getConnectivity)
		r.Post("/drain", s.drain)
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queueResponse struct {
	Count int                    `json:"count"`
	Items []domain.SyncQueueItem `json:"items"`
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.queue.ListPending(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if items == nil {
		items = []domain.SyncQueueItem{}
	}
	s.writeJSON(w, http.StatusOK, queueResponse{Count: len(items), Items: items})
}

func (s *Server) getConnectivity(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"online": s.connectivity.Online()})
}

type drainResponse struct {
	Processed  int   `json:"processed"`
	Synced     int   `json:"synced"`
	Failed     int   `json:"failed"`
	Abandoned  int   `json:"abandoned"`
	Deferred   int   `json:"deferred"`
	DurationMs int64 `json:"durationMs"`
}

func (s *Server) drain(w http.ResponseWriter, r *http.Request) {
	stats, err := s.drainer.Drain(r.Context())
	switch {
	case errors.Is(err, domain.ErrDrainInProgress):
		s.writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, drainResponse{
		Processed:  stats.Processed,
		Synced:     stats.Synced,
		Failed:     stats.Failed,
		Abandoned:  stats.Abandoned,
		Deferred:   stats.Deferred,
		DurationMs: stats.Duration.Milliseconds(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}
