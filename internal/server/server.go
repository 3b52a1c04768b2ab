// Package server - служебный HTTP: здоровье, метрики и запуск прохода по запросу
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

// Запуск прохода вне расписания, обычно это scheduler.Scheduler
type SyncTrigger interface {
	RunNow(ctx context.Context) (model.PassReport, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	sync     SyncTrigger
	db       Pinger
	gatherer prometheus.Gatherer
	router   chi.Router
}

func New(sync SyncTrigger, db Pinger, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		sync:     sync,
		db:       db,
		gatherer: gatherer,
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/sync", s.handleSync)

	s.router = r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run слушает addr, пока не отменят ctx, затем аккуратно гасит сервер
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type feedResult struct {
	FeedID     int64  `json:"feed_id"`
	Feed       string `json:"feed"`
	Status     string `json:"status"`
	Failure    string `json:"failure,omitempty"`
	Error      string `json:"error,omitempty"`
	Ingested   int    `json:"ingested"`
	Skipped    int    `json:"skipped"`
	ReadStates int64  `json:"read_states"`
}

type syncResponse struct {
	StartedAt time.Time    `json:"started_at"`
	Duration  string       `json:"duration"`
	Ingested  int          `json:"ingested"`
	Failed    int          `json:"failed"`
	Feeds     []feedResult `json:"feeds"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.sync.RunNow(r.Context())
	if err != nil {
		log.WithError(err).Error("on-demand sync failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		StartedAt: report.StartedAt,
		Duration:  report.Duration.String(),
		Ingested:  report.Ingested(),
		Failed:    report.Failed(),
		Feeds: lo.Map(report.Feeds, func(f model.FeedReport, _ int) feedResult {
			res := feedResult{
				FeedID:     f.FeedID,
				Feed:       f.FeedName,
				Status:     string(f.Status),
				Failure:    string(f.Failure),
				Ingested:   f.Ingested,
				Skipped:    f.Skipped(),
				ReadStates: f.ReadStates,
			}
			if f.Err != nil {
				res.Error = f.Err.Error()
			}
			return res
		}),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}
