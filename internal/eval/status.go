package eval

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mqleval/internal/domain"
)

// StatusServer exposes run progress over HTTP so long batch runs can be
// observed without attaching to the process.
type StatusServer struct {
	agg    *Aggregator
	logger *slog.Logger
	srv    *http.Server

	mu     sync.Mutex
	report *domain.Report
}

func NewStatusServer(addr string, agg *Aggregator, logger *slog.Logger) *StatusServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &StatusServer{agg: agg, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/progress", s.handleProgress)
	r.Get("/report", s.handleReport)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start serves in the background. Listen errors other than a clean
// shutdown are logged, not raised: status serving is best-effort.
func (s *StatusServer) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("status server stopped", "error", err)
		}
	}()
}

// Shutdown stops the server, waiting up to the context deadline.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// SetReport publishes the final report on /report.
func (s *StatusServer) SetReport(r domain.Report) {
	s.mu.Lock()
	s.report = &r
	s.mu.Unlock()
}

func (s *StatusServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *StatusServer) handleProgress(w http.ResponseWriter, _ *http.Request) {
	processed, total, sums := s.agg.Snapshot()
	writeJSON(w, map[string]interface{}{
		"processed": processed,
		"total":     total,
		"sums":      sums,
	})
}

func (s *StatusServer) handleReport(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	report := s.report
	s.mu.Unlock()
	if report == nil {
		http.Error(w, "report not ready", http.StatusNotFound)
		return
	}
	writeJSON(w, report)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
