// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scu-nlp/scu-crawler/internal/config"
	"github.com/scu-nlp/scu-crawler/internal/crawler"
	"github.com/scu-nlp/scu-crawler/internal/service"
	"github.com/scu-nlp/scu-crawler/internal/storage/sqlite"
)

// Runner executes a crawl target as a single blocking call.
type Runner interface {
	Run(ctx context.Context, target string, pages int) crawler.Result
}

// RunHistory records and reads crawl-run rows.
type RunHistory interface {
	RecordStart(ctx context.Context, id, target string, startedAt time.Time) error
	RecordFinish(ctx context.Context, id string, finishedAt time.Time, result crawler.Result) error
	LatestRun(ctx context.Context, target string) (*sqlite.Run, error)
}

// Server wires HTTP handlers to the crawl runner and run history. The
// engine itself stays strictly sequential; the server only moves the single
// blocking crawl call onto a background goroutine and enforces one crawl
// per target at a time.
type Server struct {
	router  chi.Router
	runner  Runner
	history RunHistory
	cfg     config.Config
	logger  *zap.Logger
	clock   func() time.Time

	mu      sync.Mutex
	running map[string]bool

	// onRunDone is a test seam invoked after a background run completes.
	onRunDone func(target string)
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, history RunHistory, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		runner:  runner,
		history: history,
		cfg:     cfg,
		logger:  logger,
		clock:   time.Now,
		running: make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/health", s.health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Post("/crawl", s.startCrawl)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type crawlRequest struct {
	Target string `json:"target"`
	Pages  int    `json:"pages,omitempty"`
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !service.ValidTarget(req.Target) {
		writeError(w, http.StatusBadRequest, "target must be personnel, news, or all")
		return
	}
	if req.Pages < 0 {
		writeError(w, http.StatusBadRequest, "pages must be >= 0")
		return
	}

	if !s.tryAcquire(req.Target) {
		writeError(w, http.StatusConflict, "a crawl for this target is already running")
		return
	}

	runID := uuid.NewString()
	if err := s.history.RecordStart(r.Context(), runID, req.Target, s.clock()); err != nil {
		s.logger.Error("record run start failed", zap.String("run_id", runID), zap.Error(err))
	}

	go s.runCrawl(runID, req.Target, req.Pages)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"run_id": runID,
		"target": req.Target,
	})
}

// runCrawl executes the blocking crawl call in the background and records
// its terminal result.
func (s *Server) runCrawl(runID, target string, pages int) {
	defer s.release(target)

	result := s.runner.Run(context.Background(), target, pages)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.history.RecordFinish(ctx, runID, s.clock(), result); err != nil {
		s.logger.Error("record run finish failed", zap.String("run_id", runID), zap.Error(err))
	}
	s.logger.Info("background crawl finished",
		zap.String("run_id", runID),
		zap.String("target", target),
		zap.Bool("success", result.Success),
	)
	if s.onRunDone != nil {
		s.onRunDone(target)
	}
}

type targetStatus struct {
	Running bool        `json:"running"`
	LastRun *sqlite.Run `json:"last_run,omitempty"`
}

type fileStatus struct {
	Exists    bool  `json:"exists"`
	SizeBytes int64 `json:"size_bytes"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	targets := make(map[string]targetStatus)
	for _, target := range []string{service.TargetPersonnel, service.TargetNews, service.TargetAll} {
		last, err := s.history.LatestRun(r.Context(), target)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "read run history failed")
			return
		}
		targets[target] = targetStatus{
			Running: s.isRunning(target),
			LastRun: last,
		}
	}

	files := make(map[string]fileStatus)
	for _, name := range []string{
		s.cfg.Storage.Files.PDFLinks,
		s.cfg.Storage.Files.PersonnelData,
		s.cfg.Storage.Files.NewsTexts,
		s.cfg.Storage.Files.NewsData,
	} {
		info, err := os.Stat(filepath.Join(s.cfg.Storage.RawDataDir, name))
		if err != nil {
			files[name] = fileStatus{}
			continue
		}
		files[name] = fileStatus{Exists: true, SizeBytes: info.Size()}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"targets": targets,
		"files":   files,
	})
}

// tryAcquire claims a crawl slot for target. The "all" target conflicts
// with every other target, and vice versa.
func (s *Server) tryAcquire(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[target] || s.running[service.TargetAll] {
		return false
	}
	if target == service.TargetAll && len(s.running) > 0 {
		for _, active := range s.running {
			if active {
				return false
			}
		}
	}
	s.running[target] = true
	return true
}

func (s *Server) release(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, target)
}

func (s *Server) isRunning(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[target]
}
