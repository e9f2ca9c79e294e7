// Package api exposes the pipeline stages over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/RobinCoderZhao/newsdigest/internal/collector"
	"github.com/RobinCoderZhao/newsdigest/internal/dispatch"
	"github.com/RobinCoderZhao/newsdigest/internal/feed"
	"github.com/RobinCoderZhao/newsdigest/internal/processor"
)

// CollectRunner runs one collection pass; satisfied by *collector.Collector
// bound to its sources.
type CollectRunner interface {
	Run(ctx context.Context, sources []feed.Source) (collector.Stats, error)
}

// ProcessRunner runs one processing pass; satisfied by *processor.Processor.
type ProcessRunner interface {
	Run(ctx context.Context) (processor.Stats, error)
}

// Server is the HTTP trigger surface for the pipeline.
type Server struct {
	collector  CollectRunner
	processor  ProcessRunner
	dispatcher *dispatch.AsyncDispatcher
	sources    []feed.Source
	logger     *slog.Logger
	mux        *http.ServeMux
}

func NewServer(c CollectRunner, p ProcessRunner, d *dispatch.AsyncDispatcher, sources []feed.Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		collector:  c,
		processor:  p,
		dispatcher: d,
		sources:    sources,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/collect", s.handleCollect)
	s.mux.HandleFunc("POST /api/process", s.handleProcess)
	s.mux.HandleFunc("POST /api/process-async", s.handleProcessAsync)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Info("http request",
		"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collector.Run(r.Context(), s.sources)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message": "collection complete",
		"stats":   stats,
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	stats, err := s.processor.Run(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message": "processing complete",
		"stats":   stats,
	})
}

// handleProcessAsync accepts the work and answers 202 before any processing
// happens. The background run is detached from this request's context.
func (s *Server) handleProcessAsync(w http.ResponseWriter, r *http.Request) {
	ack := s.dispatcher.Dispatch()
	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"message":    "processing started",
		"process_id": ack.ProcessID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.logger.Error("request failed", "status", status, "error", err)
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
