// Package api exposes the HTTP interface for the audit service.
//
// Routes:
//   - POST /v1/audits submits an audit.
//   - GET  /v1/audits/{job_id}/status reports progress.
//   - GET  /v1/audits/{job_id}/results returns the persisted report.
//   - POST /v1/audits/{job_id}/cancel fails a live job.
//   - GET  /healthz, /readyz for probes; /metrics for Prometheus.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/seolytics/aeo-audit/internal/audit"
	"github.com/seolytics/aeo-audit/internal/config"
	"github.com/seolytics/aeo-audit/internal/metrics"
	"github.com/seolytics/aeo-audit/internal/orchestrator"
)

const (
	requestTimeout = 60 * time.Second

	// defaultOwner groups audits submitted without an owner id.
	defaultOwner = "anonymous"
)

// Server wires HTTP handlers to the audit orchestrator.
type Server struct {
	router chi.Router
	orch   *orchestrator.Orchestrator
	ids    audit.IDGenerator
	logger *zap.Logger
	cfg    config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	orch *orchestrator.Orchestrator,
	ids audit.IDGenerator,
	logger *zap.Logger,
	cfg config.Config,
) *Server {
	s := &Server{
		orch:   orch,
		ids:    ids,
		logger: logger,
		cfg:    cfg,
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", s.startAudit)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getStatus)
				r.Get("/results", s.getResults)
				r.Post("/cancel", s.cancelAudit)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type startAuditRequest struct {
	URL      string `json:"url"`
	OwnerID  string `json:"owner_id"`
	MaxPages int    `json:"max_pages"`
	Depth    int    `json:"depth"`
}

func (s *Server) startAudit(w http.ResponseWriter, r *http.Request) {
	var req startAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = defaultOwner
	}
	res, err := s.orch.StartAudit(r.Context(), orchestrator.AuditRequest{
		OwnerID:  req.OwnerID,
		URL:      req.URL,
		MaxPages: req.MaxPages,
		Depth:    req.Depth,
	})
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	progress, err := s.orch.PollStatus(r.Context(), jobID)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	report, err := s.orch.GetResults(r.Context(), jobID)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) cancelAudit(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.orch.Cancel(r.Context(), jobID); err != nil {
		s.writeOrchestratorError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(audit.StatusFailed),
	})
}

// writeOrchestratorError maps orchestrator errors to HTTP statuses. The
// raw error text is only surfaced for client-side faults.
func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidURL):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, audit.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, orchestrator.ErrJobTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, err := s.ids.NewID()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
