package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/models"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/orchestrator"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/ratelimit"
	"github.com/VerticalLabs-ai/rfp-ml-sub002/internal/telemetry"
)

// AuditReader serves the audit history endpoint.
type AuditReader interface {
	ListAudit(ctx context.Context, submissionID string) ([]models.AuditEntry, error)
}

// Server wires HTTP handlers for the submission API.
type Server struct {
	orc      *orchestrator.Orchestrator
	audit    AuditReader
	limiter  *ratelimit.TokenBucket
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

// New constructs the API server. The limiter may be nil.
func New(orc *orchestrator.Orchestrator, audit AuditReader, limiter *ratelimit.TokenBucket, logger *zap.SugaredLogger) *Server {
	return &Server{
		orc:      orc,
		audit:    audit,
		limiter:  limiter,
		validate: validator.New(),
		logger:   logger.Named("api"),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/submissions", s.handleSubmit)
	r.Get("/submissions/{id}", s.handleGetStatus)
	r.Get("/submissions/{id}/audit", s.handleGetAudit)
	r.Post("/submissions/{id}/retry", s.handleRetry)
	r.Get("/statistics", s.handleStatistics)
	return r
}

type submitRequest struct {
	RFPID          string             `json:"rfp_id" validate:"required"`
	Portal         string             `json:"portal" validate:"required"`
	Priority       int                `json:"priority" validate:"gte=0,lte=100"`
	Document       models.BidDocument `json:"document" validate:"required"`
	MaxRetries     int                `json:"max_retries" validate:"gte=0,lte=20"`
	ScheduledTime  *time.Time         `json:"scheduled_time"`
	IdempotencyKey string             `json:"idempotency_key"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.limiter != nil {
		limKey := fmt.Sprintf("rl:%s", vendorFromRequest(r))
		allowed, _, err := s.limiter.Allow(r.Context(), limKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	sreq := orchestrator.SubmitRequest{
		RFPID:          req.RFPID,
		Portal:         req.Portal,
		Priority:       req.Priority,
		Document:       req.Document,
		MaxRetries:     req.MaxRetries,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.ScheduledTime != nil {
		sreq.ScheduledTime = *req.ScheduledTime
	}

	sub, err := s.orc.Submit(r.Context(), sreq)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrUnknownRFP), errors.Is(err, orchestrator.ErrUnknownPortal):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, orchestrator.ErrPastDeadline):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Errorw("submit failed", "rfp_id", req.RFPID, "err", err)
			writeError(w, http.StatusInternalServerError, "submit failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.orc.GetJobStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := s.audit.ListAudit(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := s.orc.RetrySubmission(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, orchestrator.ErrRetryExhausted):
			// Reported, non-fatal; the job state is included unchanged.
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "submission": sub})
		case errors.Is(err, orchestrator.ErrNotRetryable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Errorw("retry failed", "id", id, "err", err)
			writeError(w, http.StatusInternalServerError, "retry failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orc.GetStatistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "statistics failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func vendorFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Vendor-ID"); v != "" {
		return v
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
