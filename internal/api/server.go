// Package api exposes the HTTP surface: batch intake and kickoff, the
// regeneration trigger, read endpoints for batches, books, chapters,
// and the generation ledger, and operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/pipeline"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/ratelimit"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// Intake is the write side: batch creation, kickoff, and regeneration.
type Intake interface {
	CreateBatch(ctx context.Context, name, ownerID string, seeds []pipeline.BookSeed) (models.Batch, error)
	StartBatch(ctx context.Context, batchID string) error
	Regenerate(ctx context.Context, batchID string, stages []string) ([]models.StageJob, error)
}

// Catalog is the read side plus batch deletion.
type Catalog interface {
	GetBatch(ctx context.Context, id string) (models.Batch, error)
	ListBatchBooks(ctx context.Context, batchID string) ([]models.Book, error)
	DeleteBatchCascade(ctx context.Context, batchID string) error
	GetBook(ctx context.Context, id string) (models.Book, error)
	ListChapters(ctx context.Context, bookID string) ([]models.Chapter, error)
	ListBookAudit(ctx context.Context, bookID string) ([]models.GeneratedContent, error)
}

// DeadLetters peeks the dead-letter list.
type DeadLetters interface {
	DLQPeek(ctx context.Context, count int64) ([]string, error)
}

// Server wires the HTTP handlers.
type Server struct {
	cfg     config.Config
	intake  Intake
	catalog Catalog
	dlq     DeadLetters
	limiter *ratelimit.TokenBucket
}

// New constructs the API server. limiter may be nil to disable intake
// rate limiting (tests).
func New(cfg config.Config, intake Intake, catalog Catalog, dlq DeadLetters, limiter *ratelimit.TokenBucket) *Server {
	return &Server{cfg: cfg, intake: intake, catalog: catalog, dlq: dlq, limiter: limiter}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/batches", s.handleCreateBatch)
	r.Get("/batches/{id}", s.handleGetBatch)
	r.Get("/batches/{id}/books", s.handleListBatchBooks)
	r.Post("/batches/{id}/start", s.handleStartBatch)
	r.Post("/batches/{id}/regenerate", s.handleRegenerate)
	r.Delete("/batches/{id}", s.handleDeleteBatch)

	r.Get("/books/{id}", s.handleGetBook)
	r.Get("/books/{id}/chapters", s.handleListChapters)
	r.Get("/books/{id}/audit", s.handleBookAudit)

	r.Get("/dlq", s.handleDLQ)
	return r
}

type createBatchRequest struct {
	Name  string              `json:"name"`
	Books []pipeline.BookSeed `json:"books"`
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), ratelimit.OwnerKey(owner))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit check failed")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	batch, err := s.intake.CreateBatch(r.Context(), req.Name, owner, req.Books)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.StartBatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": models.BatchProcessing})
}

type regenerateRequest struct {
	Stages []string `json:"stages"`
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	jobs, err := s.intake.Regenerate(r.Context(), chi.URLParam(r, "id"), req.Stages)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := s.catalog.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleListBatchBooks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.catalog.GetBatch(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	books, err := s.catalog.ListBatchBooks(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.catalog.GetBatch(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	if err := s.catalog.DeleteBatchCascade(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.catalog.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.catalog.GetBook(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	chapters, err := s.catalog.ListChapters(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapters": chapters})
}

func (s *Server) handleBookAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.catalog.GetBook(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	records, err := s.catalog.ListBookAudit(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleDLQ(w http.ResponseWriter, r *http.Request) {
	items, err := s.dlq.DLQPeek(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read dlq")
		return
	}
	if items == nil {
		items = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func ownerFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Owner-ID"); v != "" {
		return v
	}
	return "default"
}

// writeAppError maps the error taxonomy to HTTP status codes.
func writeAppError(w http.ResponseWriter, err error) {
	var validation *apperr.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Msg)
		return
	}
	var notFound *apperr.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
