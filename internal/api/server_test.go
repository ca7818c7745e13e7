package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/pipeline"
)

type fakeIntake struct {
	createErr error
	lastOwner string
	regenJobs []models.StageJob
}

func (f *fakeIntake) CreateBatch(_ context.Context, name, ownerID string, seeds []pipeline.BookSeed) (models.Batch, error) {
	if f.createErr != nil {
		return models.Batch{}, f.createErr
	}
	f.lastOwner = ownerID
	return models.Batch{ID: "batch-1", Name: name, BookCount: len(seeds), Status: models.BatchProcessing, OwnerID: ownerID}, nil
}

func (f *fakeIntake) StartBatch(_ context.Context, batchID string) error {
	if batchID == "missing" {
		return &apperr.NotFoundError{Kind: "batch", ID: batchID}
	}
	return nil
}

func (f *fakeIntake) Regenerate(_ context.Context, batchID string, stages []string) ([]models.StageJob, error) {
	if len(stages) == 0 {
		return nil, &apperr.ValidationError{Msg: "at least one stage is required"}
	}
	return f.regenJobs, nil
}

type fakeCatalog struct {
	batches map[string]models.Batch
	books   map[string]models.Book
	deleted []string
}

func (f *fakeCatalog) GetBatch(_ context.Context, id string) (models.Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return models.Batch{}, &apperr.NotFoundError{Kind: "batch", ID: id}
	}
	return b, nil
}

func (f *fakeCatalog) ListBatchBooks(context.Context, string) ([]models.Book, error) {
	return nil, nil
}

func (f *fakeCatalog) DeleteBatchCascade(_ context.Context, batchID string) error {
	f.deleted = append(f.deleted, batchID)
	return nil
}

func (f *fakeCatalog) GetBook(_ context.Context, id string) (models.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return models.Book{}, &apperr.NotFoundError{Kind: "book", ID: id}
	}
	return b, nil
}

func (f *fakeCatalog) ListChapters(context.Context, string) ([]models.Chapter, error) {
	return []models.Chapter{{ID: "ch-1", Order: 1}}, nil
}

func (f *fakeCatalog) ListBookAudit(context.Context, string) ([]models.GeneratedContent, error) {
	return []models.GeneratedContent{{ID: "rec-1", ContentType: models.ContentTitle}}, nil
}

type fakeDLQ struct{ items []string }

func (f *fakeDLQ) DLQPeek(context.Context, int64) ([]string, error) { return f.items, nil }

func newTestServer(intake *fakeIntake, catalog *fakeCatalog, dlq *fakeDLQ) *httptest.Server {
	if catalog.batches == nil {
		catalog.batches = map[string]models.Batch{}
	}
	if catalog.books == nil {
		catalog.books = map[string]models.Book{}
	}
	s := New(config.Config{}, intake, catalog, dlq, nil)
	return httptest.NewServer(s.Router())
}

func TestCreateBatchEndpoint(t *testing.T) {
	intake := &fakeIntake{}
	srv := newTestServer(intake, &fakeCatalog{}, &fakeDLQ{})
	defer srv.Close()

	body := `{"name": "drop", "books": [{"author_id": "a", "genre_id": "g", "plot_id": "p"}]}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/batches", strings.NewReader(body))
	req.Header.Set("X-Owner-ID", "owner-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var batch models.Batch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if batch.ID != "batch-1" || batch.BookCount != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	if intake.lastOwner != "owner-42" {
		t.Fatalf("owner = %q", intake.lastOwner)
	}
}

func TestCreateBatchValidationMapsTo400(t *testing.T) {
	intake := &fakeIntake{createErr: &apperr.ValidationError{Msg: "batch name is required"}}
	srv := newTestServer(intake, &fakeCatalog{}, &fakeDLQ{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/batches", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestGetBatchNotFoundMapsTo404(t *testing.T) {
	srv := newTestServer(&fakeIntake{}, &fakeCatalog{}, &fakeDLQ{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/batches/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRegenerateEndpoint(t *testing.T) {
	intake := &fakeIntake{regenJobs: []models.StageJob{{ID: "j1", Stage: models.StageCover, Force: true}}}
	srv := newTestServer(intake, &fakeCatalog{}, &fakeDLQ{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/batches/batch-1/regenerate", "application/json",
		strings.NewReader(`{"stages": ["cover"]}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Jobs []models.StageJob `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Jobs) != 1 || out.Jobs[0].ID != "j1" {
		t.Fatalf("jobs = %+v", out.Jobs)
	}

	resp2, err := http.Post(srv.URL+"/batches/batch-1/regenerate", "application/json",
		strings.NewReader(`{"stages": []}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty stages status = %d", resp2.StatusCode)
	}
}

func TestDeleteBatchEndpoint(t *testing.T) {
	catalog := &fakeCatalog{batches: map[string]models.Batch{"batch-1": {ID: "batch-1"}}}
	srv := newTestServer(&fakeIntake{}, catalog, &fakeDLQ{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/batches/batch-1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(catalog.deleted) != 1 || catalog.deleted[0] != "batch-1" {
		t.Fatalf("deleted = %v", catalog.deleted)
	}
}

func TestBookReadEndpoints(t *testing.T) {
	catalog := &fakeCatalog{books: map[string]models.Book{"book-1": {ID: "book-1", Title: "Ember"}}}
	srv := newTestServer(&fakeIntake{}, catalog, &fakeDLQ{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/books/book-1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/books/book-1/audit")
	if err != nil {
		t.Fatalf("get audit: %v", err)
	}
	defer resp2.Body.Close()
	var out struct {
		Records []models.GeneratedContent `json:"records"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Records) != 1 {
		t.Fatalf("records = %+v", out.Records)
	}

	resp3, err := http.Get(srv.URL + "/books/missing/chapters")
	if err != nil {
		t.Fatalf("get chapters: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("missing book status = %d", resp3.StatusCode)
	}
}

func TestDLQEndpoint(t *testing.T) {
	srv := newTestServer(&fakeIntake{}, &fakeCatalog{}, &fakeDLQ{items: []string{"job-9"}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dlq")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Items []string `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0] != "job-9" {
		t.Fatalf("items = %v", out.Items)
	}
}
