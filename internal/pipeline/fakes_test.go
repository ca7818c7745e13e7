package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// fakeStore is an in-memory ContentStore that enforces the same
// transition rules as the Postgres store.
type fakeStore struct {
	mu       sync.Mutex
	batches  map[string]models.Batch
	books    map[string]models.Book
	order    []string
	chapters map[string][]models.Chapter
	audit    []models.GeneratedContent

	failCommits bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches:  make(map[string]models.Batch),
		books:    make(map[string]models.Book),
		chapters: make(map[string][]models.Chapter),
	}
}

func (f *fakeStore) GetBatch(_ context.Context, id string) (models.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return models.Batch{}, &apperr.NotFoundError{Kind: "batch", ID: id}
	}
	return b, nil
}

func (f *fakeStore) SetBatchStatus(_ context.Context, id, status string, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return &apperr.NotFoundError{Kind: "batch", ID: id}
	}
	if !models.BatchAdvances(b.Status, status) {
		return fmt.Errorf("illegal batch transition %s -> %s", b.Status, status)
	}
	b.Status = status
	b.ErrorMessage = errorMessage
	f.batches[id] = b
	return nil
}

func (f *fakeStore) CreateBatchWithBooks(_ context.Context, batch models.Batch, books []models.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[batch.ID] = batch
	for _, b := range books {
		f.books[b.ID] = b
		f.order = append(f.order, b.ID)
	}
	return nil
}

func (f *fakeStore) ListBatchBooks(_ context.Context, batchID string) ([]models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Book
	for _, id := range f.order {
		b := f.books[id]
		if b.BatchID != nil && *b.BatchID == batchID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBook(_ context.Context, id string) (models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return models.Book{}, &apperr.NotFoundError{Kind: "book", ID: id}
	}
	return b, nil
}

func (f *fakeStore) SetStageStatus(_ context.Context, bookID, stage string, state models.StageState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setStageLocked(bookID, stage, state)
}

func (f *fakeStore) setStageLocked(bookID, stage string, state models.StageState) error {
	b, ok := f.books[bookID]
	if !ok {
		return &apperr.NotFoundError{Kind: "book", ID: bookID}
	}
	if b.GenerationStatus == nil {
		b.GenerationStatus = models.GenerationStatus{}
	}
	b.GenerationStatus[stage] = state
	f.books[bookID] = b
	return nil
}

func (f *fakeStore) commit(bookID, stage string, rec models.GeneratedContent, apply func(*models.Book)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommits {
		return fmt.Errorf("simulated commit failure")
	}
	b, ok := f.books[bookID]
	if !ok {
		return &apperr.NotFoundError{Kind: "book", ID: bookID}
	}
	apply(&b)
	f.books[bookID] = b
	if err := f.setStageLocked(bookID, stage, models.StageState{Status: models.StageCompleted}); err != nil {
		return err
	}
	f.audit = append(f.audit, rec)
	return nil
}

func (f *fakeStore) CommitTitle(_ context.Context, bookID, title string, rec models.GeneratedContent) error {
	return f.commit(bookID, models.StageTitle, rec, func(b *models.Book) {
		b.Title = title
		b.Status = models.BookUnpublished
	})
}

func (f *fakeStore) CommitDescription(_ context.Context, bookID, description string, rec models.GeneratedContent) error {
	return f.commit(bookID, models.StageDescription, rec, func(b *models.Book) {
		b.Description = &description
	})
}

func (f *fakeStore) ReplaceChapters(_ context.Context, bookID string, chapters []models.Chapter, rec models.GeneratedContent) error {
	return f.commit(bookID, models.StageChapters, rec, func(b *models.Book) {
		f.chapters[bookID] = chapters
	})
}

func (f *fakeStore) CommitCover(_ context.Context, bookID, coverURL string, rec models.GeneratedContent) error {
	return f.commit(bookID, models.StageCover, rec, func(b *models.Book) {
		b.CoverURL = &coverURL
	})
}

func (f *fakeStore) CommitTags(_ context.Context, bookID string, tags []string, rec models.GeneratedContent) error {
	return f.commit(bookID, models.StageTags, rec, func(b *models.Book) {
		b.Tags = tags
	})
}

func (f *fakeStore) AppendGenerated(_ context.Context, rec models.GeneratedContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, rec)
	return nil
}

func (f *fakeStore) auditByType(contentType string) []models.GeneratedContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GeneratedContent
	for _, rec := range f.audit {
		if rec.ContentType == contentType {
			out = append(out, rec)
		}
	}
	return out
}

// fakeTaxonomy serves reference data from maps.
type fakeTaxonomy struct {
	genres  map[string]models.Genre
	plots   map[string]models.Plot
	authors map[string]models.Author
	options map[string]models.StoryOption
}

func newFakeTaxonomy() *fakeTaxonomy {
	return &fakeTaxonomy{
		genres:  make(map[string]models.Genre),
		plots:   make(map[string]models.Plot),
		authors: make(map[string]models.Author),
		options: make(map[string]models.StoryOption),
	}
}

func (f *fakeTaxonomy) GetGenre(_ context.Context, id string) (models.Genre, error) {
	g, ok := f.genres[id]
	if !ok {
		return models.Genre{}, &apperr.NotFoundError{Kind: "genre", ID: id}
	}
	return g, nil
}

func (f *fakeTaxonomy) GetPlot(_ context.Context, id string) (models.Plot, error) {
	p, ok := f.plots[id]
	if !ok {
		return models.Plot{}, &apperr.NotFoundError{Kind: "plot", ID: id}
	}
	return p, nil
}

func (f *fakeTaxonomy) GetAuthor(_ context.Context, id string) (models.Author, error) {
	a, ok := f.authors[id]
	if !ok {
		return models.Author{}, &apperr.NotFoundError{Kind: "author", ID: id}
	}
	return a, nil
}

func (f *fakeTaxonomy) GetOption(_ context.Context, id string) (models.StoryOption, error) {
	o, ok := f.options[id]
	if !ok {
		return models.StoryOption{}, &apperr.NotFoundError{Kind: "story option", ID: id}
	}
	return o, nil
}

// fakeText replays canned completions in call order.
type fakeText struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (f *fakeText) Complete(_ context.Context, _, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("unexpected completion call %d", i)
}

func (f *fakeText) Model() string { return "fake-text-model" }

// fakeImage returns one canned temporary URL.
type fakeImage struct {
	url string
	err error
}

func (f *fakeImage) Generate(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeImage) Model() string { return "fake-image-model" }

// fakeStorage records uploads in memory.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, data []byte, folder, key, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "https://covers.test/" + folder + "/" + key
	f.objects[url] = data
	return url, nil
}

func (f *fakeStorage) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, url)
	f.deleted = append(f.deleted, url)
	return nil
}

// fakeJobs records enqueued stage jobs.
type fakeJobs struct {
	mu   sync.Mutex
	jobs []models.StageJob
}

func (f *fakeJobs) Enqueue(_ context.Context, job models.StageJob) (models.StageJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", len(f.jobs)+1)
	}
	f.jobs = append(f.jobs, job)
	return job, nil
}

func (f *fakeJobs) byStage(stage string) []models.StageJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StageJob
	for _, j := range f.jobs {
		if j.Stage == stage {
			out = append(out, j)
		}
	}
	return out
}
