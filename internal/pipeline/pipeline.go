// Package pipeline implements the batch content-generation pipeline:
// batch intake, the five stage workers (title, description, chapters,
// cover, tags), and the operator regeneration trigger. Stages hand off
// through the job queue, never by direct call, so they fail
// independently and in time-decoupled fashion.
package pipeline

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// ContentStore is the transactional document store for batches, books,
// chapters, and the generation ledger. Every Commit*/Replace* method
// lands the book write and its audit record in one transaction.
type ContentStore interface {
	GetBatch(ctx context.Context, id string) (models.Batch, error)
	SetBatchStatus(ctx context.Context, id, status string, errorMessage *string) error
	CreateBatchWithBooks(ctx context.Context, batch models.Batch, books []models.Book) error
	ListBatchBooks(ctx context.Context, batchID string) ([]models.Book, error)

	GetBook(ctx context.Context, id string) (models.Book, error)
	SetStageStatus(ctx context.Context, bookID, stage string, state models.StageState) error
	CommitTitle(ctx context.Context, bookID, title string, rec models.GeneratedContent) error
	CommitDescription(ctx context.Context, bookID, description string, rec models.GeneratedContent) error
	ReplaceChapters(ctx context.Context, bookID string, chapters []models.Chapter, rec models.GeneratedContent) error
	CommitCover(ctx context.Context, bookID, coverURL string, rec models.GeneratedContent) error
	CommitTags(ctx context.Context, bookID string, tags []string, rec models.GeneratedContent) error

	AppendGenerated(ctx context.Context, rec models.GeneratedContent) error
}

// Read-only taxonomy lookups, one interface per kind. The pipeline
// joins these into prompts and never writes them.
type (
	GenreSource interface {
		GetGenre(ctx context.Context, id string) (models.Genre, error)
	}
	PlotSource interface {
		GetPlot(ctx context.Context, id string) (models.Plot, error)
	}
	AuthorSource interface {
		GetAuthor(ctx context.Context, id string) (models.Author, error)
	}
	OptionSource interface {
		GetOption(ctx context.Context, id string) (models.StoryOption, error)
	}
)

// Taxonomy bundles the per-kind sources a full pipeline needs.
type Taxonomy interface {
	GenreSource
	PlotSource
	AuthorSource
	OptionSource
}

// TextGenerator is the text-completion service.
type TextGenerator interface {
	Complete(ctx context.Context, system, user, model string) (string, error)
	Model() string
}

// ImageGenerator is the image-generation service; it returns a
// temporary URL the cover stage must re-host.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ObjectStorage re-hosts downloaded cover bytes at a permanent URL.
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, folder, key, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Enqueuer hands stage jobs to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.StageJob) (models.StageJob, error)
}

// Pipeline wires the stage workers to their collaborators.
type Pipeline struct {
	store   ContentStore
	tax     Taxonomy
	text    TextGenerator
	image   ImageGenerator
	storage ObjectStorage
	jobs    Enqueuer

	httpClient    *http.Client
	primaryQueue  string
	regenQueue    string
	coverFolder   string
	coverMaxBytes int64
	autoStart     bool
}

// New builds a pipeline. image and storage may be nil when cover
// generation is not configured; the cover stage then fails cleanly.
func New(cfg config.Config, store ContentStore, tax Taxonomy, text TextGenerator, image ImageGenerator, storage ObjectStorage, jobs Enqueuer) *Pipeline {
	timeout := cfg.DownloadTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.CoverMaxBytes
	if maxBytes == 0 {
		maxBytes = 25 * 1024 * 1024
	}
	primary := cfg.PrimaryQueue
	if primary == "" {
		primary = models.QueuePrimary
	}
	regen := cfg.RegenQueue
	if regen == "" {
		regen = models.QueueRegeneration
	}
	return &Pipeline{
		store:         store,
		tax:           tax,
		text:          text,
		image:         image,
		storage:       storage,
		jobs:          jobs,
		httpClient:    &http.Client{Timeout: timeout},
		primaryQueue:  primary,
		regenQueue:    regen,
		coverFolder:   cfg.CoverFolder,
		coverMaxBytes: maxBytes,
		autoStart:     cfg.AutoStartTitles,
	}
}

// beginStage runs the idempotency check and flips the stage to
// in_progress. A stage already completed is skipped on normal
// deliveries; regeneration resets the stage to pending before its jobs
// are enqueued, so the transition discipline holds there too.
func (p *Pipeline) beginStage(ctx context.Context, book models.Book, stage string, force bool) (skip bool, err error) {
	state := book.GenerationStatus.Stage(stage)
	if state.Status == models.StageCompleted && !force {
		return true, nil
	}
	if err := p.store.SetStageStatus(ctx, book.ID, stage, models.StageState{Status: models.StageInProgress}); err != nil {
		return false, err
	}
	return false, nil
}

// failStage records a per-book stage failure. Parse failures also get
// an audit record carrying the prompt and the raw response, written
// outside the aborted content transaction so the ledger keeps the
// attempt. The cause is returned for the job runner.
func (p *Pipeline) failStage(ctx context.Context, bookID, batchID, stage, contentType, source string, cause error) error {
	var parseErr *apperr.ParseError
	if errors.As(cause, &parseErr) {
		rec := models.GeneratedContent{
			ID:             uuid.New().String(),
			BookID:         bookID,
			BatchID:        batchID,
			ContentType:    contentType,
			PromptUsed:     parseErr.Prompt,
			RawAPIResponse: parseErr.Raw,
			Source:         source,
		}
		if err := p.store.AppendGenerated(ctx, rec); err != nil {
			log.Printf("pipeline: append parse-failure audit for book %s: %v", bookID, err)
		}
		telemetry.ParseFailures.WithLabelValues(stage).Inc()
	}
	state := models.StageState{Status: models.StageFailed, ErrorMessage: cause.Error()}
	if err := p.store.SetStageStatus(ctx, bookID, stage, state); err != nil {
		log.Printf("pipeline: record failed %s stage for book %s: %v", stage, bookID, err)
	}
	telemetry.StagesFailed.WithLabelValues(stage).Inc()
	return cause
}

// enqueueNext schedules the following stage for a book. Only first-pass
// runs cascade; regeneration re-runs exactly the stages the operator
// asked for.
func (p *Pipeline) enqueueNext(ctx context.Context, queue, stage, bookID, batchID string) {
	if queue != p.primaryQueue {
		return
	}
	job := models.StageJob{Stage: stage, BookID: bookID, BatchID: batchID, Queue: queue}
	if _, err := p.jobs.Enqueue(ctx, job); err != nil {
		log.Printf("pipeline: enqueue %s stage for book %s: %v", stage, bookID, err)
	}
}

// queueFor maps a delivery back to its queue identity: forced runs
// came from the regeneration queue.
func (p *Pipeline) queueFor(force bool) string {
	if force {
		return p.regenQueue
	}
	return p.primaryQueue
}

func batchIDOf(book models.Book) string {
	if book.BatchID != nil {
		return *book.BatchID
	}
	return ""
}
