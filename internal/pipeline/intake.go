package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// BookSeed is the per-book input to batch intake. Every reference must
// name an existing taxonomy entity.
type BookSeed struct {
	AuthorID    string `json:"author_id"`
	GenreID     string `json:"genre_id"`
	PlotID      string `json:"plot_id"`
	NarrativeID string `json:"narrative_id,omitempty"`
	SpiceID     string `json:"spice_id,omitempty"`
	EndingID    string `json:"ending_id,omitempty"`
}

// CreateBatch validates the request, creates the batch and its
// placeholder books in a single transaction, and (when auto-start is
// on) seeds the title stage. A validation failure leaves no persistent
// state behind.
func (p *Pipeline) CreateBatch(ctx context.Context, name, ownerID string, seeds []BookSeed) (models.Batch, error) {
	if name == "" {
		return models.Batch{}, &apperr.ValidationError{Msg: "batch name is required"}
	}
	if len(seeds) == 0 {
		return models.Batch{}, &apperr.ValidationError{Msg: "batch must contain at least one book"}
	}
	for i, seed := range seeds {
		if err := p.validateSeed(ctx, seed); err != nil {
			return models.Batch{}, &apperr.ValidationError{Msg: fmt.Sprintf("book %d: %v", i+1, err)}
		}
	}

	batch := models.Batch{
		ID:        uuid.New().String(),
		Name:      name,
		BookCount: len(seeds),
		Status:    models.BatchPending,
		OwnerID:   ownerID,
	}
	books := make([]models.Book, 0, len(seeds))
	for _, seed := range seeds {
		id := batch.ID
		books = append(books, models.Book{
			ID:          uuid.New().String(),
			BatchID:     &id,
			Title:       models.TitlePendingValue,
			AuthorID:    seed.AuthorID,
			GenreID:     seed.GenreID,
			PlotID:      seed.PlotID,
			NarrativeID: seed.NarrativeID,
			SpiceID:     seed.SpiceID,
			EndingID:    seed.EndingID,
			Status:      models.BookGenerating,
			GenerationStatus: models.GenerationStatus{
				models.StageTitle: {Status: models.StagePending},
			},
		})
	}

	if err := p.store.CreateBatchWithBooks(ctx, batch, books); err != nil {
		return models.Batch{}, fmt.Errorf("create batch: %w", err)
	}
	telemetry.BatchesCreated.Inc()

	if p.autoStart {
		if err := p.StartBatch(ctx, batch.ID); err != nil {
			return batch, err
		}
		batch.Status = models.BatchProcessing
	}
	return batch, nil
}

// StartBatch kicks off the title stage for a pending batch: one
// batch-scoped job whose worker loops the books sequentially. Exposed
// separately so kickoff can be operator-triggered when auto-start is
// disabled.
func (p *Pipeline) StartBatch(ctx context.Context, batchID string) error {
	batch, err := p.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status != models.BatchPending {
		return &apperr.ValidationError{Msg: fmt.Sprintf("batch %s is %s, not pending", batchID, batch.Status)}
	}
	job := models.StageJob{Stage: models.StageTitle, BatchID: batchID, Queue: p.primaryQueue}
	if _, err := p.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue title job: %w", err)
	}
	return p.store.SetBatchStatus(ctx, batchID, models.BatchProcessing, nil)
}

func (p *Pipeline) validateSeed(ctx context.Context, seed BookSeed) error {
	if seed.AuthorID == "" || seed.GenreID == "" || seed.PlotID == "" {
		return fmt.Errorf("author_id, genre_id, and plot_id are required")
	}
	if _, err := p.tax.GetAuthor(ctx, seed.AuthorID); err != nil {
		return err
	}
	if _, err := p.tax.GetGenre(ctx, seed.GenreID); err != nil {
		return err
	}
	if _, err := p.tax.GetPlot(ctx, seed.PlotID); err != nil {
		return err
	}
	for _, optID := range []string{seed.NarrativeID, seed.SpiceID, seed.EndingID} {
		if optID == "" {
			continue
		}
		if _, err := p.tax.GetOption(ctx, optID); err != nil {
			return err
		}
	}
	return nil
}
