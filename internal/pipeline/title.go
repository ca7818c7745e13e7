package pipeline

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/prompts"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// RunTitleBatch is the title stage worker. One worker holds the job
// and attempts every book in the batch strictly sequentially, which
// bounds burst concurrency against the text service. Per-book failures
// are recorded and skipped; the batch still completes. Only a failure
// outside the per-book loop marks the batch failed and propagates.
func (p *Pipeline) RunTitleBatch(ctx context.Context, batchID string, force bool) error {
	batch, err := p.store.GetBatch(ctx, batchID)
	if err != nil {
		return p.failBatch(ctx, batchID, err)
	}
	books, err := p.store.ListBatchBooks(ctx, batchID)
	if err != nil {
		return p.failBatch(ctx, batchID, err)
	}

	queue := p.queueFor(force)
	for _, book := range books {
		if err := p.generateTitle(ctx, book, queue, force); err != nil {
			log.Printf("title stage: book %s: %v", book.ID, err)
		}
	}

	if models.BatchAdvances(batch.Status, models.BatchCompleted) {
		if err := p.store.SetBatchStatus(ctx, batchID, models.BatchCompleted, nil); err != nil {
			return p.failBatch(ctx, batchID, err)
		}
		telemetry.BatchesCompleted.Inc()
	}
	return nil
}

// generateTitle runs one book's title attempt. The committed title is
// the first entry of the first category in response key order; every
// candidate is recorded in the audit record, the selected one active.
func (p *Pipeline) generateTitle(ctx context.Context, book models.Book, queue string, force bool) error {
	batchID := batchIDOf(book)
	skip, err := p.beginStage(ctx, book, models.StageTitle, force)
	if err != nil || skip {
		return err
	}

	genre, err := p.tax.GetGenre(ctx, book.GenreID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTitle, models.ContentTitle, p.text.Model(), err)
	}
	plot, err := p.tax.GetPlot(ctx, book.PlotID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTitle, models.ContentTitle, p.text.Model(), err)
	}

	prompt, err := prompts.Title(genre, plot)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTitle, models.ContentTitle, p.text.Model(), err)
	}
	raw, err := p.text.Complete(ctx, prompt.System, prompt.User, "")
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTitle, models.ContentTitle, p.text.Model(), err)
	}

	categories, err := ParseTitleCategories(prompt.Combined(), raw)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTitle, models.ContentTitle, p.text.Model(), err)
	}

	canonical := categories[0].Titles[0]
	var candidates []models.TitleCandidate
	for _, cat := range categories {
		for _, title := range cat.Titles {
			status := models.TitleInactive
			if len(candidates) == 0 {
				status = models.TitleActive
			}
			candidates = append(candidates, models.TitleCandidate{Category: cat.Name, Title: title, Status: status})
		}
	}

	rec := models.GeneratedContent{
		ID:             uuid.New().String(),
		BookID:         book.ID,
		BatchID:        batchID,
		ContentType:    models.ContentTitle,
		PromptUsed:     prompt.Combined(),
		RawAPIResponse: raw,
		Titles:         candidates,
		Source:         p.text.Model(),
	}
	if err := p.store.CommitTitle(ctx, book.ID, canonical, rec); err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTitle, models.ContentTitle, p.text.Model(), err)
	}
	telemetry.StagesCompleted.WithLabelValues(models.StageTitle).Inc()

	p.enqueueNext(ctx, queue, models.StageDescription, book.ID, batchID)
	return nil
}

// failBatch marks the whole batch failed and wraps the cause so the
// job runner sees a critical error.
func (p *Pipeline) failBatch(ctx context.Context, batchID string, cause error) error {
	msg := cause.Error()
	if err := p.store.SetBatchStatus(ctx, batchID, models.BatchFailed, &msg); err != nil {
		log.Printf("title stage: mark batch %s failed: %v", batchID, err)
	}
	telemetry.BatchesFailed.Inc()
	return &apperr.CriticalBatchError{BatchID: batchID, Err: cause}
}
