package pipeline

import (
	"context"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/prompts"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// RunDescription is the description stage worker for one book. The raw
// completion text is the description; there is no JSON parsing here.
// One genre variant is picked uniformly at random; a genre with no
// variants contributes an empty variant, not an error.
func (p *Pipeline) RunDescription(ctx context.Context, bookID string, force bool) error {
	book, err := p.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	batchID := batchIDOf(book)
	skip, err := p.beginStage(ctx, book, models.StageDescription, force)
	if err != nil || skip {
		return err
	}

	genre, err := p.tax.GetGenre(ctx, book.GenreID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageDescription, models.ContentDescription, p.text.Model(), err)
	}
	plot, err := p.tax.GetPlot(ctx, book.PlotID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageDescription, models.ContentDescription, p.text.Model(), err)
	}

	variant := ""
	if len(genre.Variants) > 0 {
		variant = genre.Variants[rand.Intn(len(genre.Variants))]
	}

	prompt, err := prompts.Description(book.Title, genre, variant, plot)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageDescription, models.ContentDescription, p.text.Model(), err)
	}
	raw, err := p.text.Complete(ctx, prompt.System, prompt.User, "")
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageDescription, models.ContentDescription, p.text.Model(), err)
	}

	description := strings.TrimSpace(raw)
	rec := models.GeneratedContent{
		ID:             uuid.New().String(),
		BookID:         book.ID,
		BatchID:        batchID,
		ContentType:    models.ContentDescription,
		PromptUsed:     prompt.Combined(),
		RawAPIResponse: raw,
		Content:        &description,
		Source:         p.text.Model(),
	}
	if err := p.store.CommitDescription(ctx, book.ID, description, rec); err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageDescription, models.ContentDescription, p.text.Model(), err)
	}
	telemetry.StagesCompleted.WithLabelValues(models.StageDescription).Inc()

	p.enqueueNext(ctx, p.queueFor(force), models.StageChapters, book.ID, batchID)
	return nil
}
