package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/prompts"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// RunChapters is the chapter stage worker for one book. Success always
// replaces the book's chapters wholesale with exactly
// models.GeneratedChapterCount new ones, so re-runs are idempotent in
// outcome even though the prose changes.
func (p *Pipeline) RunChapters(ctx context.Context, bookID string, force bool) error {
	book, err := p.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	batchID := batchIDOf(book)
	skip, err := p.beginStage(ctx, book, models.StageChapters, force)
	if err != nil || skip {
		return err
	}

	plot, err := p.tax.GetPlot(ctx, book.PlotID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}
	narrative, err := p.option(ctx, book.NarrativeID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}
	spice, err := p.option(ctx, book.SpiceID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}
	ending, err := p.option(ctx, book.EndingID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}

	prompt, err := prompts.Chapters(book.Title, plot, narrative, spice, ending)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}
	raw, err := p.text.Complete(ctx, prompt.System, prompt.User, "")
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}

	drafts, err := ParseChapters(prompt.Combined(), raw)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}

	chapters := make([]models.Chapter, 0, len(drafts))
	for i, d := range drafts {
		chapters = append(chapters, models.Chapter{
			ID:     uuid.New().String(),
			BookID: book.ID,
			Title:  d.Title,
			Prose:  d.Prose,
			Order:  i + 1,
			Status: models.ChapterPublished,
		})
	}

	rec := models.GeneratedContent{
		ID:             uuid.New().String(),
		BookID:         book.ID,
		BatchID:        batchID,
		ContentType:    models.ContentChapter,
		PromptUsed:     prompt.Combined(),
		RawAPIResponse: raw,
		Source:         p.text.Model(),
	}
	if err := p.store.ReplaceChapters(ctx, book.ID, chapters, rec); err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageChapters, models.ContentChapter, p.text.Model(), err)
	}
	telemetry.StagesCompleted.WithLabelValues(models.StageChapters).Inc()

	p.enqueueNext(ctx, p.queueFor(force), models.StageCover, book.ID, batchID)
	return nil
}

// option resolves a story-option reference, treating an unset reference
// as a zero option rather than an error.
func (p *Pipeline) option(ctx context.Context, id string) (models.StoryOption, error) {
	if id == "" {
		return models.StoryOption{}, nil
	}
	return p.tax.GetOption(ctx, id)
}
