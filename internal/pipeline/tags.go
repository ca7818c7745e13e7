package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/prompts"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// RunTags is the tag stage worker for one book. Same response shape as
// the title stage (a JSON category map) but every suggested tag is
// adopted onto the book, and all candidates are recorded active.
func (p *Pipeline) RunTags(ctx context.Context, bookID string, force bool) error {
	book, err := p.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	batchID := batchIDOf(book)
	skip, err := p.beginStage(ctx, book, models.StageTags, force)
	if err != nil || skip {
		return err
	}

	genre, err := p.tax.GetGenre(ctx, book.GenreID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTags, models.ContentTag, p.text.Model(), err)
	}
	description := ""
	if book.Description != nil {
		description = *book.Description
	}

	prompt, err := prompts.Tags(book.Title, description, genre)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTags, models.ContentTag, p.text.Model(), err)
	}
	raw, err := p.text.Complete(ctx, prompt.System, prompt.User, "")
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTags, models.ContentTag, p.text.Model(), err)
	}

	categories, err := ParseTitleCategories(prompt.Combined(), raw)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTags, models.ContentTag, p.text.Model(), err)
	}

	var tags []string
	var candidates []models.TitleCandidate
	seen := make(map[string]bool)
	for _, cat := range categories {
		for _, tag := range cat.Titles {
			candidates = append(candidates, models.TitleCandidate{Category: cat.Name, Title: tag, Status: models.TitleActive})
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}

	rec := models.GeneratedContent{
		ID:             uuid.New().String(),
		BookID:         book.ID,
		BatchID:        batchID,
		ContentType:    models.ContentTag,
		PromptUsed:     prompt.Combined(),
		RawAPIResponse: raw,
		Titles:         candidates,
		Source:         p.text.Model(),
	}
	if err := p.store.CommitTags(ctx, book.ID, tags, rec); err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageTags, models.ContentTag, p.text.Model(), err)
	}
	telemetry.StagesCompleted.WithLabelValues(models.StageTags).Inc()
	return nil
}
