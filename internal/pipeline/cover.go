package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/prompts"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// RunCover is the cover stage worker for one book: prompt the image
// service for a temporary URL, download the bytes, re-encode to JPEG,
// and re-host them in object storage for a permanent URL.
func (p *Pipeline) RunCover(ctx context.Context, bookID string, force bool) error {
	book, err := p.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	batchID := batchIDOf(book)
	skip, err := p.beginStage(ctx, book, models.StageCover, force)
	if err != nil || skip {
		return err
	}
	source := "image"
	if p.image != nil {
		source = p.image.Model()
	}

	if p.image == nil || p.storage == nil {
		err := &apperr.ServiceError{Op: "cover", Err: errors.New("image generation is not configured")}
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source, err)
	}

	author, err := p.tax.GetAuthor(ctx, book.AuthorID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source, err)
	}
	genre, err := p.tax.GetGenre(ctx, book.GenreID)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source, err)
	}
	description := ""
	if book.Description != nil {
		description = *book.Description
	}

	prompt, err := prompts.Cover(book.Title, author, description, genre)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source, err)
	}

	tempURL, err := p.image.Generate(ctx, prompt)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source, err)
	}

	data, err := p.downloadCover(ctx, tempURL)
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source,
			&apperr.ServiceError{Op: "cover.download", Err: err})
	}

	// Temporary URLs occasionally serve error pages instead of image
	// bytes; decoding catches that before anything is uploaded.
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source,
			&apperr.ParseError{Msg: fmt.Sprintf("decode cover image: %v", err), Prompt: prompt, Raw: tempURL})
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source, err)
	}

	permanentURL, err := p.storage.Upload(ctx, buf.Bytes(), p.coverFolder, book.ID+".jpg", "image/jpeg")
	if err != nil {
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source,
			&apperr.ServiceError{Op: "cover.upload", Err: err})
	}

	rec := models.GeneratedContent{
		ID:             uuid.New().String(),
		BookID:         book.ID,
		BatchID:        batchID,
		ContentType:    models.ContentCoverImageURL,
		PromptUsed:     prompt,
		RawAPIResponse: tempURL,
		Content:        &permanentURL,
		Source:         source,
	}
	if err := p.store.CommitCover(ctx, book.ID, permanentURL, rec); err != nil {
		// The upload is orphaned if the commit fails; drop it so the
		// bucket does not accumulate unreferenced covers.
		if delErr := p.storage.Delete(ctx, permanentURL); delErr != nil {
			err = fmt.Errorf("%w (cleanup failed: %v)", err, delErr)
		}
		return p.failStage(ctx, book.ID, batchID, models.StageCover, models.ContentCoverImageURL, source, err)
	}
	telemetry.StagesCompleted.WithLabelValues(models.StageCover).Inc()

	p.enqueueNext(ctx, p.queueFor(force), models.StageTags, book.ID, batchID)
	return nil
}

// downloadCover fetches the temporary image URL with bounded retries.
func (p *Pipeline) downloadCover(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := p.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("download cover: status %d", resp.StatusCode)
			}
			limited := io.LimitReader(resp.Body, p.coverMaxBytes+1)
			body, err := io.ReadAll(limited)
			if err != nil {
				return err
			}
			if int64(len(body)) > p.coverMaxBytes {
				return retry.Unrecoverable(fmt.Errorf("cover too large (>%d bytes)", p.coverMaxBytes))
			}
			data = body
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}
