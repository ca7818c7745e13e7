package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

const bookSelect = `
	SELECT id, batch_id, title, description, cover_url,
	       author_id, genre_id, plot_id, narrative_id, spice_id, ending_id,
	       tags, status, generation_status, created_at, updated_at
	FROM books`

func scanBook(row pgx.Row) (models.Book, error) {
	var b models.Book
	var batchID, description, coverURL, narrativeID, spiceID, endingID pgtype.Text
	var tagsJSON, statusJSON []byte

	err := row.Scan(&b.ID, &batchID, &b.Title, &description, &coverURL,
		&b.AuthorID, &b.GenreID, &b.PlotID, &narrativeID, &spiceID, &endingID,
		&tagsJSON, &b.Status, &statusJSON, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return models.Book{}, err
	}

	b.BatchID = textPtr(batchID)
	b.Description = textPtr(description)
	b.CoverURL = textPtr(coverURL)
	if narrativeID.Valid {
		b.NarrativeID = narrativeID.String
	}
	if spiceID.Valid {
		b.SpiceID = spiceID.String
	}
	if endingID.Valid {
		b.EndingID = endingID.String
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &b.Tags); err != nil {
			return models.Book{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(statusJSON) > 0 {
		if err := json.Unmarshal(statusJSON, &b.GenerationStatus); err != nil {
			return models.Book{}, fmt.Errorf("unmarshal generation status: %w", err)
		}
	}
	return b, nil
}

// GetBook fetches a book by id.
func (s *Store) GetBook(ctx context.Context, id string) (models.Book, error) {
	b, err := scanBook(s.pool.QueryRow(ctx, bookSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Book{}, &apperr.NotFoundError{Kind: "book", ID: id}
	}
	if err != nil {
		return models.Book{}, fmt.Errorf("scan book: %w", err)
	}
	return b, nil
}

// SetStageStatus writes one stage's entry in the book's generation
// status map. It is a standalone write: failure bookkeeping must land
// even when the content transaction was rolled back.
func (s *Store) SetStageStatus(ctx context.Context, bookID, stage string, state models.StageState) error {
	return setStageStatus(ctx, s.pool, bookID, stage, state)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx so stage status
// writes can run standalone or inside a book transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func setStageStatus(ctx context.Context, db execer, bookID, stage string, state models.StageState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal stage state: %w", err)
	}
	tag, err := db.Exec(ctx, `
		UPDATE books
		SET generation_status = jsonb_set(COALESCE(generation_status, '{}'::jsonb), ARRAY[$2], $3::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`, bookID, stage, stateJSON)
	if err != nil {
		return fmt.Errorf("update stage status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperr.NotFoundError{Kind: "book", ID: bookID}
	}
	return nil
}

// CommitTitle atomically writes the selected title, flips the book to
// unpublished, marks the title stage completed, and appends the audit
// record. One transaction per book per attempt.
func (s *Store) CommitTitle(ctx context.Context, bookID, title string, rec models.GeneratedContent) error {
	return s.withBookTx(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE books SET title = $2, status = $3, updated_at = NOW() WHERE id = $1
		`, bookID, title, models.BookUnpublished)
		if err != nil {
			return fmt.Errorf("update title: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperr.NotFoundError{Kind: "book", ID: bookID}
		}
		return setStageStatus(ctx, tx, bookID, models.StageTitle, models.StageState{Status: models.StageCompleted})
	})
}

// CommitDescription atomically writes the description, marks the stage
// completed, and appends the audit record.
func (s *Store) CommitDescription(ctx context.Context, bookID, description string, rec models.GeneratedContent) error {
	return s.withBookTx(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE books SET description = $2, updated_at = NOW() WHERE id = $1
		`, bookID, description)
		if err != nil {
			return fmt.Errorf("update description: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperr.NotFoundError{Kind: "book", ID: bookID}
		}
		return setStageStatus(ctx, tx, bookID, models.StageDescription, models.StageState{Status: models.StageCompleted})
	})
}

// CommitCover atomically writes the permanent cover URL, marks the
// stage completed, and appends the audit record.
func (s *Store) CommitCover(ctx context.Context, bookID, coverURL string, rec models.GeneratedContent) error {
	return s.withBookTx(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE books SET cover_url = $2, updated_at = NOW() WHERE id = $1
		`, bookID, coverURL)
		if err != nil {
			return fmt.Errorf("update cover: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperr.NotFoundError{Kind: "book", ID: bookID}
		}
		return setStageStatus(ctx, tx, bookID, models.StageCover, models.StageState{Status: models.StageCompleted})
	})
}

// CommitTags atomically writes the tag list, marks the stage completed,
// and appends the audit record.
func (s *Store) CommitTags(ctx context.Context, bookID string, tags []string, rec models.GeneratedContent) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	return s.withBookTx(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE books SET tags = $2, updated_at = NOW() WHERE id = $1
		`, bookID, tagsJSON)
		if err != nil {
			return fmt.Errorf("update tags: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &apperr.NotFoundError{Kind: "book", ID: bookID}
		}
		return setStageStatus(ctx, tx, bookID, models.StageTags, models.StageState{Status: models.StageCompleted})
	})
}

// withBookTx runs fn and the audit insert inside one transaction.
func (s *Store) withBookTx(ctx context.Context, rec models.GeneratedContent, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := insertGenerated(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
