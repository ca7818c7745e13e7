package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// AppendGenerated writes one audit record outside any book
// transaction. Parse failures use this path so the attempt survives
// even though the book-level update was rolled back.
func (s *Store) AppendGenerated(ctx context.Context, rec models.GeneratedContent) error {
	return insertGenerated(ctx, s.pool, rec)
}

func insertGenerated(ctx context.Context, db execer, rec models.GeneratedContent) error {
	titlesJSON, err := rec.TitlesJSON()
	if err != nil {
		return fmt.Errorf("marshal titles: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO generated_content (id, book_id, batch_id, content_type, prompt_used, raw_api_response, content, titles, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.BookID, nilIfEmpty(rec.BatchID), rec.ContentType, rec.PromptUsed, rec.RawAPIResponse, rec.Content, titlesJSON, rec.Source)
	if err != nil {
		return fmt.Errorf("insert generated content: %w", err)
	}
	return nil
}

// ListBookAudit returns a book's audit records, newest first. The
// ledger is append-only; there is no update or delete path.
func (s *Store) ListBookAudit(ctx context.Context, bookID string) ([]models.GeneratedContent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, book_id, batch_id, content_type, prompt_used, raw_api_response, content, titles, source, created_at
		FROM generated_content WHERE book_id = $1 ORDER BY created_at DESC, id
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query generated content: %w", err)
	}
	defer rows.Close()

	var recs []models.GeneratedContent
	for rows.Next() {
		var rec models.GeneratedContent
		var batchID, content pgtype.Text
		var titlesJSON []byte
		if err := rows.Scan(&rec.ID, &rec.BookID, &batchID, &rec.ContentType, &rec.PromptUsed, &rec.RawAPIResponse, &content, &titlesJSON, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generated content: %w", err)
		}
		if batchID.Valid {
			rec.BatchID = batchID.String
		}
		rec.Content = textPtr(content)
		if len(titlesJSON) > 0 && string(titlesJSON) != "null" {
			if err := json.Unmarshal(titlesJSON, &rec.Titles); err != nil {
				return nil, fmt.Errorf("unmarshal titles: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
