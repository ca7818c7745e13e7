package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// ReplaceChapters deletes every existing chapter for the book, inserts
// the new set, marks the chapter stage completed, and appends the audit
// record in one transaction. Full replace, not merge: repeated runs
// always leave exactly the new chapter count.
func (s *Store) ReplaceChapters(ctx context.Context, bookID string, chapters []models.Chapter, rec models.GeneratedContent) error {
	return s.withBookTx(ctx, rec, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM chapters WHERE book_id = $1`, bookID); err != nil {
			return fmt.Errorf("delete chapters: %w", err)
		}
		for _, c := range chapters {
			_, err := tx.Exec(ctx, `
				INSERT INTO chapters (id, book_id, title, prose, ord, status)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, c.ID, bookID, c.Title, c.Prose, c.Order, c.Status)
			if err != nil {
				return fmt.Errorf("insert chapter %d: %w", c.Order, err)
			}
		}
		return setStageStatus(ctx, tx, bookID, models.StageChapters, models.StageState{Status: models.StageCompleted})
	})
}

// ListChapters returns a book's chapters ordered by their order field.
func (s *Store) ListChapters(ctx context.Context, bookID string) ([]models.Chapter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, book_id, title, prose, ord, status, created_at
		FROM chapters WHERE book_id = $1 ORDER BY ord
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []models.Chapter
	for rows.Next() {
		var c models.Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.Title, &c.Prose, &c.Order, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}
