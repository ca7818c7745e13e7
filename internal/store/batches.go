package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// CreateBatchWithBooks inserts the batch and its placeholder books in a
// single transaction. A failure here leaves no partial batch.
func (s *Store) CreateBatchWithBooks(ctx context.Context, batch models.Batch, books []models.Book) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO batches (id, name, book_count, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, batch.ID, batch.Name, batch.BookCount, batch.Status, batch.OwnerID, now)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, b := range books {
		statusJSON, err := json.Marshal(b.GenerationStatus)
		if err != nil {
			return fmt.Errorf("marshal generation status: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO books (id, batch_id, title, author_id, genre_id, plot_id, narrative_id, spice_id, ending_id, status, generation_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		`, b.ID, b.BatchID, b.Title, b.AuthorID, b.GenreID, b.PlotID,
			nilIfEmpty(b.NarrativeID), nilIfEmpty(b.SpiceID), nilIfEmpty(b.EndingID),
			b.Status, statusJSON, now)
		if err != nil {
			return fmt.Errorf("insert book: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetBatch fetches a batch by id.
func (s *Store) GetBatch(ctx context.Context, id string) (models.Batch, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, book_count, status, owner_id, error_message, created_at, updated_at
		FROM batches WHERE id = $1
	`, id)

	var b models.Batch
	var errMsg pgtype.Text
	if err := row.Scan(&b.ID, &b.Name, &b.BookCount, &b.Status, &b.OwnerID, &errMsg, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Batch{}, &apperr.NotFoundError{Kind: "batch", ID: id}
		}
		return models.Batch{}, fmt.Errorf("scan batch: %w", err)
	}
	b.ErrorMessage = textPtr(errMsg)
	return b, nil
}

// SetBatchStatus advances a batch's status. Illegal transitions (status
// never regresses) are rejected by the WHERE guard and reported.
func (s *Store) SetBatchStatus(ctx context.Context, id, status string, errorMessage *string) error {
	var froms []string
	switch status {
	case models.BatchProcessing:
		froms = []string{models.BatchPending}
	case models.BatchCompleted, models.BatchFailed:
		froms = []string{models.BatchPending, models.BatchProcessing}
	default:
		return fmt.Errorf("invalid batch status %q", status)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE batches SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
	`, id, status, errorMessage, froms)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		cur, err := s.GetBatch(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("batch %s: illegal status transition %s -> %s", id, cur.Status, status)
	}
	return nil
}

// ListBatchBooks returns the batch's books in creation order.
func (s *Store) ListBatchBooks(ctx context.Context, batchID string) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx, bookSelect+` WHERE batch_id = $1 ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch books: %w", err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// DeleteBatchCascade removes a batch and its member books (and their
// chapters, via FK cascade). Audit records are retained: the ledger is
// append-only and has no foreign keys.
func (s *Store) DeleteBatchCascade(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &apperr.NotFoundError{Kind: "batch", ID: id}
	}
	return nil
}

func nilIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
