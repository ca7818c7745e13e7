package models

import (
	"time"
)

// BatchStatus enumerates the batch lifecycle persisted in Postgres.
// A batch only ever advances pending -> processing -> completed|failed.
const (
	BatchPending    = "pending"
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
)

// Batch is a named group of books submitted together for generation.
type Batch struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BookCount    int       `json:"book_count"`
	Status       string    `json:"status"`
	OwnerID      string    `json:"owner_id"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BatchAdvances reports whether a batch status transition is legal.
// Status never regresses; completed and failed are terminal.
func BatchAdvances(from, to string) bool {
	switch from {
	case BatchPending:
		return to == BatchProcessing || to == BatchCompleted || to == BatchFailed
	case BatchProcessing:
		return to == BatchCompleted || to == BatchFailed
	default:
		return false
	}
}
