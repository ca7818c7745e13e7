package models

import (
	"time"
)

// Queue identities. Regeneration runs on its own queue so operator
// re-runs never compete with first-pass throughput.
const (
	QueuePrimary      = "generation"
	QueueRegeneration = "regeneration"
)

// StageJob is the transient unit of queue work. Title jobs are
// batch-scoped (one worker loops the batch's books sequentially);
// every later stage is one job per book. Jobs live only in Redis and
// are never persisted to the content store.
type StageJob struct {
	ID       string    `json:"id"`
	Stage    string    `json:"stage"`
	BookID   string    `json:"book_id,omitempty"`
	BatchID  string    `json:"batch_id,omitempty"`
	Queue    string    `json:"queue"`
	Force    bool      `json:"force,omitempty"`
	Attempts int       `json:"attempts"`
	Enqueued time.Time `json:"enqueued_at"`
}
