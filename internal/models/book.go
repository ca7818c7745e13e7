package models

import (
	"time"
)

// Book catalog status values.
const (
	BookDraft       = "draft"
	BookGenerating  = "generating"
	BookUnpublished = "unpublished"
	BookPublished   = "published"
	BookArchived    = "archived"
)

// Generation stage names, in pipeline order.
const (
	StageTitle       = "title"
	StageDescription = "description"
	StageChapters    = "chapters"
	StageCover       = "cover"
	StageTags        = "tags"
)

// Stages lists all pipeline stages in execution order.
var Stages = []string{StageTitle, StageDescription, StageChapters, StageCover, StageTags}

// Per-stage generation status values.
const (
	StagePending    = "pending"
	StageInProgress = "in_progress"
	StageCompleted  = "completed"
	StageFailed     = "failed"
)

// TitlePendingValue is the sentinel title a placeholder book carries
// until the title stage produces a real one.
const TitlePendingValue = "Pending Title Generation"

// StageState is one stage's entry in a book's generation status map.
type StageState struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// GenerationStatus maps stage name to its current state.
type GenerationStatus map[string]StageState

// Stage returns the state for a stage, defaulting to pending.
func (g GenerationStatus) Stage(name string) StageState {
	if g == nil {
		return StageState{Status: StagePending}
	}
	s, ok := g[name]
	if !ok {
		return StageState{Status: StagePending}
	}
	return s
}

// StageAdvances reports whether a per-stage transition is legal:
// pending -> in_progress -> completed|failed, nothing else.
func StageAdvances(from, to string) bool {
	switch from {
	case StagePending:
		return to == StageInProgress
	case StageInProgress:
		return to == StageCompleted || to == StageFailed
	default:
		return false
	}
}

// Book is one unit of generated content. BatchID is nil for manually
// authored books that never passed through the pipeline.
type Book struct {
	ID               string           `json:"id"`
	BatchID          *string          `json:"batch_id,omitempty"`
	Title            string           `json:"title"`
	Description      *string          `json:"description,omitempty"`
	CoverURL         *string          `json:"cover_url,omitempty"`
	AuthorID         string           `json:"author_id"`
	GenreID          string           `json:"genre_id"`
	PlotID           string           `json:"plot_id"`
	NarrativeID      string           `json:"narrative_id"`
	SpiceID          string           `json:"spice_id"`
	EndingID         string           `json:"ending_id"`
	Tags             []string         `json:"tags,omitempty"`
	Status           string           `json:"status"`
	GenerationStatus GenerationStatus `json:"generation_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
