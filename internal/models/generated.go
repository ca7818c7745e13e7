package models

import (
	"encoding/json"
	"time"
)

// Content types recorded in the generation audit ledger.
const (
	ContentTitle         = "title"
	ContentDescription   = "description"
	ContentChapter       = "chapter"
	ContentCoverPrompt   = "cover_prompt"
	ContentCoverImageURL = "cover_image_url"
	ContentTag           = "tag"
)

// Title candidate statuses inside a title audit record. Exactly one
// candidate across all categories is active for a successful run.
const (
	TitleActive   = "active"
	TitleInactive = "inactive"
)

// TitleCandidate is one model-proposed title inside an audit record.
type TitleCandidate struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Status   string `json:"status"`
}

// GeneratedContent is one append-only audit record per generation
// attempt, success or failure. Records are never updated or deleted;
// they are the system's debugging and reproducibility ledger.
type GeneratedContent struct {
	ID             string           `json:"id"`
	BookID         string           `json:"book_id"`
	BatchID        string           `json:"batch_id,omitempty"`
	ContentType    string           `json:"content_type"`
	PromptUsed     string           `json:"prompt_used"`
	RawAPIResponse string           `json:"raw_api_response"`
	Content        *string          `json:"content,omitempty"`
	Titles         []TitleCandidate `json:"titles,omitempty"`
	Source         string           `json:"source"`
	CreatedAt      time.Time        `json:"created_at"`
}

// TitlesJSON serializes the candidate list for storage. An empty list
// serializes to null so failed parses store no candidates.
func (g GeneratedContent) TitlesJSON() ([]byte, error) {
	if len(g.Titles) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(g.Titles)
}
