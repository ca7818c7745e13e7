package models

import (
	"time"
)

// Chapter statuses.
const (
	ChapterPublished = "published"
)

// GeneratedChapterCount is the exact number of chapters the chapter
// stage writes per book. Any other cardinality from the model is a
// parse failure.
const GeneratedChapterCount = 3

// Chapter is one generated chapter of a book.
type Chapter struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Title     string    `json:"title"`
	Prose     string    `json:"prose"`
	Order     int       `json:"order"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
