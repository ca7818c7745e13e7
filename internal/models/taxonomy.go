package models

// Genre is read-only reference data joined into prompts. Variants feed
// the description stage; one is picked uniformly at random per run.
type Genre struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Variants    []string `json:"variants,omitempty"`
}

// PlotChapter is one beat of a plot, ordered by Order.
type PlotChapter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// Plot holds a synopsis and its ordered chapter beats.
type Plot struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Synopsis string        `json:"synopsis"`
	Chapters []PlotChapter `json:"chapters,omitempty"`
}

// Author is the pen name a generated book is attributed to.
// DesignStyle steers cover-art prompts.
type Author struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DesignStyle string `json:"design_style"`
}

// Story option kinds. Options are single named entries with a
// description, looked up per book for the chapter stage prompt.
const (
	OptionNarrative = "narrative"
	OptionSpice     = "spice"
	OptionEnding    = "ending"
)

// StoryOption is one narrative/spice/ending choice.
type StoryOption struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
