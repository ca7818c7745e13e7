package prompts

import (
	"fmt"
	"strings"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// Prompt is a system/user pair ready for the text service. Audit
// records store the concatenation so any attempt is reproducible.
type Prompt struct {
	System string
	User   string
}

// Combined returns the exact prompt text recorded in the audit ledger.
func (p Prompt) Combined() string {
	return p.System + "\n\n" + p.User
}

const titleSystem = `You are a book title generator. Respond with a single JSON object
mapping category names to arrays of title strings. Do not include any
text outside the JSON object.`

const titleUser = `Write title options for a {{genre}} book.

Genre: {{genre_description}}

Plot: {{plot_synopsis}}

Chapter beats:
{{beat_sheet}}`

// Title builds the title-stage prompt from genre and plot context.
func Title(genre models.Genre, plot models.Plot) (Prompt, error) {
	user, err := Render(titleUser, map[string]string{
		"genre":             genre.Name,
		"genre_description": genre.Description,
		"plot_synopsis":     plot.Synopsis,
		"beat_sheet":        BeatSheet(plot.Chapters),
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: titleSystem, User: user}, nil
}

const descriptionSystem = `You are a book marketing copywriter. Respond with the back-cover
description only, as plain text.`

const descriptionUser = `Write a description for "{{title}}".

Genre: {{genre_description}}
Variant: {{variant}}
Plot: {{plot_synopsis}}
Chapters: {{chapter_summaries}}`

// Description builds the description-stage prompt. The variant is one
// of the genre's variants picked by the caller; an empty string is a
// valid choice for genres with no variants.
func Description(title string, genre models.Genre, variant string, plot models.Plot) (Prompt, error) {
	summaries := make([]string, 0, len(plot.Chapters))
	for _, c := range plot.Chapters {
		summaries = append(summaries, c.Description)
	}
	user, err := Render(descriptionUser, map[string]string{
		"title":             title,
		"genre_description": genre.Description,
		"variant":           variant,
		"plot_synopsis":     plot.Synopsis,
		"chapter_summaries": strings.Join(summaries, "; "),
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: descriptionSystem, User: user}, nil
}

const chaptersSystem = `You are a novelist. Respond with a single JSON object of the form
{"chapters": [{"title": "...", "prose": "..."}]} containing exactly
{{count}} chapters. Do not include any text outside the JSON object.`

const chaptersUser = `Write the book "{{title}}" from this beat sheet.

{{beat_sheet}}

Narrative style: {{narrative}}
Spice level: {{spice}}
Ending: {{ending}}`

// Chapters builds the chapter-stage prompt from the ordered beat sheet
// and the book's narrative, spice, and ending options.
func Chapters(title string, plot models.Plot, narrative, spice, ending models.StoryOption) (Prompt, error) {
	system, err := Render(chaptersSystem, map[string]string{
		"count": fmt.Sprintf("%d", models.GeneratedChapterCount),
	})
	if err != nil {
		return Prompt{}, err
	}
	user, err := Render(chaptersUser, map[string]string{
		"title":      title,
		"beat_sheet": BeatSheet(plot.Chapters),
		"narrative":  narrative.Description,
		"spice":      spice.Description,
		"ending":     ending.Description,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: system, User: user}, nil
}

const coverTemplate = `Book cover art for "{{title}}" by {{author}}.
Style: {{design_style}}.
Genre: {{genre_description}}.
About the book: {{description}}`

// Cover builds the image-generation prompt for the cover stage.
func Cover(title string, author models.Author, description string, genre models.Genre) (string, error) {
	return Render(coverTemplate, map[string]string{
		"title":             title,
		"author":            author.Name,
		"design_style":      author.DesignStyle,
		"genre_description": genre.Description,
		"description":       description,
	})
}

const tagsSystem = `You are a book taxonomist. Respond with a single JSON object mapping
tag category names to arrays of tag strings. Do not include any text
outside the JSON object.`

const tagsUser = `Suggest tags for "{{title}}".

Genre: {{genre_description}}
Description: {{description}}`

// Tags builds the tag-stage prompt.
func Tags(title, description string, genre models.Genre) (Prompt, error) {
	user, err := Render(tagsUser, map[string]string{
		"title":             title,
		"genre_description": genre.Description,
		"description":       description,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: tagsSystem, User: user}, nil
}

// BeatSheet concatenates "name: description" per plot chapter in order.
func BeatSheet(chapters []models.PlotChapter) string {
	lines := make([]string, 0, len(chapters))
	for _, c := range chapters {
		lines = append(lines, fmt.Sprintf("%s: %s", c.Name, c.Description))
	}
	return strings.Join(lines, "\n")
}
