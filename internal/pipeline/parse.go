package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// TitleCategory is one category from the title/tag response, with its
// position in the object preserved. The first title of the first
// category, in response key order, is the canonical pick.
type TitleCategory struct {
	Name   string
	Titles []string
}

// ParseTitleCategories parses a JSON object mapping category names to
// arrays of strings, preserving key order. The model often wraps the
// object in fences or prose; everything outside the outermost braces
// is ignored.
func ParseTitleCategories(prompt, raw string) ([]TitleCategory, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, &apperr.ParseError{Msg: err.Error(), Prompt: prompt, Raw: raw}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, &apperr.ParseError{Msg: fmt.Sprintf("read object: %v", err), Prompt: prompt, Raw: raw}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, &apperr.ParseError{Msg: "response is not a JSON object", Prompt: prompt, Raw: raw}
	}

	var categories []TitleCategory
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &apperr.ParseError{Msg: fmt.Sprintf("read key: %v", err), Prompt: prompt, Raw: raw}
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, &apperr.ParseError{Msg: "object key is not a string", Prompt: prompt, Raw: raw}
		}
		var titles []string
		if err := dec.Decode(&titles); err != nil {
			return nil, &apperr.ParseError{Msg: fmt.Sprintf("category %q is not a string array", key), Prompt: prompt, Raw: raw}
		}
		categories = append(categories, TitleCategory{Name: key, Titles: titles})
	}

	if len(categories) == 0 {
		return nil, &apperr.ParseError{Msg: "no categories in response", Prompt: prompt, Raw: raw}
	}
	if len(categories[0].Titles) == 0 {
		return nil, &apperr.ParseError{Msg: "first category has no entries", Prompt: prompt, Raw: raw}
	}
	return categories, nil
}

// ChapterDraft is one parsed chapter from the model response.
type ChapterDraft struct {
	Title string `json:"title"`
	Prose string `json:"prose"`
}

type chaptersEnvelope struct {
	Chapters []ChapterDraft `json:"chapters"`
}

// ParseChapters parses the chapter-stage response: a JSON object with a
// "chapters" array of exactly models.GeneratedChapterCount items. Any
// other cardinality is a parse failure.
func ParseChapters(prompt, raw string) ([]ChapterDraft, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, &apperr.ParseError{Msg: err.Error(), Prompt: prompt, Raw: raw}
	}
	var env chaptersEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return nil, &apperr.ParseError{Msg: fmt.Sprintf("decode chapters: %v", err), Prompt: prompt, Raw: raw}
	}
	if len(env.Chapters) != models.GeneratedChapterCount {
		return nil, &apperr.ParseError{
			Msg:    fmt.Sprintf("expected %d chapters, got %d", models.GeneratedChapterCount, len(env.Chapters)),
			Prompt: prompt,
			Raw:    raw,
		}
	}
	for i, c := range env.Chapters {
		if c.Title == "" || c.Prose == "" {
			return nil, &apperr.ParseError{Msg: fmt.Sprintf("chapter %d missing title or prose", i+1), Prompt: prompt, Raw: raw}
		}
	}
	return env.Chapters, nil
}

// extractJSONObject returns the substring from the first '{' to the
// last '}'. It does not validate the content; decoding does that.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return raw[start : end+1], nil
}
