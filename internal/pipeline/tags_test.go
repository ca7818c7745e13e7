package pipeline

import (
	"context"
	"reflect"
	"testing"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

func TestRunTagsAdoptsAllSuggestions(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.seedBook(t, "book-1")
	ctx := context.Background()

	env.text.responses = []string{
		`{"tropes": ["second chance", "small town"], "mood": ["slow burn", "second chance"]}`,
	}
	if err := env.pipe.RunTags(ctx, "book-1", false); err != nil {
		t.Fatalf("run: %v", err)
	}

	book, _ := env.store.GetBook(ctx, "book-1")
	want := []string{"second chance", "small town", "slow burn"}
	if !reflect.DeepEqual(book.Tags, want) {
		t.Fatalf("tags = %v, want %v (deduplicated, order preserved)", book.Tags, want)
	}
	if book.GenerationStatus.Stage(models.StageTags).Status != models.StageCompleted {
		t.Fatalf("stage = %+v", book.GenerationStatus)
	}

	// Unlike the title stage, every candidate is active.
	recs := env.store.auditByType(models.ContentTag)
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	if len(recs[0].Titles) != 4 {
		t.Fatalf("candidates = %d, duplicates stay in the audit trail", len(recs[0].Titles))
	}
	for _, c := range recs[0].Titles {
		if c.Status != models.TitleActive {
			t.Fatalf("candidate %+v should be active", c)
		}
	}

	// Tags is the last stage; nothing cascades.
	if len(env.jobs.jobs) != 0 {
		t.Fatalf("jobs = %v, want none after the final stage", env.jobs.jobs)
	}
}

func TestRunTagsParseFailure(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.seedBook(t, "book-1")
	ctx := context.Background()

	env.text.responses = []string{"no tags for you"}
	if err := env.pipe.RunTags(ctx, "book-1", false); err == nil {
		t.Fatal("expected parse failure")
	}
	book, _ := env.store.GetBook(ctx, "book-1")
	if len(book.Tags) != 0 {
		t.Fatalf("tags = %v, want none", book.Tags)
	}
	if book.GenerationStatus.Stage(models.StageTags).Status != models.StageFailed {
		t.Fatalf("stage = %+v", book.GenerationStatus)
	}
}
