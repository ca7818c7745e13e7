package pipeline

import (
	"context"
	"fmt"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// Regenerate re-runs the named stages for every book in a batch. The
// targeted stage states are reset to pending first, then force jobs are
// enqueued on the regeneration queue. Regeneration jobs never cascade,
// so exactly the requested stages run again.
func (p *Pipeline) Regenerate(ctx context.Context, batchID string, stages []string) ([]models.StageJob, error) {
	if len(stages) == 0 {
		return nil, &apperr.ValidationError{Msg: "at least one stage is required"}
	}
	requested := make(map[string]bool, len(stages))
	for _, s := range stages {
		if !validStage(s) {
			return nil, &apperr.ValidationError{Msg: fmt.Sprintf("unknown stage %q", s)}
		}
		requested[s] = true
	}

	if _, err := p.store.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	books, err := p.store.ListBatchBooks(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, &apperr.ValidationError{Msg: "batch has no books"}
	}

	// Reset targeted stages before any job can be picked up, so a fast
	// worker never observes a completed state it would refuse to re-run.
	for _, book := range books {
		for _, stage := range models.Stages {
			if !requested[stage] {
				continue
			}
			if err := p.store.SetStageStatus(ctx, book.ID, stage, models.StageState{Status: models.StagePending}); err != nil {
				return nil, err
			}
		}
	}

	var jobs []models.StageJob
	// The title stage is batch-scoped; everything else is per book.
	if requested[models.StageTitle] {
		job := models.StageJob{Stage: models.StageTitle, BatchID: batchID, Queue: p.regenQueue, Force: true}
		enqueued, err := p.jobs.Enqueue(ctx, job)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, enqueued)
	}
	for _, stage := range models.Stages {
		if stage == models.StageTitle || !requested[stage] {
			continue
		}
		for _, book := range books {
			job := models.StageJob{Stage: stage, BookID: book.ID, BatchID: batchID, Queue: p.regenQueue, Force: true}
			enqueued, err := p.jobs.Enqueue(ctx, job)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, enqueued)
		}
	}
	return jobs, nil
}

func validStage(stage string) bool {
	for _, s := range models.Stages {
		if s == stage {
			return true
		}
	}
	return false
}
