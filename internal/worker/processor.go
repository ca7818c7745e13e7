// Package worker drains the stage queues and dispatches jobs to the
// generation pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/queue"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
)

// StageRunner executes one stage for one delivery. The title stage is
// batch-scoped; the rest run against a single book.
type StageRunner interface {
	RunTitleBatch(ctx context.Context, batchID string, force bool) error
	RunDescription(ctx context.Context, bookID string, force bool) error
	RunChapters(ctx context.Context, bookID string, force bool) error
	RunCover(ctx context.Context, bookID string, force bool) error
	RunTags(ctx context.Context, bookID string, force bool) error
}

// Processor runs a pool of dequeue loops plus one maintenance loop
// that promotes scheduled retries and reclaims expired leases.
type Processor struct {
	cfg    config.Config
	queue  *queue.RedisQueue
	runner StageRunner
}

func NewProcessor(cfg config.Config, q *queue.RedisQueue, runner StageRunner) *Processor {
	return &Processor{cfg: cfg, queue: q, runner: runner}
}

// Run blocks until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.maintenanceLoop(ctx)
	}()

	concurrency := p.cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workLoop(ctx)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (p *Processor) workLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := p.queue.DequeueWithLease(ctx)
		if err != nil || !ok {
			if err != nil {
				log.Printf("worker: dequeue: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.WorkerPollInterval):
			}
			continue
		}
		p.process(ctx, job)
	}
}

func (p *Processor) process(ctx context.Context, job models.StageJob) {
	telemetry.InFlight.Inc()
	defer telemetry.InFlight.Dec()

	// Heartbeat so long generations outlive the initial lease.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go p.heartbeat(hbCtx, job.ID)

	start := time.Now()
	err := p.dispatch(ctx, job)
	telemetry.StageDuration.WithLabelValues(job.Stage).Observe(time.Since(start).Seconds())
	if err == nil {
		if ackErr := p.queue.Ack(ctx, job.ID); ackErr != nil {
			log.Printf("worker: ack %s: %v", job.ID, ackErr)
		}
		return
	}

	var critical *apperr.CriticalBatchError
	if errors.As(err, &critical) {
		// The batch is already marked failed; retrying cannot help.
		// Park the job for inspection instead.
		log.Printf("worker: batch %s failed: %v", critical.BatchID, err)
		_ = p.queue.DLQPush(ctx, job.ID)
		telemetry.DeadLetters.Inc()
		return
	}

	job.Attempts++
	if job.Attempts >= p.maxAttempts(job.Queue) {
		log.Printf("worker: job %s (%s stage) exhausted after %d attempts: %v", job.ID, job.Stage, job.Attempts, err)
		_ = p.queue.DLQPush(ctx, job.ID)
		telemetry.DeadLetters.Inc()
		return
	}

	backoff := backoffWithJitter(p.cfg.BackoffInitial, p.cfg.BackoffMax, job.Attempts)
	log.Printf("worker: job %s (%s stage) failed, retry in %s: %v", job.ID, job.Stage, backoff, err)
	if schedErr := p.queue.Schedule(ctx, job, time.Now().Add(backoff)); schedErr != nil {
		log.Printf("worker: schedule retry for %s: %v", job.ID, schedErr)
		return
	}
	// Schedule rewrote the payload; only the lease goes away.
	_ = p.queue.Release(ctx, job.ID)
}

func (p *Processor) dispatch(ctx context.Context, job models.StageJob) error {
	switch job.Stage {
	case models.StageTitle:
		return p.runner.RunTitleBatch(ctx, job.BatchID, job.Force)
	case models.StageDescription:
		return p.runner.RunDescription(ctx, job.BookID, job.Force)
	case models.StageChapters:
		return p.runner.RunChapters(ctx, job.BookID, job.Force)
	case models.StageCover:
		return p.runner.RunCover(ctx, job.BookID, job.Force)
	case models.StageTags:
		return p.runner.RunTags(ctx, job.BookID, job.Force)
	default:
		return fmt.Errorf("unknown stage %q", job.Stage)
	}
}

func (p *Processor) maxAttempts(queueName string) int {
	attempts := p.cfg.PrimaryAttempts
	if queueName == p.cfg.RegenQueue {
		attempts = p.cfg.RegenAttempts
	}
	if attempts <= 0 {
		attempts = 1
	}
	return attempts
}

// heartbeat extends the visibility lease while a job is running.
func (p *Processor) heartbeat(ctx context.Context, jobID string) {
	interval := p.cfg.VisibilityTimeout / 3
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.ExtendLease(ctx, jobID, p.cfg.VisibilityTimeout); err != nil {
				log.Printf("worker: extend lease %s: %v", jobID, err)
			}
		}
	}
}

func (p *Processor) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := p.queue.PromoteScheduled(ctx, time.Now(), 100); err != nil {
			log.Printf("worker: promote scheduled: %v", err)
		}
		if reclaimed, err := p.queue.RequeueExpired(ctx, time.Now(), 100); err != nil {
			log.Printf("worker: requeue expired: %v", err)
		} else if len(reclaimed) > 0 {
			log.Printf("worker: reclaimed %d expired leases", len(reclaimed))
		}
		for _, name := range []string{p.cfg.PrimaryQueue, p.cfg.RegenQueue} {
			if depth, err := p.queue.Depth(ctx, name); err == nil {
				telemetry.QueueDepth.WithLabelValues(name).Set(float64(depth))
			}
		}
	}
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait/2) + 1))
	return wait/2 + jitter
}
