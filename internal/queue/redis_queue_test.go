package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, config.Config{
		PrimaryQueue:      models.QueuePrimary,
		RegenQueue:        models.QueueRegeneration,
		VisibilityTimeout: time.Minute,
	})
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	in := models.StageJob{Stage: models.StageDescription, BookID: "book-1", BatchID: "batch-1", Queue: models.QueuePrimary}
	enqueued, err := q.Enqueue(ctx, in)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueued.ID == "" {
		t.Fatal("enqueue should assign an id")
	}

	out, ok, err := q.DequeueWithLease(ctx)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if out.ID != enqueued.ID || out.Stage != in.Stage || out.BookID != in.BookID {
		t.Fatalf("dequeued %+v", out)
	}

	// Empty queues report not-ok, not an error.
	if _, ok, err := q.DequeueWithLease(ctx); ok || err != nil {
		t.Fatalf("second dequeue: ok=%v err=%v", ok, err)
	}
}

func TestDequeueDrainsPrimaryBeforeRegeneration(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	regen, _ := q.Enqueue(ctx, models.StageJob{Stage: models.StageCover, BookID: "r", Queue: models.QueueRegeneration, Force: true})
	primary, _ := q.Enqueue(ctx, models.StageJob{Stage: models.StageCover, BookID: "p", Queue: models.QueuePrimary})

	first, ok, err := q.DequeueWithLease(ctx)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if first.ID != primary.ID {
		t.Fatalf("first = %s, want the primary job despite regen being older", first.BookID)
	}
	second, ok, err := q.DequeueWithLease(ctx)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if second.ID != regen.ID {
		t.Fatalf("second = %s", second.BookID)
	}
	if !second.Force {
		t.Fatal("regeneration job lost its force flag")
	}
}

func TestAckRemovesJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, models.StageJob{Stage: models.StageTags, BookID: "b", Queue: models.QueuePrimary})
	if _, _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.Ack(ctx, job.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	// Even far in the future nothing is reclaimable.
	reclaimed, err := q.RequeueExpired(ctx, time.Now().Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(reclaimed) != 0 {
		t.Fatalf("reclaimed = %v", reclaimed)
	}
}

func TestRequeueExpiredRedelivers(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, models.StageJob{Stage: models.StageChapters, BookID: "b", Queue: models.QueuePrimary})
	if _, _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	// Before the lease expires the job is invisible.
	reclaimed, _ := q.RequeueExpired(ctx, time.Now(), 10)
	if len(reclaimed) != 0 {
		t.Fatalf("reclaimed early: %v", reclaimed)
	}

	reclaimed, err := q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	if err != nil {
		t.Fatalf("requeue expired: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0] != job.ID {
		t.Fatalf("reclaimed = %v", reclaimed)
	}

	again, ok, err := q.DequeueWithLease(ctx)
	if err != nil || !ok {
		t.Fatalf("redeliver: ok=%v err=%v", ok, err)
	}
	if again.ID != job.ID {
		t.Fatalf("redelivered %s", again.ID)
	}
}

func TestExtendLeasePostponesReclaim(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, models.StageJob{Stage: models.StageTitle, BatchID: "batch", Queue: models.QueuePrimary})
	if _, _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.ExtendLease(ctx, job.ID, 10*time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}
	reclaimed, _ := q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	if len(reclaimed) != 0 {
		t.Fatalf("reclaimed despite extension: %v", reclaimed)
	}
}

func TestSchedulePromoteKeepsQueueIdentity(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job := models.StageJob{ID: "job-1", Stage: models.StageCover, BookID: "b", Queue: models.QueueRegeneration, Force: true, Attempts: 1}
	if err := q.Schedule(ctx, job, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// Not due yet.
	n, err := q.PromoteScheduled(ctx, time.Now(), 10)
	if err != nil || n != 0 {
		t.Fatalf("early promote: n=%d err=%v", n, err)
	}
	if _, ok, _ := q.DequeueWithLease(ctx); ok {
		t.Fatal("scheduled job must not be dequeued before promotion")
	}

	n, err = q.PromoteScheduled(ctx, time.Now().Add(2*time.Minute), 10)
	if err != nil || n != 1 {
		t.Fatalf("promote: n=%d err=%v", n, err)
	}
	out, ok, err := q.DequeueWithLease(ctx)
	if err != nil || !ok {
		t.Fatalf("dequeue promoted: ok=%v err=%v", ok, err)
	}
	if out.Queue != models.QueueRegeneration || out.Attempts != 1 || !out.Force {
		t.Fatalf("promoted job = %+v", out)
	}
}

func TestDLQPushAndPeek(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, _ := q.Enqueue(ctx, models.StageJob{Stage: models.StageTags, BookID: "b", Queue: models.QueuePrimary})
	if _, _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.DLQPush(ctx, job.ID); err != nil {
		t.Fatalf("dlq push: %v", err)
	}
	items, err := q.DLQPeek(ctx, 10)
	if err != nil {
		t.Fatalf("dlq peek: %v", err)
	}
	if len(items) != 1 || items[0] != job.ID {
		t.Fatalf("dlq = %v", items)
	}
	// Dead-lettered leases are gone.
	reclaimed, _ := q.RequeueExpired(ctx, time.Now().Add(time.Hour), 10)
	if len(reclaimed) != 0 {
		t.Fatalf("reclaimed = %v", reclaimed)
	}
}

func TestDepth(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, models.StageJob{Stage: models.StageTags, BookID: "b", Queue: models.QueuePrimary}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	depth, err := q.Depth(ctx, models.QueuePrimary)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 3 {
		t.Fatalf("depth = %d", depth)
	}
	if depth, _ := q.Depth(ctx, models.QueueRegeneration); depth != 0 {
		t.Fatalf("regen depth = %d", depth)
	}
}
