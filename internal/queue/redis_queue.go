// Package queue implements the two named job queues (primary
// generation and regeneration) on Redis. Jobs are transient: the
// payload lives only in Redis for the lifetime of the job. Delivery is
// at-least-once via visibility leases.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/models"
)

// RedisQueue coordinates ready, in-flight, and scheduled stage jobs in Redis.
// The primary queue is drained before the regeneration queue so first-pass
// throughput is never starved by operator re-runs.
type RedisQueue struct {
	client        *redis.Client
	queues        []string
	inflightKey   string
	scheduledKey  string
	payloadPrefix string
	visibilityTTL time.Duration
	dlqKey        string
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewWithClient(client, cfg)
}

// NewWithClient builds a queue over an existing Redis client (tests).
func NewWithClient(client *redis.Client, cfg config.Config) *RedisQueue {
	primary := cfg.PrimaryQueue
	if primary == "" {
		primary = models.QueuePrimary
	}
	regen := cfg.RegenQueue
	if regen == "" {
		regen = models.QueueRegeneration
	}
	visibility := cfg.VisibilityTimeout
	if visibility == 0 {
		visibility = 5 * time.Minute
	}
	dlq := cfg.DLQName
	if dlq == "" {
		dlq = "queue:dlq"
	}
	return &RedisQueue{
		client:        client,
		queues:        []string{primary, regen},
		inflightKey:   "queue:inflight",
		scheduledKey:  "queue:scheduled",
		payloadPrefix: "queue:payload:",
		visibilityTTL: visibility,
		dlqKey:        dlq,
	}
}

func (q *RedisQueue) readyKey(queue string) string {
	return fmt.Sprintf("queue:ready:%s", queue)
}

func (q *RedisQueue) payloadKey(jobID string) string {
	return q.payloadPrefix + jobID
}

// Enqueue places a stage job on its named queue. A missing queue name
// falls back to the primary queue; a missing ID is assigned.
func (q *RedisQueue) Enqueue(ctx context.Context, job models.StageJob) (models.StageJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Queue == "" {
		job.Queue = q.queues[0]
	}
	job.Enqueued = time.Now().UTC()

	payload, err := json.Marshal(job)
	if err != nil {
		return job, fmt.Errorf("marshal job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.payloadKey(job.ID), payload, 0)
	pipe.RPush(ctx, q.readyKey(job.Queue), job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return job, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Schedule parks a job for deferred delivery (retry backoff).
func (q *RedisQueue) Schedule(ctx context.Context, job models.StageJob, runAt time.Time) error {
	if job.Queue == "" {
		job.Queue = q.queues[0]
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.payloadKey(job.ID), payload, 0)
	pipe.ZAdd(ctx, q.scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: job.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// PromoteScheduled moves due scheduled jobs back onto their ready
// queues. It returns how many were promoted.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.scheduledKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		queue := q.queueForJob(ctx, id)
		pipe.ZRem(ctx, q.scheduledKey, id)
		pipe.RPush(ctx, q.readyKey(queue), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DequeueWithLease pops the next job (primary queue first) and places
// it into the in-flight set with a visibility deadline. A zero-value
// job with ok=false means both queues were empty.
func (q *RedisQueue) DequeueWithLease(ctx context.Context) (models.StageJob, bool, error) {
	keys := make([]string, 0, len(q.queues)+1)
	for _, name := range q.queues {
		keys = append(keys, q.readyKey(name))
	}
	keys = append(keys, q.inflightKey)

	res, err := dequeueScript.Run(ctx, q.client, keys, time.Now().Add(q.visibilityTTL).UnixMilli()).Result()
	if err == redis.Nil {
		return models.StageJob{}, false, nil
	}
	if err != nil {
		return models.StageJob{}, false, err
	}
	jobID, ok := res.(string)
	if !ok {
		return models.StageJob{}, false, fmt.Errorf("unexpected type from dequeue script: %T", res)
	}

	raw, err := q.client.Get(ctx, q.payloadKey(jobID)).Result()
	if err == redis.Nil {
		// Payload lost; drop the lease so the ID does not linger.
		_ = q.client.ZRem(ctx, q.inflightKey, jobID).Err()
		return models.StageJob{}, false, fmt.Errorf("job %s has no payload", jobID)
	}
	if err != nil {
		return models.StageJob{}, false, err
	}
	var job models.StageJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return models.StageJob{}, false, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return job, true, nil
}

// ExtendLease pushes the visibility deadline forward for an in-flight job.
func (q *RedisQueue) ExtendLease(ctx context.Context, jobID string, extension time.Duration) error {
	return q.client.ZAdd(ctx, q.inflightKey, redis.Z{
		Score:  float64(time.Now().Add(extension).UnixMilli()),
		Member: jobID,
	}).Err()
}

// Ack removes a finished job from in-flight tracking and deletes its payload.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey, jobID)
	pipe.Del(ctx, q.payloadKey(jobID))
	_, err := pipe.Exec(ctx)
	return err
}

// Release drops the in-flight lease without touching the payload. Used
// after a job has been re-parked on the scheduled set for retry.
func (q *RedisQueue) Release(ctx context.Context, jobID string) error {
	return q.client.ZRem(ctx, q.inflightKey, jobID).Err()
}

// RequeueExpired reclaims leases that timed out, re-enqueuing the jobs
// on their original queues. This is the at-least-once half of the
// delivery contract.
func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.inflightKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		queue := q.queueForJob(ctx, id)
		pipe.ZRem(ctx, q.inflightKey, id)
		pipe.RPush(ctx, q.readyKey(queue), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// DLQPush moves an exhausted job to the dead-letter list. The payload
// is kept for operational inspection.
func (q *RedisQueue) DLQPush(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey, jobID)
	pipe.RPush(ctx, q.dlqKey, jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// DLQPeek reads the oldest dead-lettered job IDs.
func (q *RedisQueue) DLQPeek(ctx context.Context, count int64) ([]string, error) {
	return q.client.LRange(ctx, q.dlqKey, 0, count-1).Result()
}

// Depth returns the ready length of one named queue.
func (q *RedisQueue) Depth(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, q.readyKey(queue)).Result()
}

// queueForJob reads the queue name out of a parked payload, falling
// back to the primary queue when the payload is unreadable.
func (q *RedisQueue) queueForJob(ctx context.Context, jobID string) string {
	raw, err := q.client.Get(ctx, q.payloadKey(jobID)).Result()
	if err != nil {
		return q.queues[0]
	}
	var job models.StageJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return q.queues[0]
	}
	for _, name := range q.queues {
		if job.Queue == name {
			return name
		}
	}
	return q.queues[0]
}

var dequeueScript = redis.NewScript(`
local inflight = KEYS[#KEYS]
for i=1,#KEYS-1 do
  local job = redis.call('LPOP', KEYS[i])
  if job then
    redis.call('ZADD', inflight, ARGV[1], job)
    return job
  end
end
return nil
`)
