package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout. Ready is a single sorted set ranked so the best
// candidate is always at the head: score = deadline_ms − priority·2^42,
// i.e. priority descending first, deadline ascending as tie-break.
const (
	readyKey     = "subq:ready"
	scheduledKey = "subq:scheduled"
	inflightKey  = "subq:inflight"
	metaPrefix   = "subq:meta:"

	priorityWeight = float64(1 << 42) // deadline millis stay well below 2^42
)

// SubmissionQueue coordinates ready, scheduled, and in-flight submission
// jobs in Redis. Admission moves a job from ready to in-flight in one
// atomic script, which is what guarantees at-most-one concurrent delivery
// attempt per job under concurrent scheduler ticks.
type SubmissionQueue struct {
	client        *redis.Client
	visibilityTTL time.Duration
}

// New builds a queue on an existing Redis client.
func New(client *redis.Client, visibilityTTL time.Duration) *SubmissionQueue {
	if visibilityTTL == 0 {
		visibilityTTL = 2 * time.Minute
	}
	return &SubmissionQueue{client: client, visibilityTTL: visibilityTTL}
}

func metaKey(jobID string) string { return metaPrefix + jobID }

func rankScore(priority int, deadline time.Time) float64 {
	return float64(deadline.UnixMilli()) - float64(priority)*priorityWeight
}

// Enqueue inserts a job into either the scheduled set or the ready set.
func (q *SubmissionQueue) Enqueue(ctx context.Context, jobID string, priority int, deadline, runAt time.Time) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, metaKey(jobID), "priority", priority, "deadline_ms", deadline.UnixMilli())
	if runAt.After(time.Now()) {
		pipe.ZAdd(ctx, scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: jobID})
	} else {
		pipe.ZAdd(ctx, readyKey, redis.Z{Score: rankScore(priority, deadline), Member: jobID})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Schedule moves a job into the scheduled set for deferred eligibility,
// typically a retry backoff window.
func (q *SubmissionQueue) Schedule(ctx context.Context, jobID string, priority int, deadline, runAt time.Time) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, metaKey(jobID), "priority", priority, "deadline_ms", deadline.UnixMilli())
	pipe.ZAdd(ctx, scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: jobID})
	_, err := pipe.Exec(ctx)
	return err
}

// PromoteScheduled moves due scheduled jobs into the ready set, ranked by
// their stored priority and deadline. Returns how many were promoted.
func (q *SubmissionQueue) PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
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
		priority, deadline := q.readMeta(ctx, id)
		pipe.ZRem(ctx, scheduledKey, id)
		pipe.ZAdd(ctx, readyKey, redis.Z{Score: rankScore(priority, deadline), Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Admit atomically pops up to batch best-ranked ready jobs into the
// in-flight set with a lease deadline, never letting the in-flight count
// exceed maxInFlight. Pop and lease happen in one script, so two
// concurrent callers can never both receive the same job nor jointly
// overshoot the concurrency cap.
func (q *SubmissionQueue) Admit(ctx context.Context, batch, maxInFlight int) ([]string, error) {
	if batch <= 0 || maxInFlight <= 0 {
		return nil, nil
	}
	res, err := admitScript.Run(ctx, q.client, []string{readyKey, inflightKey},
		time.Now().Add(q.visibilityTTL).UnixMilli(), batch, maxInFlight).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected type from admit script: %T", res)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// ExtendLease pushes the visibility deadline forward for an in-flight job.
func (q *SubmissionQueue) ExtendLease(ctx context.Context, jobID string, extension time.Duration) error {
	return q.client.ZAdd(ctx, inflightKey, redis.Z{
		Score:  float64(time.Now().Add(extension).UnixMilli()),
		Member: jobID,
	}).Err()
}

// Ack removes a finished job from in-flight tracking and its meta record.
// A retry re-enters through Schedule or Enqueue, which rewrite the meta.
func (q *SubmissionQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, jobID)
	pipe.Del(ctx, metaKey(jobID))
	_, err := pipe.Exec(ctx)
	return err
}

// RequeueExpired reclaims leases that timed out, putting the jobs back in
// the ready set. The orchestrator audits each reclaim.
func (q *SubmissionQueue) RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, inflightKey, &redis.ZRangeBy{
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
		priority, deadline := q.readMeta(ctx, id)
		pipe.ZRem(ctx, inflightKey, id)
		pipe.ZAdd(ctx, readyKey, redis.Z{Score: rankScore(priority, deadline), Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// Remove takes a job out of every set, used when a job is terminated
// outside the normal attempt path.
func (q *SubmissionQueue) Remove(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, readyKey, jobID)
	pipe.ZRem(ctx, scheduledKey, jobID)
	pipe.ZRem(ctx, inflightKey, jobID)
	pipe.Del(ctx, metaKey(jobID))
	_, err := pipe.Exec(ctx)
	return err
}

// InFlight returns how many jobs currently hold a delivery lease.
func (q *SubmissionQueue) InFlight(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, inflightKey).Result()
}

// ReadyDepth returns the ready set length.
func (q *SubmissionQueue) ReadyDepth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, readyKey).Result()
}

// ScheduledDepth returns the scheduled set length.
func (q *SubmissionQueue) ScheduledDepth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, scheduledKey).Result()
}

func (q *SubmissionQueue) readMeta(ctx context.Context, jobID string) (int, time.Time) {
	vals, err := q.client.HMGet(ctx, metaKey(jobID), "priority", "deadline_ms").Result()
	if err != nil || len(vals) < 2 {
		return 0, time.Now()
	}
	priority := 0
	if s, ok := vals[0].(string); ok {
		if n, err := strconv.Atoi(s); err == nil {
			priority = n
		}
	}
	deadline := time.Now()
	if s, ok := vals[1].(string); ok {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			deadline = time.UnixMilli(ms)
		}
	}
	return priority, deadline
}

var admitScript = redis.NewScript(`
local ready = KEYS[1]
local inflight = KEYS[2]
local lease = ARGV[1]
local batch = tonumber(ARGV[2])
local maxInflight = tonumber(ARGV[3])
local admitted = {}
for i=1,batch do
  if redis.call('ZCARD', inflight) >= maxInflight then
    break
  end
  local popped = redis.call('ZRANGE', ready, 0, 0)
  if #popped == 0 then
    break
  end
  local job = popped[1]
  redis.call('ZREM', ready, job)
  redis.call('ZADD', inflight, lease, job)
  admitted[#admitted+1] = job
end
return admitted
`)
