// Package queue implements the named, durable, retrying job queue every
// worker (conversion, media collection, podcast) submits to and drains
// from. It generalizes a single hard-coded Redis queue into one keyed by
// queue name, each with its own retry/backoff/retention policy.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"bookmarkforge/internal/config"
)

var ErrNotConnected = fmt.Errorf("queue is not connected")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// Options controls retry, backoff and retention behavior for a single
// named queue. Each queue gets its own Options instead of one hard-coded
// set of constants shared by everything.
type Options struct {
	Attempts         int
	Backoff          time.Duration
	RemoveOnComplete bool
	RemoveOnFail     bool
	Retention        time.Duration
}

// DefaultOptions mirrors the conservative defaults used throughout this
// codebase: three attempts, exponential backoff off a 30s base, and a
// week of retention for forensics on completed/failed jobs.
func DefaultOptions() Options {
	return Options{
		Attempts:         config.DefaultMaxAttempts,
		Backoff:          config.DefaultBackoff,
		RemoveOnComplete: false,
		RemoveOnFail:     false,
		Retention:        config.JobRetention,
	}
}

// MediaOptions is the media queue's C9-mandated policy: up to 5 attempts
// with exponential backoff off a 60s base (≈ 1m, 2m, 4m, 8m, 16m),
// distinct from every other queue's conservative DefaultOptions.
func MediaOptions() Options {
	return Options{
		Attempts:         config.MediaMaxAttempts,
		Backoff:          config.MediaBackoffBase,
		RemoveOnComplete: false,
		RemoveOnFail:     false,
		Retention:        config.JobRetention,
	}
}

// Job is a single unit of work. Payload carries the job-specific body
// (a canonicalized URL, a media manifest, a podcast episode reference)
// serialized as JSON so the queue itself stays payload-agnostic.
type Job struct {
	ID         string          `json:"id" redis:"id"`
	Queue      string          `json:"queue" redis:"queue"`
	Payload    json.RawMessage `json:"payload" redis:"payload"`
	Status     Status          `json:"status" redis:"status"`
	Attempts   int             `json:"attempts" redis:"attempts"`
	CreatedAt  time.Time       `json:"created_at" redis:"created_at"`
	FailReason string          `json:"fail_reason,omitempty" redis:"fail_reason"`
}

// Queue is a single named Redis-backed job queue.
type Queue struct {
	client *redis.Client
	name   string
	opts   Options
}

// Manager owns the Redis connection and hands out per-name Queue handles
// so callers never juggle Redis keys directly.
type Manager struct {
	client *redis.Client
}

// NewManager dials Redis once for the whole process.
func NewManager(ctx context.Context) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	slog.Info("redis connected", "addr", config.RedisAddr)
	return &Manager{client: client}, nil
}

// NewManagerWithClient wraps an existing client, used by tests.
func NewManagerWithClient(client *redis.Client) *Manager {
	return &Manager{client: client}
}

func (m *Manager) Close() error {
	return m.client.Close()
}

// Client exposes the shared Redis connection so other components keyed
// off the same instance (dedup sets, feed cache) don't each dial their
// own.
func (m *Manager) Client() *redis.Client {
	return m.client
}

// Queue returns (creating if needed) the named queue with the given
// options. Calling it twice for the same name with different options is
// a caller bug, but harmless: the last Options wins for that handle.
func (m *Manager) Queue(name string, opts Options) *Queue {
	return &Queue{client: m.client, name: name, opts: opts}
}

// Options returns the queue's configured retry/backoff/retention policy,
// so callers that only have a *Queue handle (e.g. the dequeue loop) can
// read maxAttempts without re-deriving it from config.
func (q *Queue) Options() Options { return q.opts }

func (q *Queue) waitingKey() string  { return fmt.Sprintf("queue:%s:waiting", q.name) }
func (q *Queue) jobKey(id string) string {
	return fmt.Sprintf("queue:%s:job:%s", q.name, id)
}
func (q *Queue) runningSet() string { return fmt.Sprintf("queue:%s:running", q.name) }
func (q *Queue) successSet() string { return fmt.Sprintf("queue:%s:success", q.name) }
func (q *Queue) failedSet() string  { return fmt.Sprintf("queue:%s:failed", q.name) }
func (q *Queue) cleanupSet() string { return fmt.Sprintf("queue:%s:cleanup", q.name) }

// Enqueue pushes a new job with the given id and payload. If a job with
// that id is already queued, running, or terminal, Enqueue is a no-op and
// returns false — this is the dedup boundary C1 relies on for
// "already enqueued, skip" semantics.
func (q *Queue) Enqueue(ctx context.Context, id string, payload any) (bool, error) {
	if q.client == nil {
		return false, ErrNotConnected
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	exists, err := q.client.Exists(ctx, q.jobKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check existing job: %w", err)
	}
	if exists > 0 {
		return false, nil
	}

	job := Job{
		ID:        id,
		Queue:     q.name,
		Payload:   raw,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}

	pipe := q.client.Pipeline()
	pipe.HSet(ctx, q.jobKey(id), "id", job.ID, "queue", job.Queue, "payload", string(job.Payload),
		"status", string(job.Status), "attempts", job.Attempts, "created_at", job.CreatedAt.Format(time.RFC3339))
	pipe.LPush(ctx, q.waitingKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("enqueue job: %w", err)
	}

	slog.Info("job enqueued", "queue", q.name, "job_id", id)
	return true, nil
}

// Dequeue blocks for up to 5 seconds (a short poll window) waiting for a
// job, consistent with the teacher's BRPOP-based dequeue
// loop, returning nil, nil on timeout so callers can check for shutdown.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	if q.client == nil {
		return nil, ErrNotConnected
	}
	result, err := q.client.BRPop(ctx, 5*time.Second, q.waitingKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("invalid BRPOP result: %v", result)
	}
	return q.GetJob(ctx, result[1])
}

// StartJob marks a job processing and moves it into the running set.
func (q *Queue) StartJob(ctx context.Context, id string) error {
	pipe := q.client.Pipeline()
	pipe.HSet(ctx, q.jobKey(id), "status", string(StatusProcessing))
	pipe.HIncrBy(ctx, q.jobKey(id), "attempts", 1)
	pipe.SAdd(ctx, q.runningSet(), id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	return nil
}

// CompleteJob marks a job complete, retires it from the running set, and
// schedules it for cleanup per the queue's retention policy.
func (q *Queue) CompleteJob(ctx context.Context, id string) error {
	pipe := q.client.Pipeline()
	pipe.SRem(ctx, q.runningSet(), id)
	if q.opts.RemoveOnComplete {
		pipe.Del(ctx, q.jobKey(id))
	} else {
		pipe.HSet(ctx, q.jobKey(id), "status", string(StatusComplete))
		pipe.SAdd(ctx, q.successSet(), id)
		pipe.Expire(ctx, q.jobKey(id), q.retention())
		pipe.ZAdd(ctx, q.cleanupSet(), redis.Z{
			Score:  float64(time.Now().Add(q.retention()).Unix()),
			Member: id,
		})
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob records a failure reason. If the job has attempts remaining
// under the queue's Options, it is re-enqueued after an exponential
// backoff window (Backoff * 2^(attempts-1): base, 2x, 4x, 8x, ...);
// otherwise it moves to the terminal failed set. The attempt count is
// taken from the job's stored record, which StartJob increments.
func (q *Queue) FailJob(ctx context.Context, job *Job, reason string) error {
	if n, err := q.client.HGet(ctx, q.jobKey(job.ID), "attempts").Int(); err == nil {
		job.Attempts = n
	}
	pipe := q.client.Pipeline()
	pipe.SRem(ctx, q.runningSet(), job.ID)

	if job.Attempts < q.opts.Attempts {
		pipe.HSet(ctx, q.jobKey(job.ID), "status", string(StatusQueued), "fail_reason", reason)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("record retry: %w", err)
		}
		slog.Warn("job failed, retrying", "queue", q.name, "job_id", job.ID, "attempt", job.Attempts, "reason", reason)
		go q.scheduleRetry(job.ID, exponentialBackoff(q.opts.Backoff, job.Attempts))
		return nil
	}

	if q.opts.RemoveOnFail {
		pipe.Del(ctx, q.jobKey(job.ID))
	} else {
		pipe.HSet(ctx, q.jobKey(job.ID), "status", string(StatusFailed), "fail_reason", reason)
		pipe.SAdd(ctx, q.failedSet(), job.ID)
		pipe.Expire(ctx, q.jobKey(job.ID), q.retention())
		pipe.ZAdd(ctx, q.cleanupSet(), redis.Z{
			Score:  float64(time.Now().Add(q.retention()).Unix()),
			Member: job.ID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fail job terminally: %w", err)
	}
	slog.Error("job failed permanently", "queue", q.name, "job_id", job.ID, "reason", reason)
	return nil
}

// exponentialBackoff returns base * 2^(attempts-1): attempt 1 waits base,
// attempt 2 waits 2x base, attempt 3 waits 4x base, and so on, matching
// C9's "up to 5 attempts with exponential backoff base 60s" example
// (1m, 2m, 4m, 8m, 16m).
func exponentialBackoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return base * time.Duration(1<<uint(attempts-1))
}

// scheduleRetry waits out the backoff window then pushes the job id back
// onto the waiting list. Run in its own goroutine so FailJob never
// blocks the worker loop.
func (q *Queue) scheduleRetry(id string, after time.Duration) {
	time.Sleep(after)
	if err := q.client.LPush(context.Background(), q.waitingKey(), id).Err(); err != nil {
		slog.Error("failed to schedule retry", "queue", q.name, "job_id", id, "error", err)
	}
}

func (q *Queue) retention() time.Duration {
	if q.opts.Retention > 0 {
		return q.opts.Retention
	}
	return config.JobRetention
}

// GetJob fetches a job by id, or nil if it does not exist.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	m, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	attempts := 0
	fmt.Sscanf(m["attempts"], "%d", &attempts)
	createdAt, _ := time.Parse(time.RFC3339, m["created_at"])
	return &Job{
		ID:         m["id"],
		Queue:      m["queue"],
		Payload:    json.RawMessage(m["payload"]),
		Status:     Status(m["status"]),
		Attempts:   attempts,
		CreatedAt:  createdAt,
		FailReason: m["fail_reason"],
	}, nil
}

// QueueLength returns the number of jobs still waiting.
func (q *Queue) QueueLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.waitingKey()).Result()
}

// FailedJobIDs lists every job id in the terminal failed set — used by
// listFailures.
func (q *Queue) FailedJobIDs(ctx context.Context) ([]string, error) {
	return q.client.SMembers(ctx, q.failedSet()).Result()
}

// CompletedJobIDs lists every job id in the terminal success set,
// mirroring FailedJobIDs for the complete side of the state machine.
func (q *Queue) CompletedJobIDs(ctx context.Context) ([]string, error) {
	return q.client.SMembers(ctx, q.successSet()).Result()
}

// Remove deletes a job's hash record and purges it from every set it
// might belong to (running/success/failed/cleanup) regardless of its
// current state — the generic removal primitive DeleteFailed
// specializes for the failed-only case.
func (q *Queue) Remove(ctx context.Context, id string) error {
	pipe := q.client.Pipeline()
	pipe.Del(ctx, q.jobKey(id))
	pipe.SRem(ctx, q.runningSet(), id)
	pipe.SRem(ctx, q.successSet(), id)
	pipe.SRem(ctx, q.failedSet(), id)
	pipe.ZRem(ctx, q.cleanupSet(), id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// DeleteFailed removes a job from the terminal failed set and deletes
// its hash, used by deleteFailures.
func (q *Queue) DeleteFailed(ctx context.Context, id string) error {
	return q.Remove(ctx, id)
}

func schedulerKey(id string) string { return fmt.Sprintf("scheduler:%s", id) }

const schedulerSetKey = "scheduler:all"

// SchedulerRecord materializes a recurring job definition: the cron spec
// driving it, the queue it enqueues onto, and the job template used to
// build each run's payload.
type SchedulerRecord struct {
	ID        string          `json:"id" redis:"id"`
	CronSpec  string          `json:"cron_spec" redis:"cron_spec"`
	Queue     string          `json:"queue" redis:"queue"`
	Template  json.RawMessage `json:"template" redis:"template"`
	UpdatedAt time.Time       `json:"updated_at" redis:"updated_at"`
}

// UpsertScheduler materializes a recurring job record in Redis, reusing
// the same hash-plus-set idiom job records use. internal/scheduler's
// robfig/cron runtime is still what actually fires ticks in-process;
// this record is what C11 and operators inspect to see what recurring
// jobs exist without reading cron registration code.
func (m *Manager) UpsertScheduler(ctx context.Context, id, cronSpec, queueName string, template any) error {
	raw, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("marshal scheduler template: %w", err)
	}
	pipe := m.client.Pipeline()
	pipe.HSet(ctx, schedulerKey(id), "id", id, "cron_spec", cronSpec, "queue", queueName,
		"template", string(raw), "updated_at", time.Now().Format(time.RFC3339))
	pipe.SAdd(ctx, schedulerSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert scheduler record: %w", err)
	}
	return nil
}

// GetScheduler fetches a persisted scheduler record by id, or nil if one
// has never been upserted.
func (m *Manager) GetScheduler(ctx context.Context, id string) (*SchedulerRecord, error) {
	res, err := m.client.HGetAll(ctx, schedulerKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get scheduler record: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	updatedAt, _ := time.Parse(time.RFC3339, res["updated_at"])
	return &SchedulerRecord{
		ID:        res["id"],
		CronSpec:  res["cron_spec"],
		Queue:     res["queue"],
		Template:  json.RawMessage(res["template"]),
		UpdatedAt: updatedAt,
	}, nil
}

// SchedulerIDs lists every scheduler id ever upserted.
func (m *Manager) SchedulerIDs(ctx context.Context) ([]string, error) {
	return m.client.SMembers(ctx, schedulerSetKey).Result()
}

// CleanupExpired sweeps the cleanup sorted set in batches, deleting job
// hashes whose retention window has elapsed. Mirrors the teacher's
// CleanupExpiredJobs batch-of-100 sweep.
func (q *Queue) CleanupExpired(ctx context.Context) (int, error) {
	now := float64(time.Now().Unix())
	ids, err := q.client.ZRangeByScore(ctx, q.cleanupSet(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan cleanup set: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	pipe := q.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, q.jobKey(id))
		pipe.SRem(ctx, q.successSet(), id)
		pipe.SRem(ctx, q.failedSet(), id)
		pipe.ZRem(ctx, q.cleanupSet(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cleanup expired jobs: %w", err)
	}
	return len(ids), nil
}
