//go:build integration
// +build integration

package queue

import (
	"context"
	"testing"
	"time"
)

func setupTestManager(t *testing.T) *Manager {
	ctx := context.Background()
	m, err := NewManager(ctx)
	if err != nil {
		t.Skipf("skipping test: redis not available: %v", err)
		return nil
	}
	return m
}

func TestQueueEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	m := setupTestManager(t)
	if m == nil {
		return
	}
	defer m.Close()

	q := m.Queue("test-conversion", DefaultOptions())

	ok, err := q.Enqueue(ctx, "job-1", map[string]string{"url": "https://example.com/a"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !ok {
		t.Fatal("expected enqueue to succeed for new job")
	}

	dup, err := q.Enqueue(ctx, "job-1", map[string]string{"url": "https://example.com/a"})
	if err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}
	if dup {
		t.Error("expected duplicate enqueue to be a no-op")
	}

	length, err := q.QueueLength(ctx)
	if err != nil {
		t.Fatalf("queue length: %v", err)
	}
	if length < 1 {
		t.Errorf("expected queue length >= 1, got %d", length)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil || job.ID != "job-1" {
		t.Fatalf("expected to dequeue job-1, got %v", job)
	}
}

func TestQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	m := setupTestManager(t)
	if m == nil {
		return
	}
	defer m.Close()

	q := m.Queue("test-lifecycle", DefaultOptions())

	if _, err := q.Enqueue(ctx, "lc-1", map[string]string{"url": "https://example.com/b"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil || job == nil {
		t.Fatalf("dequeue: job=%v err=%v", job, err)
	}

	if err := q.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}

	if err := q.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	got, err := q.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != StatusComplete {
		t.Errorf("expected status complete, got %s", got.Status)
	}

	completed, err := q.CompletedJobIDs(ctx)
	if err != nil {
		t.Fatalf("completed job ids: %v", err)
	}
	if len(completed) != 1 || completed[0] != "lc-1" {
		t.Errorf("expected lc-1 in success set, got %v", completed)
	}

	if err := q.Remove(ctx, job.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if gone, err := q.GetJob(ctx, job.ID); err != nil || gone != nil {
		t.Errorf("expected job removed, got job=%v err=%v", gone, err)
	}

	failOpts := DefaultOptions()
	failOpts.Attempts = 1
	fq := m.Queue("test-lifecycle-fail", failOpts)
	if _, err := fq.Enqueue(ctx, "fail-1", map[string]string{"url": "https://example.com/c"}); err != nil {
		t.Fatalf("enqueue fail job: %v", err)
	}
	failJob, err := fq.Dequeue(ctx)
	if err != nil || failJob == nil {
		t.Fatalf("dequeue fail job: %v %v", failJob, err)
	}
	if err := fq.StartJob(ctx, failJob.ID); err != nil {
		t.Fatalf("start fail job: %v", err)
	}
	if err := fq.FailJob(ctx, failJob, "boom"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	ids, err := fq.FailedJobIDs(ctx)
	if err != nil {
		t.Fatalf("failed job ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "fail-1" {
		t.Errorf("expected fail-1 in failed set, got %v", ids)
	}
}

func TestSchedulerRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := setupTestManager(t)
	if m == nil {
		return
	}
	defer m.Close()

	err := m.UpsertScheduler(ctx, "test-feed-poll", "@every 10m", "feed",
		map[string]string{"interval": "10m0s"})
	if err != nil {
		t.Fatalf("upsert scheduler: %v", err)
	}

	rec, err := m.GetScheduler(ctx, "test-feed-poll")
	if err != nil {
		t.Fatalf("get scheduler: %v", err)
	}
	if rec == nil || rec.CronSpec != "@every 10m" || rec.Queue != "feed" {
		t.Fatalf("unexpected scheduler record: %+v", rec)
	}

	ids, err := m.SchedulerIDs(ctx)
	if err != nil {
		t.Fatalf("scheduler ids: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == "test-feed-poll" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected test-feed-poll in scheduler id set, got %v", ids)
	}
}
