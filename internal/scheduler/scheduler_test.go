package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterBatchTickRunsAfterOffset(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	if err := s.RegisterBatchTick(ctx, 20*time.Millisecond, 10*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&calls, 1)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&calls) == 0 {
		t.Error("expected the batch tick to have fired at least once")
	}
}

func TestRegisterFeedPollAddsJob(t *testing.T) {
	s := New(nil)
	err := s.RegisterFeedPoll(context.Background(), time.Minute, func(context.Context) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Errorf("expected exactly one registered cron entry, got %d", len(s.cron.Entries()))
	}
}
