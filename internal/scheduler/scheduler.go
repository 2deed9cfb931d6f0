// Package scheduler implements C11: registers the recurring feed-poll
// job and an optional offset batch-tick job using robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"bookmarkforge/internal/queue"
)

// schedulerRecords is the subset of *queue.Manager a Scheduler needs to
// persist C2 scheduler records; a narrow interface keeps scheduler_test.go
// free of a live Redis dependency.
type schedulerRecords interface {
	UpsertScheduler(ctx context.Context, id, cronSpec, queueName string, template any) error
}

// Scheduler owns the cron runtime and the registered job callbacks. The
// robfig/cron runtime is what actually fires ticks; records is where
// each registration is materialized for inspection, per C2's
// upsertScheduler operation.
type Scheduler struct {
	cron    *cron.Cron
	records schedulerRecords
}

// New builds a Scheduler with a logging-aware cron runtime; panics
// inside a job are recovered and logged rather than crashing the
// process, matching the rest of the codebase's "one bad tick shouldn't
// take down the worker" discipline. records may be nil, in which case
// registrations run the same but no Redis scheduler record is kept.
func New(records *queue.Manager) *Scheduler {
	logger := cron.VerbosePrintfLogger(slogAdapter{})
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
	))
	s := &Scheduler{cron: c}
	if records != nil {
		s.records = records
	}
	return s
}

type slogAdapter struct{}

func (slogAdapter) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// RegisterFeedPoll schedules fn to run every interval via cron's @every
// schedule: runs are spaced interval apart, counted from when the
// scheduler starts, and are not aligned to epoch. Sub-second parts of
// interval are dropped.
func (s *Scheduler) RegisterFeedPoll(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	const id = "feed-poll"
	spec := fmt.Sprintf("@every %s", interval.String())
	_, err := s.cron.AddFunc(spec, func() { fn(ctx) })
	if err != nil {
		return fmt.Errorf("register feed poll job: %w", err)
	}
	s.upsertRecord(ctx, id, spec, "feed", map[string]string{"interval": interval.String()})
	return nil
}

// upsertRecord persists a scheduler record if the Scheduler was built
// with a records store; failures are logged and swallowed since the
// in-memory cron registration above already succeeded and must not be
// undone by an observability-only write failing.
func (s *Scheduler) upsertRecord(ctx context.Context, id, cronSpec, queueName string, template any) {
	if s.records == nil {
		return
	}
	if err := s.records.UpsertScheduler(ctx, id, cronSpec, queueName, template); err != nil {
		slog.Warn("failed to persist scheduler record", "id", id, "error", err)
	}
}

// RegisterBatchTick schedules an optional periodic batch tick at the
// given interval, offset from the feed-poll schedule to avoid the two
// ticks colliding on the same wall-clock second.
func (s *Scheduler) RegisterBatchTick(ctx context.Context, interval, offset time.Duration, fn func(context.Context)) error {
	s.upsertRecord(ctx, "batch-tick", fmt.Sprintf("@every %s", interval.String()), "batch",
		map[string]string{"interval": interval.String(), "offset": offset.String()})
	go func() {
		timer := time.NewTimer(offset)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("batch tick job panicked", "recovered", r)
						}
					}()
					fn(ctx)
				}()
			}
		}
	}()
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runtime and waits for any in-flight job to
// complete, per the graceful-shutdown ordering (stop intake before
// draining handlers).
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
