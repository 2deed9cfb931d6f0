package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bookmarkforge/internal/binstore"
	"bookmarkforge/internal/browser"
	"bookmarkforge/internal/config"
	"bookmarkforge/internal/convert"
	"bookmarkforge/internal/core"
	"bookmarkforge/internal/dedup"
	"bookmarkforge/internal/enrich"
	"bookmarkforge/internal/events"
	"bookmarkforge/internal/feed"
	"bookmarkforge/internal/media"
	"bookmarkforge/internal/podcastworker"
	"bookmarkforge/internal/queue"
	"bookmarkforge/internal/scheduler"
)

func main() {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(jsonHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	queues, err := queue.NewManager(ctx)
	if err != nil {
		slog.Error("failed to connect to job queue", "error", err)
		os.Exit(1)
	}
	defer queues.Close()

	pool := browser.NewPool()
	if err := pool.Init(); err != nil {
		slog.Error("failed to launch browser pool", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	dedupStore := dedup.NewStore(queues.Client())
	feedCache := feed.NewCache(queues.Client())
	app := core.New(queues)

	convertQueue := queues.Queue(core.QueueConversion, queue.DefaultOptions())
	mediaQueue := queues.Queue(core.QueueMedia, queue.MediaOptions())
	podcastQueue := queues.Queue(core.QueuePodcast, queue.DefaultOptions())

	onItem := func(item feed.BookmarkItem) error {
		route := enrich.RouteFor(item)
		if route == enrich.RouteMedia && item.Enclosure != nil {
			mediaJob := media.Job{
				URL:          item.Enclosure.URL,
				OriginalURL:  item.OriginalURL,
				MediaType:    binstore.MediaType(item.MediaType),
				Title:        item.Title,
				BookmarkedAt: item.BookmarkedAt,
			}
			_, err := mediaQueue.Enqueue(ctx, dedup.Canonicalize(item.Enclosure.URL), mediaJob)
			return err
		}

		meta := enrich.FetchMetadata(ctx, item.OriginalURL)
		enriched := enrich.Merge(item, meta)
		_, err := app.SubmitConversion(ctx, core.SubmitRequest{
			URL:          enriched.OriginalURL,
			OriginalURL:  enriched.OriginalURL,
			Title:        enriched.Title,
			BookmarkedAt: enriched.BookmarkedAt,
		})
		if err == core.ErrVideoOnlyHost {
			slog.Info("skipping video-only host with no enclosure", "url", item.OriginalURL)
			return nil
		}
		return err
	}

	poller := feed.NewPoller(dedupStore, feedCache, config.RSSSourceURL, config.JSONSourceURL, onItem)
	sched := scheduler.New(queues)
	if err := sched.RegisterFeedPoll(ctx, config.FeedPollInterval, poller.Tick); err != nil {
		slog.Error("failed to register feed poll job", "error", err)
		os.Exit(1)
	}
	sched.Start()

	var wg sync.WaitGroup

	convertWorker := convert.NewWorker(pool, bus)
	wg.Add(1)
	go runQueueWorker(ctx, &wg, convertQueue, func(ctx context.Context, raw []byte, attemptsMade, maxAttempts int) (any, error) {
		job, err := decodeJob[convert.Job](raw)
		if err != nil {
			return nil, err
		}
		return convertWorker.Handle(ctx, job, attemptsMade, maxAttempts)
	})

	mediaWorker := media.NewWorker(bus)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go runQueueWorker(ctx, &wg, mediaQueue, func(ctx context.Context, raw []byte, attemptsMade, maxAttempts int) (any, error) {
			job, err := decodeJob[media.Job](raw)
			if err != nil {
				return nil, err
			}
			return mediaWorker.Handle(ctx, job, attemptsMade, maxAttempts)
		})
	}

	podcastWorker := podcastworker.NewWorker(bus)
	wg.Add(1)
	go runQueueWorker(ctx, &wg, podcastQueue, func(ctx context.Context, raw []byte, attemptsMade, maxAttempts int) (any, error) {
		job, err := decodeJob[podcastworker.Job](raw)
		if err != nil {
			return nil, err
		}
		return podcastWorker.Handle(ctx, job, attemptsMade, maxAttempts)
	})

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	wg.Add(1)
	go runCleanupLoop(ctx, &wg, cleanupTicker, convertQueue, mediaQueue, podcastQueue)

	slog.Info("worker started, waiting for jobs",
		"queues", []string{core.QueueConversion, core.QueueMedia, core.QueuePodcast})

	select {
	case sig := <-sigChan:
		slog.Info("received signal, shutting down gracefully", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Stop intake before draining in-flight handlers: the scheduler
	// produces no more feed items, then every dequeue loop (and the
	// cleanup loop) exits on the cancelled context, then the browser pool
	// (shared, expensive) closes last, then the queue connection.
	sched.Stop()
	cancel()
	wg.Wait()

	if err := pool.Close(); err != nil {
		slog.Error("failed to close browser pool", "error", err)
	}
}

// runCleanupLoop ticks CleanupExpired across every queue until ctx is
// cancelled, mirroring the teacher's hourly CleanupExpiredJobs sweep
// generalized across the three named queues.
func runCleanupLoop(ctx context.Context, wg *sync.WaitGroup, ticker *time.Ticker, queues ...*queue.Queue) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, q := range queues {
				if _, err := q.CleanupExpired(ctx); err != nil {
					slog.Error("cleanup sweep failed", "error", err)
				}
			}
		}
	}
}

func decodeJob[T any](raw []byte) (T, error) {
	var job T
	err := json.Unmarshal(raw, &job)
	return job, err
}

// runQueueWorker drains a single named queue forever, applying the
// start/handle/complete-or-fail lifecycle every worker type shares.
// handle returns the typed result (discarded here — callers observe
// progress and completion via the event bus instead) or a classified
// error.
func runQueueWorker(ctx context.Context, wg *sync.WaitGroup, q *queue.Queue, handle func(ctx context.Context, payload []byte, attemptsMade, maxAttempts int) (any, error)) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := q.Dequeue(ctx)
		if err != nil {
			if err == context.Canceled {
				return
			}
			slog.Error("dequeue failed", "error", err)
			continue
		}
		if job == nil {
			continue
		}

		if err := q.StartJob(ctx, job.ID); err != nil {
			slog.Error("failed to mark job started", "job_id", job.ID, "error", err)
			continue
		}
		job.Attempts++

		maxAttempts := q.Options().Attempts
		if _, err := handle(ctx, job.Payload, job.Attempts, maxAttempts); err != nil {
			if failErr := q.FailJob(ctx, job, err.Error()); failErr != nil {
				slog.Error("failed to record job failure", "job_id", job.ID, "error", failErr)
			}
			continue
		}
		if err := q.CompleteJob(ctx, job.ID); err != nil {
			slog.Error("failed to mark job complete", "job_id", job.ID, "error", err)
		}
	}
}
