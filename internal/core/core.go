// Package core exposes the small API surface external collaborators
// (the out-of-scope HTML UI, ZIP packager, webhook notifier, cookie
// uploader) consume: job submission and status, weekly-bin browsing,
// rerun, and delete.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"bookmarkforge/internal/binstore"
	"bookmarkforge/internal/browser"
	"bookmarkforge/internal/classify"
	"bookmarkforge/internal/config"
	"bookmarkforge/internal/enrich"
	"bookmarkforge/internal/feed"
	"bookmarkforge/internal/quality"
	"bookmarkforge/internal/queue"
)

// ErrVideoOnlyHost is returned by SubmitConversion when the URL belongs
// to a known video-only host and carries no enclosure to collect.
var ErrVideoOnlyHost = fmt.Errorf("video-only host cannot be converted without an enclosure")

const (
	QueueConversion = "conversion"
	QueueMedia      = "media"
	QueuePodcast    = "podcast"
)

// Core wires the queue manager and exposes the collaborator-facing API.
type Core struct {
	Queues *queue.Manager
}

func New(queues *queue.Manager) *Core {
	return &Core{Queues: queues}
}

// queueOptions returns the retry/backoff/retention policy for the named
// queue: media gets C9's 5-attempt exponential-backoff policy, every
// other queue gets the conservative DefaultOptions. Every call site in
// this package constructs queue handles through this one mapping;
// cmd/worker/main.go makes the same per-queue choice by calling
// queue.MediaOptions and queue.DefaultOptions directly.
func queueOptions(name string) queue.Options {
	if name == QueueMedia {
		return queue.MediaOptions()
	}
	return queue.DefaultOptions()
}

// SubmitRequest is the input to SubmitConversion.
type SubmitRequest struct {
	URL          string
	OriginalURL  string
	UserID       string
	Priority     int
	Title        string
	BookmarkedAt time.Time
	OldFilePath  string
}

// conversionPayload / podcastPayload / mediaPayload are the wire shapes
// stored as each job's JSON payload.
type conversionPayload struct {
	URL          string    `json:"url"`
	OriginalURL  string    `json:"originalUrl"`
	Title        string    `json:"title"`
	BookmarkedAt time.Time `json:"bookmarkedAt"`
	OldFilePath  string    `json:"oldFilePath,omitempty"`
}

type podcastPayload struct {
	URL          string    `json:"url"`
	BookmarkedAt time.Time `json:"bookmarkedAt"`
}

// SubmitConversion routes req to the conversion or podcast queue,
// rejecting video-only hosts outright since they carry no enclosure on
// direct submission.
func (c *Core) SubmitConversion(ctx context.Context, req SubmitRequest) (string, error) {
	route := enrich.RouteFor(feed.BookmarkItem{OriginalURL: req.URL})

	if route == enrich.RouteVideoOnly {
		return "", ErrVideoOnlyHost
	}

	bookmarkedAt := req.BookmarkedAt
	if bookmarkedAt.IsZero() {
		bookmarkedAt = time.Now()
	}
	originalURL := req.OriginalURL
	if originalURL == "" {
		originalURL = req.URL
	}

	jobID := jobIDFor(req.UserID, req.URL, bookmarkedAt)

	if route == enrich.RoutePodcast {
		q := c.Queues.Queue(QueuePodcast, queueOptions(QueuePodcast))
		payload := podcastPayload{URL: req.URL, BookmarkedAt: bookmarkedAt}
		if _, err := q.Enqueue(ctx, jobID, payload); err != nil {
			return "", fmt.Errorf("enqueue podcast job: %w", err)
		}
		return jobID, nil
	}

	q := c.Queues.Queue(QueueConversion, queueOptions(QueueConversion))
	payload := conversionPayload{
		URL: req.URL, OriginalURL: originalURL, Title: req.Title,
		BookmarkedAt: bookmarkedAt, OldFilePath: req.OldFilePath,
	}
	if _, err := q.Enqueue(ctx, jobID, payload); err != nil {
		return "", fmt.Errorf("enqueue conversion job: %w", err)
	}
	return jobID, nil
}

func jobIDFor(userID, url string, bookmarkedAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", userID, url, bookmarkedAt.UnixNano())
}

// StatusResult is the getStatus response shape.
type StatusResult struct {
	State        queue.Status
	Progress     *int
	Result       json.RawMessage
	Error        string
	AttemptsMade int
	MaxAttempts  int
}

// GetStatus looks up jobID across the three job queues in turn, since a
// submitter does not know which queue routing assigned it to.
func (c *Core) GetStatus(ctx context.Context, jobID string) (*StatusResult, error) {
	for _, name := range []string{QueueConversion, QueueMedia, QueuePodcast} {
		q := c.Queues.Queue(name, queueOptions(name))
		job, err := q.GetJob(ctx, jobID)
		if err != nil {
			continue
		}
		if job == nil {
			continue
		}
		return &StatusResult{
			State:        job.Status,
			Error:        job.FailReason,
			AttemptsMade: job.Attempts,
			MaxAttempts:  q.Options().Attempts,
		}, nil
	}
	return nil, fmt.Errorf("job not found: %s", jobID)
}

// WeekSummary is one entry of listWeeks.
type WeekSummary struct {
	Year      int
	Week      int
	Path      string
	FileCount int
}

// ListWeeks enumerates every week directory under DATA_DIR/media,
// newest-first.
func (c *Core) ListWeeks() ([]WeekSummary, error) {
	mediaRoot := filepath.Join(config.DataDir, "media")
	entries, err := os.ReadDir(mediaRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read media root: %w", err)
	}

	var weeks []WeekSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		year, week, ok := parseWeekDirName(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(mediaRoot, e.Name())
		count, err := countFilesRecursive(path)
		if err != nil {
			continue
		}
		weeks = append(weeks, WeekSummary{Year: year, Week: week, Path: path, FileCount: count})
	}

	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].Year != weeks[j].Year {
			return weeks[i].Year > weeks[j].Year
		}
		return weeks[i].Week > weeks[j].Week
	})
	return weeks, nil
}

func parseWeekDirName(name string) (year, week int, ok bool) {
	parts := strings.SplitN(name, "-W", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	w, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return y, w, true
}

func countFilesRecursive(dir string) (int, error) {
	count := 0
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}

// FileEntry is one entry of listFiles.
type FileEntry struct {
	Name      string
	Path      string
	Size      int64
	Modified  time.Time
	Type      binstore.MediaType
	SourceURL string
}

// ListFiles enumerates every file archived under the given week
// directory (basenamed "{year}-W{week}", matching binstore.BinPath).
func (c *Core) ListFiles(weekID string) ([]FileEntry, error) {
	weekDir := filepath.Join(config.DataDir, "media", weekID)
	entries, err := os.ReadDir(weekDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read week dir: %w", err)
	}

	var files []FileEntry
	for _, bucket := range entries {
		if !bucket.IsDir() {
			continue
		}
		mediaType := mediaTypeFromBucketName(bucket.Name())
		bucketPath := filepath.Join(weekDir, bucket.Name())
		bucketEntries, err := os.ReadDir(bucketPath)
		if err != nil {
			continue
		}
		for _, f := range bucketEntries {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			fullPath := filepath.Join(bucketPath, f.Name())
			entry := FileEntry{
				Name: f.Name(), Path: fullPath, Size: info.Size(),
				Modified: info.ModTime(), Type: mediaType,
			}
			if mediaType == binstore.PDF {
				if data, err := os.ReadFile(fullPath); err == nil {
					if subject, err := quality.ExtractSubject(data); err == nil {
						entry.SourceURL = subject
					}
				}
			}
			files = append(files, entry)
		}
	}
	return files, nil
}

func mediaTypeFromBucketName(name string) binstore.MediaType {
	switch name {
	case "videos":
		return binstore.Video
	case "transcripts":
		return binstore.Transcript
	case "podcasts":
		return binstore.Podcast
	case "pdfs":
		return binstore.PDF
	default:
		return binstore.MediaType(name)
	}
}

// FailureEntry is one entry of listFailures.
type FailureEntry struct {
	URL           string
	OriginalURL   string
	FailureReason string
	FailedAt      time.Time
	IsBotDetected bool
	JobID         string
}

// ListFailures returns the terminal failures currently recorded for
// weekID across every job queue. weekID is accepted for interface
// symmetry with ListFiles/ListWeeks; failures are not themselves
// week-bucketed, so every queue's failed set is scanned.
func (c *Core) ListFailures(ctx context.Context, weekID string) ([]FailureEntry, error) {
	var out []FailureEntry
	for _, name := range []string{QueueConversion, QueueMedia, QueuePodcast} {
		q := c.Queues.Queue(name, queueOptions(name))
		ids, err := q.FailedJobIDs(ctx)
		if err != nil {
			continue
		}
		for _, id := range ids {
			job, err := q.GetJob(ctx, id)
			if err != nil || job == nil {
				continue
			}
			url, originalURL := recoverURLsFromPayload(job.Payload)
			out = append(out, FailureEntry{
				URL:           url,
				OriginalURL:   originalURL,
				FailureReason: job.FailReason,
				FailedAt:      job.CreatedAt,
				JobID:         job.ID,
				IsBotDetected: classify.IsBotDetected(job.FailReason),
			})
		}
	}
	return out, nil
}

// recoverURLsFromPayload extracts the URL/OriginalURL fields from a raw
// job payload without needing to know which queue (and therefore which
// payload shape) produced it; every payload shape in this codebase uses
// one of these two key spellings for its URL fields.
func recoverURLsFromPayload(payload json.RawMessage) (url, originalURL string) {
	var probe struct {
		URL         string `json:"url"`
		OriginalURL string `json:"originalUrl"`
		RawURL      string `json:"URL"`
		RawOriginal string `json:"OriginalURL"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", ""
	}
	url = probe.URL
	if url == "" {
		url = probe.RawURL
	}
	originalURL = probe.OriginalURL
	if originalURL == "" {
		originalURL = probe.RawOriginal
	}
	if originalURL == "" {
		originalURL = url
	}
	return url, originalURL
}

// RerunResult is the response shape shared by rerunWeek and rerunSelected.
type RerunResult struct {
	Submitted int
	JobIDs    []string
}

// RerunWeek resubmits every PDF under weekID, recovering each file's
// source URL from its embedded PDF Subject and passing through the old
// file path so the rerun overwrites in place.
func (c *Core) RerunWeek(ctx context.Context, weekID string) (*RerunResult, error) {
	files, err := c.ListFiles(weekID)
	if err != nil {
		return nil, err
	}
	var relPaths []string
	for _, f := range files {
		if f.Type == binstore.PDF {
			relPaths = append(relPaths, f.Path)
		}
	}
	return c.RerunSelected(ctx, relPaths, nil)
}

// RerunSelected resubmits a specific set of files (by path) and/or raw
// URLs. For file paths, the source URL is recovered from the PDF's
// embedded Subject.
func (c *Core) RerunSelected(ctx context.Context, files, urls []string) (*RerunResult, error) {
	result := &RerunResult{}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		subject, err := quality.ExtractSubject(data)
		if err != nil || subject == "" {
			continue
		}
		jobID, err := c.SubmitConversion(ctx, SubmitRequest{URL: subject, OldFilePath: path})
		if err != nil {
			continue
		}
		result.Submitted++
		result.JobIDs = append(result.JobIDs, jobID)
	}

	for _, url := range urls {
		jobID, err := c.SubmitConversion(ctx, SubmitRequest{URL: url})
		if err != nil {
			continue
		}
		result.Submitted++
		result.JobIDs = append(result.JobIDs, jobID)
	}

	return result, nil
}

// DeleteFiles removes the named files, resolving each against DATA_DIR
// and refusing to delete anything that resolves outside it — the
// path-traversal protection the spec calls a hard invariant.
func (c *Core) DeleteFiles(relPaths []string) error {
	root, err := filepath.Abs(config.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}

	for _, rel := range relPaths {
		target := filepath.Join(root, rel)
		absTarget, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", rel, err)
		}
		if !isWithinRoot(root, absTarget) {
			return fmt.Errorf("refusing to delete path outside data directory: %s", rel)
		}
		if err := os.Remove(absTarget); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %q: %w", rel, err)
		}
	}
	return nil
}

func isWithinRoot(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// DeleteFailures removes the named jobs from every queue's failed set.
func (c *Core) DeleteFailures(ctx context.Context, jobIDs []string) error {
	for _, name := range []string{QueueConversion, QueueMedia, QueuePodcast} {
		q := c.Queues.Queue(name, queueOptions(name))
		for _, id := range jobIDs {
			_ = q.DeleteFailed(ctx, id)
		}
	}
	return nil
}

// UploadCookies validates and persists a Netscape-format cookies.txt
// upload, used by browser.CookieStore.
func (c *Core) UploadCookies(content string) error {
	if !browser.ValidateUpload(content) {
		return fmt.Errorf("uploaded content is not a valid cookies.txt file")
	}
	if config.CookiesFile == "" {
		return fmt.Errorf("no cookies file configured")
	}
	return os.WriteFile(config.CookiesFile, []byte(content), 0o600)
}
