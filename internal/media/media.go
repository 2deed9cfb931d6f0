// Package media implements C9, the media collection worker: streaming
// download to a temp path, idempotent rename into the weekly bin, and
// retry-with-backoff including the "file not yet available" transcript
// case.
//
// Grounded on niezatapialni-scraper/downloader.go's stream-to-temp-file
// and already-exists/zero-length-retry discipline, generalized to
// multiple media types and a configurable asset-host bearer token.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookmarkforge/internal/binstore"
	"bookmarkforge/internal/classify"
	"bookmarkforge/internal/config"
	"bookmarkforge/internal/events"
)

// Job is the MediaJob entity from the data model.
type Job struct {
	ID           string
	URL          string
	OriginalURL  string
	MediaType    binstore.MediaType
	Title        string
	BookmarkedAt time.Time
}

// Result is the MediaResult entity returned on success.
type Result struct {
	Path        string
	Size        int64
	CompletedAt time.Time
}

// Worker downloads media at concurrency 2 per the spec; callers are
// expected to run two goroutines pulling from the same queue.
type Worker struct {
	Bus *events.Bus
}

func NewWorker(bus *events.Bus) *Worker {
	return &Worker{Bus: bus}
}

// Handle downloads job.URL to a temp file and moves it into the weekly
// bin. attemptsMade/maxAttempts gate the failed event exactly as in the
// conversion worker: only the exhausted attempt is reported externally.
func (w *Worker) Handle(ctx context.Context, job Job, attemptsMade, maxAttempts int) (*Result, error) {
	w.Bus.Publish(events.MediaStarted, map[string]any{"job_id": job.ID, "url": job.URL})

	downloadCtx, cancel := context.WithTimeout(ctx, config.MediaDownloadTimeout)
	defer cancel()

	tempPath, size, contentType, err := w.download(downloadCtx, job)
	if err != nil {
		failure := classifyDownloadError(err)
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	baseName := baseNameFor(job)
	ext := extensionFor(job, contentType)
	destPath, err := binstore.SaveMedia(tempPath, job.MediaType, job.BookmarkedAt, baseName, ext)
	if err != nil {
		os.Remove(tempPath)
		failure := classify.New(classify.Unknown, fmt.Sprintf("save failed: %v", err))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	res := &Result{Path: destPath, Size: size, CompletedAt: time.Now()}
	w.Bus.Publish(events.MediaCompleted, map[string]any{
		"job_id": job.ID, "url": job.URL, "path": res.Path, "size": res.Size,
	})
	return res, nil
}

// download streams job.URL into a temp file inside the destination
// bin's directory (so the eventual rename is same-filesystem) and
// returns its path and observed size.
func (w *Worker) download(ctx context.Context, job Job) (tempPath string, size int64, contentType string, err error) {
	dir := binstore.BinPath(binstore.WeekOf(weekAnchor(job.BookmarkedAt)), job.MediaType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("create bin dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return "", 0, "", err
	}
	if isAssetHost(job.URL) {
		token := config.AssetHostToken
		if token == "" {
			if u, perr := url.Parse(config.JSONSourceURL); perr == nil {
				token = u.Query().Get("token")
			}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", 0, "", errFileMissing
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, "", fmt.Errorf("download_failed: status %d", resp.StatusCode)
	}
	contentType = resp.Header.Get("Content-Type")

	tempFile, err := os.CreateTemp(dir, ".media-download-*")
	if err != nil {
		return "", 0, "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath = tempFile.Name()

	written, copyErr := io.Copy(tempFile, resp.Body)
	closeErr := tempFile.Close()
	if copyErr != nil {
		os.Remove(tempPath)
		return "", 0, "", fmt.Errorf("stream download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return "", 0, "", fmt.Errorf("close temp file: %w", closeErr)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		// Content-Length mismatches are a warning, not a failure: some
		// servers report stale or chunked-transfer-incompatible lengths.
		if expected, perr := parseContentLength(cl); perr == nil && expected != written {
			slog.Warn("downloaded size does not match content-length", "url", job.URL, "expected", expected, "actual", written)
		}
	}

	return tempPath, written, contentType, nil
}

func parseContentLength(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func weekAnchor(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

var errFileMissing = fmt.Errorf("file_missing: asset not yet available upstream")

// classifyDownloadError maps a raw download error to the shared failure
// taxonomy. A file_missing result for a transcript is retried explicitly
// by the queue's attempt machinery like any other retryable failure;
// this function only supplies the classification, the retry loop lives
// in the queue package.
func classifyDownloadError(err error) classify.Failure {
	msg := err.Error()
	if err == errFileMissing {
		return classify.New(classify.MissingContent, msg)
	}
	if strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "Client.Timeout") {
		return classify.New(classify.Timeout, msg)
	}
	return classify.New(classify.Unknown, msg)
}

func (w *Worker) fail(job Job, err error, attemptsMade, maxAttempts int) {
	if attemptsMade < maxAttempts {
		return
	}
	w.Bus.Publish(events.MediaFailed, map[string]any{
		"job_id": job.ID, "url": job.URL, "failure_reason": err.Error(),
		"attempts_made": attemptsMade, "max_attempts": maxAttempts,
	})
}

// isAssetHost reports whether url matches the asset-host pattern that
// requires a bearer token (ASSET_HOST_TOKEN when set, otherwise the JSON
// source feed URL's token query parameter).
func isAssetHost(rawURL string) bool {
	return strings.Contains(rawURL, "/api/assets/")
}

func baseNameFor(job Job) string {
	if job.Title != "" {
		return sanitizeBase(job.Title)
	}
	if u, err := url.Parse(job.OriginalURL); err == nil && u.Hostname() != "" {
		return sanitizeBase(u.Hostname())
	}
	return "media"
}

func sanitizeBase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}

// extensionFor infers a file extension from the URL's path first, then
// falls back to the response Content-Type, then the media type's
// conventional default.
func extensionFor(job Job, contentType string) string {
	urlPath := job.URL
	if u, err := url.Parse(job.URL); err == nil {
		urlPath = u.Path
	}
	if ext := filepath.Ext(urlPath); ext != "" && len(ext) <= 5 {
		return ext
	}
	if ext := extensionFromMIME(contentType); ext != "" {
		return ext
	}
	switch job.MediaType {
	case binstore.Video:
		return ".mp4"
	case binstore.Podcast:
		return ".mp3"
	case binstore.Transcript:
		return ".pdf"
	default:
		return ".bin"
	}
}

// extensionFromMIME maps a Content-Type header to a file extension,
// used when the URL itself carries no usable extension.
func extensionFromMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "application/pdf":
		return ".pdf"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ""
	}
}
