// Package convert implements C8, the URL-to-PDF conversion worker: the
// direct-PDF download fast path, headless-browser capture orchestration,
// quality verification, debug-artifact persistence on failure, and
// weekly-bin save with metadata embedding.
package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookmarkforge/internal/binstore"
	"bookmarkforge/internal/browser"
	"bookmarkforge/internal/classify"
	"bookmarkforge/internal/config"
	"bookmarkforge/internal/events"
	"bookmarkforge/internal/quality"
)

// Job is the ConversionJob entity from the data model.
type Job struct {
	ID           string
	URL          string
	OriginalURL  string
	Title        string
	BookmarkedAt time.Time
	OldFilePath  string
}

// Result is the ConversionResult entity returned on success.
type Result struct {
	PDFPath          string
	PDFSize          int64
	CompletedAt      time.Time
	URL              string
	QualityScore     int
	QualityReasoning string
}

var directPDFHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)arxiv\.org/pdf/`),
	regexp.MustCompile(`(?i)/downloads?/.*\.pdf$`),
}

func isDirectPDFURL(url string) bool {
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return true
	}
	for _, p := range directPDFHostPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

const browserLikeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Worker orchestrates C3 + C4 + C5 for one conversion job at a time; the
// spec fixes concurrency at 1 because both the browser and the vision
// model are resource-intensive.
type Worker struct {
	Pool *browser.Pool
	Bus  *events.Bus
}

func NewWorker(pool *browser.Pool, bus *events.Bus) *Worker {
	return &Worker{Pool: pool, Bus: bus}
}

// Handle runs the full conversion protocol for one job, returning either
// a Result or an error formatted as "{kind}: {message}" via the classify
// package so the queue's retry machinery can act on it uniformly.
func (w *Worker) Handle(ctx context.Context, job Job, attemptsMade, maxAttempts int) (*Result, error) {
	w.Bus.Publish(events.ConversionStarted, map[string]any{"job_id": job.ID, "url": job.URL})
	w.progress(job.ID, 10)

	if isDirectPDFURL(job.URL) {
		return w.handleDirectPDF(ctx, job, attemptsMade, maxAttempts)
	}

	result, err := w.Pool.Capture(ctx, job.URL)
	if err != nil {
		w.fail(job, err, attemptsMade, maxAttempts)
		return nil, err
	}
	w.progress(job.ID, 50)

	if passed, reason := quality.BlankPageHeuristic(result.Screenshot, result.PDF); !passed {
		w.saveDebugArtifact(job.ID, result.PDF)
		failure := classify.New(classify.BlankPage, reason)
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}
	w.progress(job.ID, 90)

	score, reasoning, qerr := quality.Verify(ctx, result.Screenshot, result.PDF)
	if qerr != nil {
		w.saveDebugArtifact(job.ID, result.PDF)
		w.fail(job, qerr, attemptsMade, maxAttempts)
		return nil, qerr
	}

	savePath, err := binstore.SavePdf(result.PDF, job.OriginalURL, binstore.SaveOptions{
		Title:         job.Title,
		BookmarkedAt:  job.BookmarkedAt,
		OldFilePath:   job.OldFilePath,
		DirectArticle: result.DirectArticle,
	}, quality.EmbedMetadata)
	if err != nil {
		failure := classify.New(classify.Unknown, fmt.Sprintf("save failed: %v", err))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	w.progress(job.ID, 100)
	res := &Result{
		PDFPath: savePath, PDFSize: int64(len(result.PDF)), CompletedAt: time.Now(),
		URL: job.URL, QualityScore: score, QualityReasoning: reasoning,
	}
	w.Bus.Publish(events.ConversionCompleted, map[string]any{
		"job_id": job.ID, "url": job.URL, "pdf_path": res.PDFPath, "pdf_size": res.PDFSize,
		"quality_score": score, "quality_reasoning": reasoning,
	})
	return res, nil
}

// handleDirectPDF implements the direct-PDF fast path: download,
// validate content type, save with title or Content-Disposition
// filename, skipping the quality pipeline entirely.
func (w *Worker) handleDirectPDF(ctx context.Context, job Job, attemptsMade, maxAttempts int) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		failure := classify.New(classify.Unknown, err.Error())
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}
	req.Header.Set("User-Agent", browserLikeUA)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		failure := classify.New(classify.NavigationError, err.Error())
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := classify.New(classify.Unknown, fmt.Sprintf("download_failed: status %d", resp.StatusCode))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/pdf") && !strings.HasSuffix(strings.ToLower(job.URL), ".pdf") {
		failure := classify.New(classify.Unknown, "not_pdf: unexpected content-type "+contentType)
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		failure := classify.New(classify.Unknown, err.Error())
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	title := job.Title
	if title == "" {
		if _, params, perr := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); perr == nil {
			title = params["filename"]
		}
	}

	savePath, err := binstore.SavePdf(body, job.OriginalURL, binstore.SaveOptions{
		Title:        title,
		BookmarkedAt: job.BookmarkedAt,
		OldFilePath:  job.OldFilePath,
	}, quality.EmbedMetadata)
	if err != nil {
		failure := classify.New(classify.Unknown, fmt.Sprintf("save failed: %v", err))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	w.progress(job.ID, 100)
	res := &Result{PDFPath: savePath, PDFSize: int64(len(body)), CompletedAt: time.Now(), URL: job.URL, QualityScore: -1}
	w.Bus.Publish(events.ConversionCompleted, map[string]any{
		"job_id": job.ID, "url": job.URL, "pdf_path": res.PDFPath, "pdf_size": res.PDFSize,
	})
	return res, nil
}

func (w *Worker) progress(jobID string, pct int) {
	w.Bus.Publish(events.ConversionProgress, map[string]any{"job_id": jobID, "progress": pct})
}

// fail publishes the terminal failure event only when attempts are
// exhausted, per the spec's "failure event is only emitted when
// attemptsMade >= attempts" rule.
func (w *Worker) fail(job Job, err error, attemptsMade, maxAttempts int) {
	if attemptsMade < maxAttempts {
		return
	}
	w.Bus.Publish(events.ConversionFailed, map[string]any{
		"job_id": job.ID, "url": job.URL, "failure_reason": err.Error(),
		"attempts_made": attemptsMade, "max_attempts": maxAttempts,
	})
}

func (w *Worker) saveDebugArtifact(jobID string, pdfBytes []byte) {
	if len(pdfBytes) == 0 {
		return
	}
	dir := filepath.Join(config.DataDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("failed to create debug directory", "error", err)
		return
	}
	// uuid-suffixed so a retried job's earlier failed attempt isn't
	// overwritten before anyone looks at it.
	path := filepath.Join(dir, jobID+"-"+uuid.NewString()+".pdf")
	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		slog.Warn("failed to write debug artifact", "path", path, "error", err)
	}
}
