// Package binstore implements the deterministic ISO-week-keyed
// filesystem layout artifacts are archived into, plus idempotent
// save/delete semantics for reruns.
package binstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"bookmarkforge/internal/config"
)

// MediaType is one of the four archive buckets.
type MediaType string

const (
	Video      MediaType = "video"
	Transcript MediaType = "transcript"
	Podcast    MediaType = "podcast"
	PDF        MediaType = "pdf"
)

func (m MediaType) plural() string {
	switch m {
	case Video:
		return "videos"
	case Transcript:
		return "transcripts"
	case Podcast:
		return "podcasts"
	case PDF:
		return "pdfs"
	default:
		return string(m) + "s"
	}
}

// Week is the {year, isoWeek} pair every archived file's directory is
// keyed by.
type Week struct {
	Year int
	Week int
}

// WeekOf computes ISO-8601 week numbering (Monday-first, week 1 contains
// January 4th) for t. Pure function of t's calendar date.
func WeekOf(t time.Time) Week {
	year, week := t.ISOWeek()
	return Week{Year: year, Week: week}
}

// BinPath returns the directory a file of the given mediaType archived
// in week w belongs in. Pure function of (w, mediaType).
func BinPath(w Week, mediaType MediaType) string {
	return filepath.Join(config.DataDir, "media",
		fmt.Sprintf("%d-W%02d", w.Year, w.Week), mediaType.plural())
}

var nonDescriptiveSlugs = map[string]bool{
	"item": true, "comments": true, "post": true, "p": true,
	"a": true, "article": true, "story": true, "s": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
var collapseDashes = regexp.MustCompile(`-+`)

// SaveOptions parameterizes SavePdf's filename derivation and rerun
// handling.
type SaveOptions struct {
	Title         string
	BookmarkedAt  time.Time
	OldFilePath   string
	DirectArticle bool // true when C3 fell back to a "direct article" capture
}

// baseNameFromURL derives the human-readable base filename from a URL,
// falling back to the host followed by a slugified title when the URL's
// last path segment is non-descriptive (spec's "item", "post", "a", etc.
// token list).
func baseNameFromURL(rawURL, title string, directArticle bool) string {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimSuffix(u, "/")
	name := strings.ReplaceAll(u, "/", "-")

	segments := strings.Split(u, "/")
	lastSegment := ""
	if len(segments) > 0 {
		lastSegment = segments[len(segments)-1]
	}

	if (lastSegment == "" || nonDescriptiveSlugs[strings.ToLower(lastSegment)]) && title != "" {
		name = segments[0] + "-" + slugify(title)
	}

	if strings.Contains(u, "x.com/") || strings.Contains(u, "twitter.com/") {
		replacement := "post"
		if directArticle {
			replacement = "article"
		}
		name = strings.ReplaceAll(name, "status", replacement)
	}

	return name
}

func slugify(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, "'", "")
	s = regexp.MustCompile(`[^a-z0-9\s]+`).ReplaceAllString(s, "")
	s = regexp.MustCompile(`\s+`).ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

func sanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "-")
	s = collapseDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// EmbedMetadataFunc embeds PDF Subject/Producer metadata into raw PDF
// bytes and returns the updated bytes. Implemented in the quality
// package's pdfcpu wrapper and injected here to avoid a binstore -> pdf
// library dependency cycle with the quality package's own pdfcpu use.
type EmbedMetadataFunc func(pdfBytes []byte, subject, producer string) ([]byte, error)

// SavePdf embeds metadata, computes the destination week bucket, derives
// a sanitized filename, writes the file, and — if opts.OldFilePath names
// a different resolved path — deletes the stale file only after the new
// one is confirmed written.
func SavePdf(pdfBytes []byte, originalURL string, opts SaveOptions, embed EmbedMetadataFunc) (string, error) {
	producer := fmt.Sprintf("bookmarkforge capture %s", time.Now().UTC().Format(time.RFC3339))
	embedded, err := embed(pdfBytes, originalURL, producer)
	if err != nil {
		slog.Warn("failed to embed pdf metadata, saving unembedded bytes", "error", err)
		embedded = pdfBytes
	}

	bookmarkedAt := opts.BookmarkedAt
	if bookmarkedAt.IsZero() {
		bookmarkedAt = time.Now()
	}
	dir := BinPath(WeekOf(bookmarkedAt), PDF)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bin dir: %w", err)
	}

	base := baseNameFromURL(originalURL, opts.Title, opts.DirectArticle)
	filename := sanitizeFilename(base) + ".pdf"
	destPath := filepath.Join(dir, filename)

	if err := os.WriteFile(destPath, embedded, 0o644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	if opts.OldFilePath != "" {
		if err := DeleteIfDifferent(opts.OldFilePath, destPath); err != nil {
			slog.Warn("failed to remove stale file after rerun", "old_path", opts.OldFilePath, "error", err)
		}
	}

	abs, err := filepath.Abs(destPath)
	if err != nil {
		return destPath, nil
	}
	return abs, nil
}

// DeleteIfDifferent resolves both paths absolutely and unlinks oldPath
// only when it differs from newPath. A missing oldPath is not an error;
// permission errors are logged and swallowed, matching the spec's
// "reruns must never fail because cleanup failed" invariant.
func DeleteIfDifferent(oldPath, newPath string) error {
	oldAbs, err := filepath.Abs(oldPath)
	if err != nil {
		return fmt.Errorf("resolve old path: %w", err)
	}
	newAbs, err := filepath.Abs(newPath)
	if err != nil {
		return fmt.Errorf("resolve new path: %w", err)
	}
	if oldAbs == newAbs {
		return nil
	}
	if err := os.Remove(oldAbs); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		slog.Warn("failed to delete stale file", "path", oldAbs, "error", err)
		return nil
	}
	return nil
}

// SaveMedia writes raw media bytes (non-PDF: video/transcript/podcast
// audio) to the weekly bin with idempotent rename-into-place semantics,
// used by C9 and C10.
func SaveMedia(tempPath string, mediaType MediaType, bookmarkedAt time.Time, baseName, extension string) (string, error) {
	if bookmarkedAt.IsZero() {
		bookmarkedAt = time.Now()
	}
	dir := BinPath(WeekOf(bookmarkedAt), mediaType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create bin dir: %w", err)
	}
	filename := sanitizeFilename(baseName) + extension
	destPath := filepath.Join(dir, filename)

	if info, err := os.Stat(destPath); err == nil {
		if info.Size() > 0 {
			return destPath, nil
		}
		os.Remove(destPath)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		return "", fmt.Errorf("move media into place: %w", err)
	}
	return destPath, nil
}
