package podcastworker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookmarkforge/internal/binstore"
	"bookmarkforge/internal/classify"
	"bookmarkforge/internal/events"
)

// Job is the PodcastJob entity from the data model.
type Job struct {
	ID           string
	URL          string
	BookmarkedAt time.Time
}

// Result is the PodcastResult entity returned on success.
type Result struct {
	PDFPath     string
	AudioPath   string
	CompletedAt time.Time
}

// Worker runs the full C10 protocol at concurrency 1: URL parse, iTunes
// + show-notes lookup, audio download + ASR, LLM reformatting, PDF
// synthesis, and archive.
type Worker struct {
	Bus *events.Bus
}

func NewWorker(bus *events.Bus) *Worker {
	return &Worker{Bus: bus}
}

func (w *Worker) Handle(ctx context.Context, job Job, attemptsMade, maxAttempts int) (*Result, error) {
	w.Bus.Publish(events.PodcastStarted, map[string]any{"job_id": job.ID, "url": job.URL})
	w.progress(job.ID, 10)

	parsed, err := ParseEpisodeURL(job.URL)
	if err != nil {
		failure := classify.New(classify.Unknown, err.Error())
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	episode, err := LookupEpisode(ctx, parsed.PodcastID, parsed.EpisodeID)
	if err != nil {
		failure := classify.New(classify.MissingContent, err.Error())
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}
	notes := FetchShowNotes(ctx, episode.FeedURL, episode.TrackName)
	w.progress(job.ID, 20)

	if episode.EpisodeURL == "" {
		failure := classify.New(classify.MissingContent, "episode has no audio enclosure")
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	tempAudioPath := filepath.Join(os.TempDir(), fmt.Sprintf("podcast-audio-%s%s", job.ID, audioExtension(episode.EpisodeURL)))
	if err := DownloadAudio(ctx, episode.EpisodeURL, tempAudioPath); err != nil {
		failure := classify.New(classify.NavigationError, err.Error())
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}
	defer os.Remove(tempAudioPath)

	rawText, err := Transcribe(ctx, tempAudioPath)
	if err != nil {
		failure := classify.New(classify.Unknown, err.Error())
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}
	if LooksLikeSRT(rawText) {
		rawText = StripSRT(rawText)
	}
	w.progress(job.ID, 60)

	brandNames := brandNamesFrom(episode, notes)
	formatted := Reformat(ctx, rawText, episode.TrackName, brandNames)
	w.progress(job.ID, 85)

	pdfBytes, err := SynthesizePDF(PDFMeta{
		PodcastName: episode.CollectionName,
		EpisodeName: episode.TrackName,
		Host:        episode.ArtistName,
		Genre:       episode.Genre,
		Duration:    durationString(episode.TrackTimeMS),
		ReleaseDate: releaseDateString(episode.ReleaseDate),
		SourceURL:   job.URL,
		Author:      episode.ArtistName,
	}, notes, formatted)
	if err != nil {
		failure := classify.New(classify.Unknown, fmt.Sprintf("pdf synthesis failed: %v", err))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}
	w.progress(job.ID, 90)

	baseName := sharedBaseName(parsed.Slug, episode.TrackName)
	dir := binstore.BinPath(binstore.WeekOf(weekAnchor(job.BookmarkedAt)), binstore.Podcast)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		failure := classify.New(classify.Unknown, fmt.Sprintf("create bin dir failed: %v", err))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	pdfPath := filepath.Join(dir, baseName+".pdf")
	if err := os.WriteFile(pdfPath, pdfBytes, 0o644); err != nil {
		failure := classify.New(classify.Unknown, fmt.Sprintf("write pdf failed: %v", err))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	audioPath, err := binstore.SaveMedia(tempAudioPath, binstore.Podcast, job.BookmarkedAt, baseName, audioExtension(episode.EpisodeURL))
	if err != nil {
		failure := classify.New(classify.Unknown, fmt.Sprintf("save audio failed: %v", err))
		w.fail(job, failure, attemptsMade, maxAttempts)
		return nil, failure
	}

	w.progress(job.ID, 100)
	res := &Result{PDFPath: pdfPath, AudioPath: audioPath, CompletedAt: time.Now()}
	w.Bus.Publish(events.PodcastCompleted, map[string]any{
		"job_id": job.ID, "url": job.URL, "pdf_path": res.PDFPath, "audio_path": res.AudioPath,
	})
	return res, nil
}

func weekAnchor(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func (w *Worker) progress(jobID string, pct int) {
	w.Bus.Publish(events.PodcastProgress, map[string]any{"job_id": jobID, "progress": pct})
}

func (w *Worker) fail(job Job, err error, attemptsMade, maxAttempts int) {
	if attemptsMade < maxAttempts {
		return
	}
	w.Bus.Publish(events.PodcastFailed, map[string]any{
		"job_id": job.ID, "url": job.URL, "failure_reason": err.Error(),
		"attempts_made": attemptsMade, "max_attempts": maxAttempts,
	})
}

func audioExtension(episodeURL string) string {
	ext := filepath.Ext(strings.SplitN(episodeURL, "?", 2)[0])
	if ext == "" {
		return ".mp3"
	}
	return ext
}

func sharedBaseName(slug, episodeName string) string {
	podcastSlug := slugifyBase(slug)
	episodeSlug := slugifyBase(episodeName)
	return podcastSlug + "-" + episodeSlug
}

func slugifyBase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 50 {
		out = out[:50]
	}
	return out
}

func brandNamesFrom(episode EpisodeMetadata, notes ShowNotes) []string {
	names := []string{episode.CollectionName, episode.ArtistName}
	for _, link := range notes.Links {
		if link.Source != "" {
			names = append(names, link.Source)
		}
	}
	return names
}
