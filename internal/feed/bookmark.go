// Package feed implements conditional polling of the two recognized feed
// sources, parsing each into BookmarkItem, and the two-level dedup +
// fan-out C6 is responsible for.
package feed

import "time"

// MediaType mirrors binstore.MediaType's values without importing the
// binstore package — feed items are produced before any archival
// decision is made, and C7 is the one place that maps one to the other.
type MediaType string

const (
	MediaVideo      MediaType = "video"
	MediaTranscript MediaType = "transcript"
	MediaPodcast    MediaType = "podcast"
	MediaPDF        MediaType = "pdf"
)

// Enclosure is an attached media reference discovered in the feed entry
// itself (as opposed to one discovered later by enrichment).
type Enclosure struct {
	URL      string
	MimeType string
	Length   int64
}

// BookmarkItem is one feed entry, carrying both the original and
// canonicalized URL together per the spec's invariant that the two must
// never be separated.
type BookmarkItem struct {
	OriginalURL  string
	CanonicalURL string
	GUID         string
	Source       string
	Title        string
	Creator      string
	BookmarkedAt time.Time

	Author      string
	Description string
	Image       string
	Publisher   string
	PublishedAt time.Time

	Enclosure *Enclosure
	MediaType MediaType
}
