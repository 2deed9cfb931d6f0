package enrich

import (
	"testing"
	"time"

	"bookmarkforge/internal/feed"
)

func TestIsAssetURL(t *testing.T) {
	if !IsAssetURL("https://api.example.com/api/assets/123") {
		t.Error("expected asset URL to be recognized")
	}
	if IsAssetURL("https://example.com/article") {
		t.Error("expected a regular page URL to not be recognized as an asset")
	}
}

func TestMergeDefaultsTitle(t *testing.T) {
	item := feed.BookmarkItem{OriginalURL: "https://example.com/x"}
	merged := Merge(item, Metadata{})
	if merged.Title != "Untitled" {
		t.Errorf("expected default title Untitled, got %q", merged.Title)
	}
	if merged.BookmarkedAt.IsZero() {
		t.Error("expected bookmarkedAt to default to now")
	}
}

func TestMergeWebFieldsTakePrecedence(t *testing.T) {
	item := feed.BookmarkItem{OriginalURL: "https://example.com/x", Title: "feed title"}
	merged := Merge(item, Metadata{Title: "web title"})
	if merged.Title != "web title" {
		t.Errorf("expected web-extracted title to win, got %q", merged.Title)
	}
}

func TestMergeWiresPublishedAt(t *testing.T) {
	item := feed.BookmarkItem{OriginalURL: "https://example.com/x"}
	merged := Merge(item, Metadata{PublishedAt: "2024-03-05T12:00:00Z"})
	want := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	if !merged.PublishedAt.Equal(want) {
		t.Errorf("expected publishedAt %s, got %s", want, merged.PublishedAt)
	}
}

func TestMergeKeepsExistingPublishedAt(t *testing.T) {
	existing := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	item := feed.BookmarkItem{OriginalURL: "https://example.com/x", PublishedAt: existing}
	merged := Merge(item, Metadata{PublishedAt: "2024-03-05T12:00:00Z"})
	if !merged.PublishedAt.Equal(existing) {
		t.Errorf("expected feed-supplied publishedAt to win, got %s", merged.PublishedAt)
	}
}

func TestMergeJSONLDArticleFields(t *testing.T) {
	var meta Metadata
	mergeJSONLD(&meta, `{
		"@context": "https://schema.org",
		"@type": "NewsArticle",
		"headline": "JSON-LD Headline",
		"author": {"@type": "Person", "name": "Jane Doe"},
		"publisher": "Example News",
		"datePublished": "2024-03-05T12:00:00Z",
		"image": "https://example.com/og.png"
	}`)
	if meta.Title != "JSON-LD Headline" {
		t.Errorf("expected headline to populate Title, got %q", meta.Title)
	}
	if meta.Author != "Jane Doe" {
		t.Errorf("expected author object name to resolve, got %q", meta.Author)
	}
	if meta.Publisher != "Example News" {
		t.Errorf("expected bare-string publisher to resolve, got %q", meta.Publisher)
	}
	if meta.PublishedAt != "2024-03-05T12:00:00Z" {
		t.Errorf("expected datePublished to populate PublishedAt, got %q", meta.PublishedAt)
	}
	if meta.Image != "https://example.com/og.png" {
		t.Errorf("expected bare-string image to resolve, got %q", meta.Image)
	}
}

func TestMergeJSONLDIgnoresUnrelatedBlock(t *testing.T) {
	var meta Metadata
	mergeJSONLD(&meta, `{"@type": "BreadcrumbList", "itemListElement": []}`)
	if meta.Title != "" || meta.PublishedAt != "" {
		t.Errorf("expected unrelated JSON-LD block to contribute nothing, got %+v", meta)
	}
}

func TestMergeJSONLDMalformedIsIgnored(t *testing.T) {
	var meta Metadata
	mergeJSONLD(&meta, `not json at all`)
	if meta.Title != "" {
		t.Errorf("expected malformed JSON-LD to be silently ignored, got %+v", meta)
	}
}

func TestRouteForMediaEnclosure(t *testing.T) {
	item := feed.BookmarkItem{Enclosure: &feed.Enclosure{URL: "https://cdn.example.com/a.pdf"}}
	if RouteFor(item) != RouteMedia {
		t.Error("expected an item with an enclosure to route to media")
	}
}

func TestRouteForPodcast(t *testing.T) {
	item := feed.BookmarkItem{OriginalURL: "https://podcasts.apple.com/us/podcast/x/id123?i=456"}
	if RouteFor(item) != RoutePodcast {
		t.Error("expected a podcast platform URL to route to podcast")
	}
}

func TestRouteForVideoOnly(t *testing.T) {
	item := feed.BookmarkItem{OriginalURL: "https://www.youtube.com/watch?v=abc"}
	if RouteFor(item) != RouteVideoOnly {
		t.Error("expected a video-only host to route to video_only")
	}
}

func TestRouteForConvert(t *testing.T) {
	item := feed.BookmarkItem{OriginalURL: "https://example.com/article"}
	if RouteFor(item) != RouteConvert {
		t.Error("expected a plain article URL to route to convert")
	}
}
