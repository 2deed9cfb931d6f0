package feed

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// conditionalTransport wraps the default transport to attach
// If-None-Match / If-Modified-Since headers and capture whether the
// upstream responded 304, since gofeed's own Client hook has no
// conditional-GET support of its own.
type conditionalTransport struct {
	base             http.RoundTripper
	etag             string
	lastModified     string
	notModified      bool
	respETag         string
	respLastModified string
}

func (t *conditionalTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.etag != "" {
		req.Header.Set("If-None-Match", t.etag)
	}
	if t.lastModified != "" {
		req.Header.Set("If-Modified-Since", t.lastModified)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.notModified = resp.StatusCode == http.StatusNotModified
	t.respETag = resp.Header.Get("ETag")
	t.respLastModified = resp.Header.Get("Last-Modified")
	return resp, nil
}

// PollRSS fetches source's RSS feed with conditional headers from the
// previous poll's cache entry. Returns (items, newCache, nil) on a
// fresh 200 response; on 304 it returns (nil, cache unchanged, nil).
func PollRSS(feedURL, source string, cache CacheEntry) ([]BookmarkItem, CacheEntry, error) {
	transport := &conditionalTransport{base: http.DefaultTransport, etag: cache.ETag, lastModified: cache.LastModified}
	client := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	parser := gofeed.NewParser()
	parser.Client = client

	parsed, err := parser.ParseURL(feedURL)
	if transport.notModified {
		return nil, cache, nil
	}
	if err != nil {
		return nil, cache, fmt.Errorf("parse rss feed %s: %w", source, err)
	}

	newCache := CacheEntry{ETag: transport.respETag, LastModified: transport.respLastModified}
	items := make([]BookmarkItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item := BookmarkItem{
			OriginalURL:  entry.Link,
			CanonicalURL: entry.Link,
			GUID:         guidOf(entry),
			Source:       source,
			Title:        entry.Title,
		}
		if entry.PublishedParsed != nil {
			item.BookmarkedAt = *entry.PublishedParsed
		}
		if len(entry.Enclosures) > 0 {
			enc := entry.Enclosures[0]
			if strings.EqualFold(enc.Type, "application/pdf") {
				item.MediaType = MediaTranscript
				item.Enclosure = &Enclosure{URL: enc.URL, MimeType: enc.Type}
			}
		}
		items = append(items, item)
	}
	return items, newCache, nil
}

func guidOf(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	return entry.Link
}
