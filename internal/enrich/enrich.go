// Package enrich implements C7: optional web-page metadata extraction
// and routing of each bookmark item to the conversion, media, or podcast
// queue.
package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bookmarkforge/internal/feed"
)

const browserLikeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Metadata is what FetchMetadata extracts from a page's Open Graph,
// JSON-LD, and Twitter Card markup.
type Metadata struct {
	Title       string
	Author      string
	Description string
	Image       string
	Publisher   string
	PublishedAt string
}

// IsAssetURL reports whether url points directly at a pre-rendered
// asset rather than a web page worth enriching.
func IsAssetURL(rawURL string) bool {
	return strings.Contains(rawURL, "/api/assets/")
}

// FetchMetadata fetches rawURL with a browser-like UA and a 15s timeout,
// extracting whatever Open Graph / JSON-LD / Twitter Card fields are
// present. On any failure it returns minimal metadata (title = hostname)
// rather than propagating the error — enrichment is optional and must
// never block routing.
func FetchMetadata(ctx context.Context, rawURL string) Metadata {
	hostname := hostnameOf(rawURL)
	minimal := Metadata{Title: hostname}

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return minimal
	}
	req.Header.Set("User-Agent", browserLikeUA)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return minimal
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return minimal
	}

	meta := Metadata{}
	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		switch prop {
		case "og:title":
			meta.Title = content
		case "og:description":
			meta.Description = content
		case "og:image":
			meta.Image = content
		case "og:site_name":
			meta.Publisher = content
		}
	})
	doc.Find(`meta[name^="twitter:"]`).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		if meta.Title == "" && name == "twitter:title" {
			meta.Title = content
		}
		if meta.Description == "" && name == "twitter:description" {
			meta.Description = content
		}
		if meta.Image == "" && name == "twitter:image" {
			meta.Image = content
		}
	})
	doc.Find(`meta[name="author"]`).Each(func(_ int, s *goquery.Selection) {
		if meta.Author == "" {
			meta.Author, _ = s.Attr("content")
		}
	})
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		mergeJSONLD(&meta, s.Text())
	})
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if meta.Title == "" {
		meta.Title = hostname
	}
	return meta
}

// jsonLDNode covers the handful of schema.org Article/NewsArticle fields
// worth scraping. Author and publisher are both frequently either a bare
// string or an object carrying a "name" field, so both are decoded as
// raw JSON and resolved by jsonLDName.
type jsonLDNode struct {
	Type          string          `json:"@type"`
	Headline      string          `json:"headline"`
	Name          string          `json:"name"`
	Author        json.RawMessage `json:"author"`
	Publisher     json.RawMessage `json:"publisher"`
	DatePublished string          `json:"datePublished"`
	DateCreated   string          `json:"dateCreated"`
	Image         json.RawMessage `json:"image"`
	Graph         []jsonLDNode    `json:"@graph"`
}

// mergeJSONLD parses one <script type="application/ld+json"> block and
// fills in whatever meta fields are still empty. Malformed or irrelevant
// blocks (many pages carry unrelated JSON-LD, e.g. BreadcrumbList) are
// silently skipped — JSON-LD extraction is best-effort enrichment, never
// a hard requirement.
func mergeJSONLD(meta *Metadata, raw string) {
	var node jsonLDNode
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		var nodes []jsonLDNode
		if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
			return
		}
		for _, n := range nodes {
			applyJSONLDNode(meta, n)
		}
		return
	}
	applyJSONLDNode(meta, node)
}

func applyJSONLDNode(meta *Metadata, node jsonLDNode) {
	for _, child := range node.Graph {
		applyJSONLDNode(meta, child)
	}
	if meta.Title == "" {
		if node.Headline != "" {
			meta.Title = node.Headline
		} else if node.Name != "" {
			meta.Title = node.Name
		}
	}
	if meta.Author == "" {
		meta.Author = jsonLDName(node.Author)
	}
	if meta.Publisher == "" {
		meta.Publisher = jsonLDName(node.Publisher)
	}
	if meta.Image == "" {
		meta.Image = jsonLDImage(node.Image)
	}
	if meta.PublishedAt == "" {
		if node.DatePublished != "" {
			meta.PublishedAt = node.DatePublished
		} else if node.DateCreated != "" {
			meta.PublishedAt = node.DateCreated
		}
	}
}

// jsonLDName resolves a JSON-LD author/publisher value that may be
// either a bare string ("Jane Doe") or an object ({"name": "Jane Doe"}).
func jsonLDName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if json.Unmarshal(raw, &name) == nil {
		return name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Name
	}
	return ""
}

// jsonLDImage resolves a JSON-LD image value that may be a bare URL
// string, an ImageObject, or an array of either.
func jsonLDImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var url string
	if json.Unmarshal(raw, &url) == nil {
		return url
	}
	var obj struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.URL != "" {
		return obj.URL
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return jsonLDImage(list[0])
	}
	return ""
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// Merge combines web-extracted metadata over the feed-provided item,
// with web fields taking precedence, a "Untitled" default title, and a
// bookmarkedAt default of now().
func Merge(item feed.BookmarkItem, meta Metadata) feed.BookmarkItem {
	if meta.Title != "" {
		item.Title = meta.Title
	}
	if item.Title == "" {
		item.Title = "Untitled"
	}
	if meta.Author != "" {
		item.Author = meta.Author
	}
	if meta.Description != "" {
		item.Description = meta.Description
	}
	if meta.Image != "" {
		item.Image = meta.Image
	}
	if meta.Publisher != "" {
		item.Publisher = meta.Publisher
	}
	if item.PublishedAt.IsZero() && meta.PublishedAt != "" {
		if parsed, err := parsePublishedAt(meta.PublishedAt); err == nil {
			item.PublishedAt = parsed
		}
	}
	if item.BookmarkedAt.IsZero() {
		item.BookmarkedAt = time.Now()
	}
	return item
}

// parsePublishedAt tries the date formats JSON-LD/OpenGraph publishers
// actually use in practice: full RFC3339, RFC3339 without a timezone
// offset, and a bare date.
func parsePublishedAt(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: value}
}

// Route is the routing decision C7 makes after enrichment.
type Route string

const (
	RouteMedia     Route = "media"
	RoutePodcast   Route = "podcast"
	RouteVideoOnly Route = "video_only" // stop: handled only via media collection
	RouteConvert   Route = "convert"
)

var podcastHosts = []string{"podcasts.apple.com", "open.spotify.com/episode", "overcast.fm"}
var videoOnlyHosts = []string{"youtube.com", "youtu.be", "vimeo.com"}

// RouteFor decides where item should be enqueued next.
func RouteFor(item feed.BookmarkItem) Route {
	if item.Enclosure != nil {
		return RouteMedia
	}
	host := hostnameOf(item.OriginalURL)
	for _, h := range podcastHosts {
		if strings.Contains(item.OriginalURL, h) {
			return RoutePodcast
		}
	}
	for _, h := range videoOnlyHosts {
		if strings.Contains(host, h) {
			return RouteVideoOnly
		}
	}
	return RouteConvert
}

