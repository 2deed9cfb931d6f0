package feed

import "testing"

func TestBearerTokenFromURL(t *testing.T) {
	token := bearerTokenFromURL("https://api.example.com/feed?token=abc123&limit=50")
	if token != "abc123" {
		t.Errorf("expected token abc123, got %q", token)
	}
}

func TestBearerTokenFromURLMissing(t *testing.T) {
	token := bearerTokenFromURL("https://api.example.com/feed")
	if token != "" {
		t.Errorf("expected empty token, got %q", token)
	}
}

func TestEntryToBookmarkItemPDFAsset(t *testing.T) {
	entry := jsonEntry{
		GUID:  "guid-1",
		URL:   "https://api.example.com/api/assets/1",
		Title: "a report",
		Content: jsonContent{
			Type:  "asset",
			Asset: &jsonAsset{Type: "pdf", URL: "https://cdn.example.com/a.pdf"},
		},
	}
	item := entryToBookmarkItem(entry, "json-api")
	if item.MediaType != MediaPDF {
		t.Errorf("expected pdf media type, got %s", item.MediaType)
	}
	if item.CanonicalURL != "https://cdn.example.com/a.pdf" {
		t.Errorf("expected canonical URL to be the asset URL, got %q", item.CanonicalURL)
	}
}

func TestEntryToBookmarkItemVideoAsset(t *testing.T) {
	entry := jsonEntry{
		GUID: "guid-2",
		URL:  "https://api.example.com/link/2",
		Content: jsonContent{
			Type:  "asset",
			Asset: &jsonAsset{Type: "video", URL: "https://cdn.example.com/v.mp4"},
		},
	}
	item := entryToBookmarkItem(entry, "json-api")
	if item.MediaType != MediaVideo {
		t.Errorf("expected video media type, got %s", item.MediaType)
	}
}

func TestEntryToBookmarkItemPlainLink(t *testing.T) {
	entry := jsonEntry{GUID: "guid-3", URL: "https://example.com/post", Content: jsonContent{Type: "link"}}
	item := entryToBookmarkItem(entry, "json-api")
	if item.MediaType != "" {
		t.Errorf("expected no media type for a plain link, got %s", item.MediaType)
	}
	if item.Enclosure != nil {
		t.Error("expected no enclosure for a plain link")
	}
}
