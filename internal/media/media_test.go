package media

import (
	"errors"
	"testing"

	"bookmarkforge/internal/binstore"
	"bookmarkforge/internal/classify"
)

func TestExtensionForFromURL(t *testing.T) {
	job := Job{URL: "https://cdn.example.com/video.webm?x=1", MediaType: binstore.Video}
	if ext := extensionFor(job, ""); ext != ".webm" {
		t.Errorf("expected .webm, got %q", ext)
	}
}

func TestExtensionForFromContentType(t *testing.T) {
	job := Job{URL: "https://cdn.example.com/api/assets/1", MediaType: binstore.Video}
	if ext := extensionFor(job, "video/mp4"); ext != ".mp4" {
		t.Errorf("expected .mp4, got %q", ext)
	}
}

func TestExtensionForDefaultByMediaType(t *testing.T) {
	job := Job{URL: "https://cdn.example.com/api/assets/1", MediaType: binstore.Podcast}
	if ext := extensionFor(job, ""); ext != ".mp3" {
		t.Errorf("expected .mp3 default for podcast, got %q", ext)
	}
}

func TestClassifyDownloadErrorFileMissing(t *testing.T) {
	f := classifyDownloadError(errFileMissing)
	if f.Kind != classify.MissingContent {
		t.Errorf("expected MissingContent, got %s", f.Kind)
	}
}

func TestClassifyDownloadErrorOther(t *testing.T) {
	f := classifyDownloadError(errors.New("connection reset"))
	if f.Kind != classify.Unknown {
		t.Errorf("expected Unknown, got %s", f.Kind)
	}
}

func TestIsAssetHost(t *testing.T) {
	if !isAssetHost("https://api.example.com/api/assets/5") {
		t.Error("expected asset host URL to be recognized")
	}
	if isAssetHost("https://cdn.example.com/video.mp4") {
		t.Error("expected a plain CDN URL to not be recognized as an asset host")
	}
}

func TestBaseNameForFallsBackToHostname(t *testing.T) {
	job := Job{OriginalURL: "https://example.com/post/1"}
	if got := baseNameFor(job); got != "example.com" {
		t.Errorf("expected hostname fallback, got %q", got)
	}
}
