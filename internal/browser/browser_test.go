package browser

import "testing"

func TestApplyURLRewritesMedium(t *testing.T) {
	got, changed := applyURLRewrites("https://medium.com/@author/post-title?source=rss")
	if !changed {
		t.Error("expected medium.com URL with query string to be marked rewritten")
	}
	if got != "https://medium.com/@author/post-title" {
		t.Errorf("expected tracking query stripped, got %q", got)
	}
}

func TestApplyURLRewritesTradingView(t *testing.T) {
	got, changed := applyURLRewrites("https://www.tradingview.com/chart/AAPL/")
	if !changed {
		t.Error("expected tradingview chart URL to be rewritten")
	}
	if got == "https://www.tradingview.com/chart/AAPL/" {
		t.Error("expected /chart/ to be rewritten to embed form")
	}
}

func TestApplyURLRewritesNoop(t *testing.T) {
	got, changed := applyURLRewrites("https://example.com/article")
	if changed {
		t.Error("expected no rewrite for an unrecognized host")
	}
	if got != "https://example.com/article" {
		t.Errorf("unexpected rewrite of unrelated URL: %q", got)
	}
}
