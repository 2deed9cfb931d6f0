package dedup

import "testing"

func TestCanonicalizeIdempotent(t *testing.T) {
	urls := []string{
		"https://www.example.com/article/",
		"https://example.com/article?utm_source=twitter&b=2&a=1",
		"http://example.com/#fragment",
		"https://example.com/post?ref=newsletter&fbclid=abc123",
	}
	for _, u := range urls {
		once := Canonicalize(u)
		twice := Canonicalize(once)
		if once != twice {
			t.Errorf("canonicalize not idempotent for %q: %q != %q", u, once, twice)
		}
	}
}

func TestCanonicalizeStripsWWW(t *testing.T) {
	withWWW := "https://www.example.com/article"
	withoutWWW := "https://example.com/article"
	if Canonicalize(withWWW) != Canonicalize(withoutWWW) {
		t.Errorf("expected www and non-www variants to canonicalize identically: %q vs %q",
			Canonicalize(withWWW), Canonicalize(withoutWWW))
	}
}

func TestCanonicalizeStripsTrackingParams(t *testing.T) {
	got := Canonicalize("https://example.com/post?utm_campaign=x&gclid=y&keep=1")
	want := Canonicalize("https://example.com/post?keep=1")
	if got != want {
		t.Errorf("tracking params not stripped: got %q want %q", got, want)
	}
}

func TestCanonicalizeSortsQueryParams(t *testing.T) {
	a := Canonicalize("https://example.com/post?b=2&a=1")
	b := Canonicalize("https://example.com/post?a=1&b=2")
	if a != b {
		t.Errorf("expected query param order to not matter: %q vs %q", a, b)
	}
}
