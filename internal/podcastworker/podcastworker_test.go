package podcastworker

import "testing"

func TestParseEpisodeURL(t *testing.T) {
	parsed, err := ParseEpisodeURL("https://podcasts.apple.com/us/podcast/some-show/id123456?i=987654")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Country != "us" || parsed.PodcastID != 123456 || parsed.EpisodeID != 987654 || parsed.Slug != "some-show" {
		t.Errorf("unexpected parse result: %+v", parsed)
	}
}

func TestParseEpisodeURLMissingEpisodeID(t *testing.T) {
	_, err := ParseEpisodeURL("https://podcasts.apple.com/us/podcast/some-show/id123456")
	if err == nil {
		t.Error("expected an error when the i= query parameter is missing")
	}
}

func TestLooksLikeSRT(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:04,000\nHello there.\n"
	if !LooksLikeSRT(srt) {
		t.Error("expected srt-shaped text to be recognized")
	}
	if LooksLikeSRT("just a plain sentence.") {
		t.Error("expected plain text to not be recognized as srt")
	}
}

func TestStripSRT(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:04,000\nHello there.\n\n2\n00:00:04,000 --> 00:00:06,000\nHow are you?\n"
	stripped := StripSRT(srt)
	if stripped == srt {
		t.Error("expected stripSRT to transform the input")
	}
	if contains := (stripped != "" && !containsDigitColon(stripped)); !contains {
		t.Error("expected timestamps to be removed")
	}
}

func containsDigitColon(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' && s[i+1] == ':' {
			return true
		}
	}
	return false
}

func TestChunkTranscriptSplitsLongParagraphs(t *testing.T) {
	long := ""
	for i := 0; i < 2000; i++ {
		long += "This is a sentence. "
	}
	chunks := ChunkTranscript(long)
	if len(chunks) < 2 {
		t.Errorf("expected long transcript to split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > maxChunkChars+1000 {
			t.Errorf("chunk exceeds expected bound: %d chars", len(c))
		}
	}
}

func TestSanitizeForPDF(t *testing.T) {
	input := "smart ‘quotes’ and — dashes … and a zero​width"
	out := sanitizeForPDF(input)
	if out == input {
		t.Error("expected sanitizeForPDF to transform the input")
	}
	for _, r := range out {
		if r > 0xFF {
			t.Errorf("expected no runes above Latin-1 in sanitized output, found %q", r)
		}
	}
}

func TestSharedBaseName(t *testing.T) {
	name := sharedBaseName("Some Show!", "Episode One: The Beginning")
	if name != "some-show-episode-one-the-beginning" {
		t.Errorf("unexpected base name: %q", name)
	}
}
