// Package podcastworker implements C10, podcast episode transcription:
// URL parsing, iTunes metadata + show-notes lookup, ASR transcription,
// LLM reformatting, and PDF synthesis.
package podcastworker

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParsedURL is the {country, podcastId, episodeId, slug} tuple extracted
// from an Apple Podcasts episode URL, e.g.
// https://podcasts.apple.com/us/podcast/some-show/id123456?i=987654
type ParsedURL struct {
	Country    string
	PodcastID  int
	EpisodeID  int
	Slug       string
}

// ParseEpisodeURL extracts the podcast and episode identifiers from an
// Apple Podcasts URL. The path shape is
// /{country}/podcast/{slug}/id{podcastId}, with the episode id carried
// in the `i` query parameter.
func ParseEpisodeURL(rawURL string) (ParsedURL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ParsedURL{}, fmt.Errorf("parse url: %w", err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 4 || segments[1] != "podcast" {
		return ParsedURL{}, fmt.Errorf("unrecognized podcast url shape: %s", rawURL)
	}

	country := segments[0]
	slug := segments[2]
	idSegment := segments[3]
	if !strings.HasPrefix(idSegment, "id") {
		return ParsedURL{}, fmt.Errorf("missing podcast id segment in url: %s", rawURL)
	}
	podcastID, err := strconv.Atoi(strings.TrimPrefix(idSegment, "id"))
	if err != nil {
		return ParsedURL{}, fmt.Errorf("invalid podcast id: %w", err)
	}

	episodeParam := u.Query().Get("i")
	if episodeParam == "" {
		return ParsedURL{}, fmt.Errorf("missing episode id query parameter in url: %s", rawURL)
	}
	episodeID, err := strconv.Atoi(episodeParam)
	if err != nil {
		return ParsedURL{}, fmt.Errorf("invalid episode id: %w", err)
	}

	return ParsedURL{Country: country, PodcastID: podcastID, EpisodeID: episodeID, Slug: slug}, nil
}
