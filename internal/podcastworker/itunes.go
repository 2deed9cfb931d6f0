package podcastworker

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bookmarkforge/internal/config"
)

// EpisodeMetadata is the iTunes lookup record for one podcast episode.
type EpisodeMetadata struct {
	TrackID        int
	TrackName      string
	CollectionName string
	ArtistName     string
	ReleaseDate    string
	TrackTimeMS    int
	Genre          string
	FeedURL        string
	EpisodeURL     string
}

type itunesLookupResponse struct {
	ResultCount int               `json:"resultCount"`
	Results     []itunesResultRaw `json:"results"`
}

type itunesResultRaw struct {
	WrapperType      string `json:"wrapperType"`
	Kind             string `json:"kind"`
	TrackID          int    `json:"trackId"`
	TrackName        string `json:"trackName"`
	CollectionName   string `json:"collectionName"`
	ArtistName       string `json:"artistName"`
	ReleaseDate      string `json:"releaseDate"`
	TrackTimeMillis  int    `json:"trackTimeMillis"`
	PrimaryGenreName string `json:"primaryGenreName"`
	FeedURL          string `json:"feedUrl"`
	EpisodeURL       string `json:"episodeUrl"`
}

// LookupEpisode queries the iTunes lookup API for podcastID with
// entity=podcastEpisode and limit=200, then locates the episode whose
// trackId matches episodeID. Per the spec, episodes beyond the first
// batch are not searched for — a failure here is worth surfacing
// rather than silently paging further.
func LookupEpisode(ctx context.Context, podcastID, episodeID int) (EpisodeMetadata, error) {
	reqURL := fmt.Sprintf("%s?id=%d&media=podcast&entity=podcastEpisode&limit=200",
		config.ITunesLookupURL, podcastID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return EpisodeMetadata{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return EpisodeMetadata{}, fmt.Errorf("itunes lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return EpisodeMetadata{}, fmt.Errorf("itunes lookup returned status %d", resp.StatusCode)
	}

	var parsed itunesLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return EpisodeMetadata{}, fmt.Errorf("decode itunes response: %w", err)
	}

	var feedURL string
	for _, r := range parsed.Results {
		if r.WrapperType == "track" && r.Kind == "podcast" {
			feedURL = r.FeedURL
		}
	}

	for _, r := range parsed.Results {
		if r.TrackID == episodeID {
			return EpisodeMetadata{
				TrackID: r.TrackID, TrackName: r.TrackName, CollectionName: r.CollectionName,
				ArtistName: r.ArtistName, ReleaseDate: r.ReleaseDate, TrackTimeMS: r.TrackTimeMillis,
				Genre: r.PrimaryGenreName, FeedURL: feedURL, EpisodeURL: r.EpisodeURL,
			}, nil
		}
	}

	return EpisodeMetadata{}, fmt.Errorf("episode %d not found in first %d results for podcast %d", episodeID, len(parsed.Results), podcastID)
}

// ShowNotesLink is one link surfaced in an episode's show notes.
type ShowNotesLink struct {
	Text   string
	URL    string
	Source string
}

// ShowNotes is the parsed body of an episode's description, matched by
// title against the podcast's RSS feed; item GUIDs are not compared.
type ShowNotes struct {
	Summary string
	Links   []ShowNotesLink
	Footer  string
}

type podcastRSS struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			GUID        string `xml:"guid"`
			Description string `xml:"description"`
		} `xml:"item"`
	} `xml:"channel"`
}

// FetchShowNotes downloads and parses feedURL, then locates the item
// matching episodeTitle (case-insensitive, trimmed) and extracts its
// description into a ShowNotes record. A feed or match failure returns
// an empty ShowNotes rather than an error — show notes are a nice-to-
// have enrichment, not a blocking dependency.
func FetchShowNotes(ctx context.Context, feedURL, episodeTitle string) ShowNotes {
	if feedURL == "" {
		return ShowNotes{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return ShowNotes{}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ShowNotes{}
	}
	defer resp.Body.Close()

	var rss podcastRSS
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return ShowNotes{}
	}

	target := strings.ToLower(strings.TrimSpace(episodeTitle))
	for _, item := range rss.Channel.Items {
		if strings.ToLower(strings.TrimSpace(item.Title)) == target {
			return parseShowNotesDescription(item.Description)
		}
	}
	return ShowNotes{}
}

func parseShowNotesDescription(description string) ShowNotes {
	notes := ShowNotes{Summary: stripHTMLTags(description)}
	matches := extractLinks(description)
	for _, m := range matches {
		notes.Links = append(notes.Links, ShowNotesLink{URL: m[0], Text: m[1]})
	}
	return notes
}

func extractLinks(html string) [][2]string {
	var out [][2]string
	lower := html
	for {
		idx := strings.Index(lower, "<a ")
		if idx < 0 {
			break
		}
		rest := lower[idx:]
		hrefIdx := strings.Index(rest, `href="`)
		if hrefIdx < 0 {
			break
		}
		rest = rest[hrefIdx+len(`href="`):]
		end := strings.Index(rest, `"`)
		if end < 0 {
			break
		}
		href := rest[:end]

		closeTag := strings.Index(rest, ">")
		if closeTag < 0 {
			break
		}
		textPart := rest[closeTag+1:]
		textEnd := strings.Index(textPart, "</a>")
		text := ""
		if textEnd >= 0 {
			text = stripHTMLTags(textPart[:textEnd])
		}
		out = append(out, [2]string{href, text})

		advance := idx + len("<a ") + hrefIdx + len(`href="`) + end
		if advance >= len(lower) {
			break
		}
		lower = lower[advance:]
	}
	return out
}

func stripHTMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch r {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				b.WriteRune(r)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// durationString renders milliseconds as "H:MM:SS" for the PDF header.
func durationString(ms int) string {
	totalSeconds := ms / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

func releaseDateString(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}
