// Package dedup implements URL canonicalization and the two-level
// deduplication (per-feed guid, global canonical URL) the feed poller
// relies on to enqueue each bookmark at most once.
package dedup

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var utmParam = regexp.MustCompile(`(?i)^utm_\w+`)

var trackingParams = map[string]bool{
	"ref":      true,
	"source":   true,
	"fbclid":   true,
	"gclid":    true,
	"msclkid":  true,
}

// Canonicalize normalizes a URL for deduplication purposes. It is a pure
// function and idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""

	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.Path == "" {
		u.Path = ""
	}

	if u.RawQuery != "" {
		values := u.Query()
		for key := range values {
			if utmParam.MatchString(key) || trackingParams[strings.ToLower(key)] {
				values.Del(key)
			}
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			vs := values[k]
			sort.Strings(vs)
			for _, v := range vs {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	return u.String()
}

// Store backs isGuidSeen/markGuidSeen and isUrlSeen/markUrlSeen with
// atomic Redis set operations, so concurrent feed pollers never need a
// separate single-writer lock.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func guidSetKey(source string) string {
	return fmt.Sprintf("feed:guids:%s", source)
}

const seenURLSet = "bookmarks:seen-urls"

func provenanceKey(canonicalURL string) string {
	return fmt.Sprintf("bookmark:%s", canonicalURL)
}

// IsGuidSeen reports whether guid has already been marked seen for source.
func (s *Store) IsGuidSeen(ctx context.Context, source, guid string) (bool, error) {
	return s.client.SIsMember(ctx, guidSetKey(source), guid).Result()
}

// MarkGuidSeen marks guid seen for source. Once marked it is never
// processed again by that source, even across restarts.
func (s *Store) MarkGuidSeen(ctx context.Context, source, guid string) error {
	return s.client.SAdd(ctx, guidSetKey(source), guid).Err()
}

// IsURLSeen reports whether canonicalURL is already in the global seen set.
func (s *Store) IsURLSeen(ctx context.Context, canonicalURL string) (bool, error) {
	return s.client.SIsMember(ctx, seenURLSet, canonicalURL).Result()
}

// MarkURLSeen adds canonicalURL to the global seen set and records
// (source, firstSeenAt) provenance keyed by the canonical URL.
func (s *Store) MarkURLSeen(ctx context.Context, canonicalURL, source string) error {
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, seenURLSet, canonicalURL)
	pipe.HSetNX(ctx, provenanceKey(canonicalURL), "source", source)
	pipe.HSetNX(ctx, provenanceKey(canonicalURL), "first_seen_at", time.Now().Format(time.RFC3339))
	_, err := pipe.Exec(ctx)
	return err
}
