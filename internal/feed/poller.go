package feed

import (
	"context"
	"fmt"
	"log/slog"

	"bookmarkforge/internal/dedup"
)

// Poller drives one polling tick across every configured source,
// applying the two-level dedup and handing surviving items to the
// caller-supplied onItem.
type Poller struct {
	dedup   *dedup.Store
	cache   *Cache
	onItem  func(BookmarkItem) error
	rssURL  string
	jsonURL string
}

func NewPoller(dedupStore *dedup.Store, cache *Cache, rssURL, jsonURL string, onItem func(BookmarkItem) error) *Poller {
	return &Poller{dedup: dedupStore, cache: cache, onItem: onItem, rssURL: rssURL, jsonURL: jsonURL}
}

const sourceRSS = "rss"
const sourceJSON = "json-api"

// Tick polls every configured source once. It never returns early on a
// single source's failure — each source's error is logged and the
// others still run, consistent with the "one bad feed shouldn't stall
// the others" discipline used throughout the worker loops here.
func (p *Poller) Tick(ctx context.Context) {
	if p.rssURL != "" {
		if err := p.tickRSS(ctx); err != nil {
			slog.Error("rss poll failed", "error", err)
		}
	}
	if p.jsonURL != "" {
		if err := p.tickJSON(ctx); err != nil {
			slog.Error("json source poll failed", "error", err)
		}
	}
}

func (p *Poller) tickRSS(ctx context.Context) error {
	cache, err := p.cache.Get(ctx, sourceRSS)
	if err != nil {
		return fmt.Errorf("load rss cache: %w", err)
	}

	items, newCache, err := PollRSS(p.rssURL, sourceRSS, cache)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := p.processItem(ctx, item); err != nil {
			slog.Error("failed to process rss item", "url", item.OriginalURL, "error", err)
		}
	}

	return p.cache.Set(ctx, sourceRSS, newCache)
}

func (p *Poller) tickJSON(ctx context.Context) error {
	items, err := PollJSON(ctx, p.jsonURL, sourceJSON, func(guid string) (bool, error) {
		return p.dedup.IsGuidSeen(ctx, sourceJSON, guid)
	})
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := p.processItem(ctx, item); err != nil {
			slog.Error("failed to process json source item", "url", item.OriginalURL, "error", err)
		}
	}
	return nil
}

// processItem applies the per-item dedup contract from the spec: skip if
// guid already seen for source, mark guid seen, skip if canonical URL
// already globally seen, mark URL seen, then fan out.
func (p *Poller) processItem(ctx context.Context, item BookmarkItem) error {
	item.CanonicalURL = dedup.Canonicalize(item.CanonicalURL)

	seen, err := p.dedup.IsGuidSeen(ctx, item.Source, item.GUID)
	if err != nil {
		return fmt.Errorf("check guid seen: %w", err)
	}
	if seen {
		return nil
	}
	if err := p.dedup.MarkGuidSeen(ctx, item.Source, item.GUID); err != nil {
		return fmt.Errorf("mark guid seen: %w", err)
	}

	urlSeen, err := p.dedup.IsURLSeen(ctx, item.CanonicalURL)
	if err != nil {
		return fmt.Errorf("check url seen: %w", err)
	}
	if urlSeen {
		return nil
	}
	if err := p.dedup.MarkURLSeen(ctx, item.CanonicalURL, item.Source); err != nil {
		return fmt.Errorf("mark url seen: %w", err)
	}

	return p.onItem(item)
}
