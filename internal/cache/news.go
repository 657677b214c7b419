package cache

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

type NewsCache struct {
	accessor[domain.News]
}

func NewNewsCache(s store.Store, logger *slog.Logger, clock func() time.Time) *NewsCache {
	return &NewsCache{accessor[domain.News]{
		store:  s,
		clock:  clock,
		logger: logger,
		codec: codec[domain.News]{
			collection: store.News,
			key:        func(n domain.News) string { return strconv.FormatInt(n.ID, 10) },
			indexes:    newsIndexes,
			cachedAt:   func(n domain.News) time.Time { return n.CachedAt },
			stamp:      func(n *domain.News, t time.Time) { n.CachedAt = t },
		},
	}}
}

func newsIndexes(n domain.News) map[string]string {
	idx := map[string]string{
		store.IndexSlug:     n.Slug,
		store.IndexCachedAt: store.TimeKey(n.CachedAt),
		store.IndexRank:     store.TimeKey(n.PublishedAt),
	}
	if n.CategoryID > 0 {
		idx[store.IndexCategory] = store.Compose(store.IntKey(n.CategoryID), store.TimeKey(n.PublishedAt))
	}
	return idx
}

func (c *NewsCache) GetByID(ctx context.Context, id int64) (*domain.News, error) {
	return c.get(ctx, strconv.FormatInt(id, 10))
}

func (c *NewsCache) GetBySlug(ctx context.Context, slug string) (*domain.News, error) {
	return c.getByIndex(ctx, store.IndexSlug, slug)
}

// List returns the newest articles first, optionally restricted to a category.
func (c *NewsCache) List(ctx context.Context, filter domain.NewsFilter, limit int) ([]domain.News, error) {
	index, r := store.IndexRank, store.Range{Reverse: true}
	if filter.CategoryID > 0 {
		index, r = store.IndexCategory, store.Prefix(store.IntKey(filter.CategoryID))
		r.Reverse = true
	}

	if filter.Search == "" {
		return c.scan(ctx, index, r, limit)
	}

	all, err := c.scan(ctx, index, r, 0)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(filter.Search)
	var out []domain.News
	for _, n := range all {
		if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Summary), q) {
			out = append(out, n)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// UpsertMany writes items through to the cache and returns them as stored.
func (c *NewsCache) UpsertMany(ctx context.Context, items []domain.News) ([]domain.News, error) {
	return c.upsertMany(ctx, items)
}
