package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

type CategoryCache struct {
	accessor[domain.Category]
}

func NewCategoryCache(s store.Store, logger *slog.Logger, clock func() time.Time) *CategoryCache {
	return &CategoryCache{accessor[domain.Category]{
		store:  s,
		clock:  clock,
		logger: logger,
		codec: codec[domain.Category]{
			collection: store.Categories,
			key:        func(c domain.Category) string { return strconv.FormatInt(c.ID, 10) },
			indexes: func(c domain.Category) map[string]string {
				return map[string]string{
					store.IndexSlug:     c.Slug,
					store.IndexCachedAt: store.TimeKey(c.CachedAt),
				}
			},
			cachedAt: func(c domain.Category) time.Time { return c.CachedAt },
			stamp:    func(c *domain.Category, t time.Time) { c.CachedAt = t },
		},
	}}
}

func (c *CategoryCache) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	return c.get(ctx, strconv.FormatInt(id, 10))
}

func (c *CategoryCache) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return c.getByIndex(ctx, store.IndexSlug, slug)
}

// List returns categories ordered by slug.
func (c *CategoryCache) List(ctx context.Context, limit int) ([]domain.Category, error) {
	return c.scan(ctx, store.IndexSlug, store.All, limit)
}

func (c *CategoryCache) UpsertMany(ctx context.Context, items []domain.Category) ([]domain.Category, error) {
	return c.upsertMany(ctx, items)
}
