package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

// FavoriteCache holds the local favorite state. Unconfirmed entries are
// indexed as pending and stay out of the cachedAt index so expiry sweeps
// never drop them.
type FavoriteCache struct {
	accessor[domain.Favorite]
}

func NewFavoriteCache(s store.Store, logger *slog.Logger, clock func() time.Time) *FavoriteCache {
	return &FavoriteCache{accessor[domain.Favorite]{
		store:  s,
		clock:  clock,
		logger: logger,
		codec: codec[domain.Favorite]{
			collection: store.Favorites,
			key:        domain.Favorite.Key,
			indexes:    favoriteIndexes,
			cachedAt:   func(f domain.Favorite) time.Time { return f.CachedAt },
			stamp:      func(f *domain.Favorite, t time.Time) { f.CachedAt = t },
		},
	}}
}

func favoriteIndexes(f domain.Favorite) map[string]string {
	if !f.Synced {
		return map[string]string{store.IndexPending: store.TimeKey(f.UpdatedAt)}
	}
	return map[string]string{store.IndexCachedAt: store.TimeKey(f.CachedAt)}
}

// Get returns the cached favorite, or domain.ErrNotFound.
func (c *FavoriteCache) Get(ctx context.Context, entityType domain.EntityType, entityID int64) (*domain.Favorite, error) {
	return c.get(ctx, domain.FavoriteKey(entityType, entityID))
}

// IsFavorited treats a missing entry as not favorited.
func (c *FavoriteCache) IsFavorited(ctx context.Context, entityType domain.EntityType, entityID int64) (bool, error) {
	f, err := c.Get(ctx, entityType, entityID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.IsFavorited, nil
}

func (c *FavoriteCache) Put(ctx context.Context, f domain.Favorite) (domain.Favorite, error) {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = c.clock()
	}
	written, err := c.upsertMany(ctx, []domain.Favorite{f})
	if err != nil {
		return domain.Favorite{}, err
	}
	if len(written) == 0 {
		return domain.Favorite{}, fmt.Errorf("%w: favorite %s not written", domain.ErrCacheWrite, f.Key())
	}
	return written[0], nil
}

// ListUnsynced returns favorites awaiting server confirmation, oldest first.
func (c *FavoriteCache) ListUnsynced(ctx context.Context) ([]domain.Favorite, error) {
	return c.scan(ctx, store.IndexPending, store.All, 0)
}

// Delete drops the local entry so the next read asks the server.
func (c *FavoriteCache) Delete(ctx context.Context, entityType domain.EntityType, entityID int64) error {
	key := domain.FavoriteKey(entityType, entityID)
	if err := c.store.Delete(ctx, store.Favorites, key); err != nil {
		return fmt.Errorf("%w: delete favorite %s: %w", domain.ErrCacheWrite, key, err)
	}
	return nil
}
