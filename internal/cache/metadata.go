package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

// MetadataCache stores small JSON values under well-known keys.
type MetadataCache struct {
	store store.Store
}

func NewMetadataCache(s store.Store) *MetadataCache {
	return &MetadataCache{store: s}
}

// Get decodes the value at key into v. A missing key returns domain.ErrNotFound.
func (c *MetadataCache) Get(ctx context.Context, key string, v any) error {
	rec, err := c.store.Get(ctx, store.Metadata, key)
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: metadata %s: %w", domain.ErrCacheRead, key, err)
	}
	if err := store.Decode(rec.Data, v); err != nil {
		return fmt.Errorf("%w: metadata %s: %w", domain.ErrCacheRead, key, err)
	}
	return nil
}

func (c *MetadataCache) Set(ctx context.Context, key string, v any) error {
	data, err := store.Encode(v)
	if err != nil {
		return fmt.Errorf("%w: metadata %s: %w", domain.ErrCacheWrite, key, err)
	}
	if err := c.store.Put(ctx, store.Metadata, store.Record{Key: key, Data: data}); err != nil {
		return fmt.Errorf("%w: metadata %s: %w", domain.ErrCacheWrite, key, err)
	}
	return nil
}

// Time returns the timestamp at key, or the zero time if unset.
func (c *MetadataCache) Time(ctx context.Context, key string) (time.Time, error) {
	var t time.Time
	err := c.Get(ctx, key, &t)
	if errors.Is(err, domain.ErrNotFound) {
		return time.Time{}, nil
	}
	return t, err
}

func (c *MetadataCache) LastSyncedAt(ctx context.Context) (time.Time, error) {
	return c.Time(ctx, domain.MetaLastSyncedAt)
}

func (c *MetadataCache) SetLastSyncedAt(ctx context.Context, t time.Time) error {
	return c.Set(ctx, domain.MetaLastSyncedAt, t)
}
