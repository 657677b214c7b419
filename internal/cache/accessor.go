// Package cache provides typed accessors over the local store. Every entity
// write goes through here: records are validated, stamped with CachedAt and
// written whole (last write wins).
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Set bundles the accessors sharing one store.
type Set struct {
	News       *NewsCache
	Players    *PlayerCache
	Categories *CategoryCache
	Favorites  *FavoriteCache
	Metadata   *MetadataCache
}

func New(s store.Store, logger *slog.Logger, clock func() time.Time) *Set {
	if clock == nil {
		clock = time.Now
	}
	logger = logger.With("component", "cache")
	return &Set{
		News:       NewNewsCache(s, logger, clock),
		Players:    NewPlayerCache(s, logger, clock),
		Categories: NewCategoryCache(s, logger, clock),
		Favorites:  NewFavoriteCache(s, logger, clock),
		Metadata:   NewMetadataCache(s),
	}
}

type codec[T any] struct {
	collection store.Collection
	key        func(T) string
	indexes    func(T) map[string]string
	cachedAt   func(T) time.Time
	stamp      func(*T, time.Time)
}

type accessor[T any] struct {
	store  store.Store
	codec  codec[T]
	clock  func() time.Time
	logger *slog.Logger
}

func (a *accessor[T]) get(ctx context.Context, key string) (*T, error) {
	rec, err := a.store.Get(ctx, a.codec.collection, key)
	return a.decode(rec, err)
}

func (a *accessor[T]) getByIndex(ctx context.Context, index, value string) (*T, error) {
	rec, err := a.store.GetByIndex(ctx, a.codec.collection, index, value)
	return a.decode(rec, err)
}

func (a *accessor[T]) scan(ctx context.Context, index string, r store.Range, limit int) ([]T, error) {
	recs, err := a.store.Scan(ctx, a.codec.collection, index, r, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s/%s: %w", domain.ErrCacheRead, a.codec.collection, index, err)
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := store.Decode(rec.Data, &v); err != nil {
			a.logger.Warn("skipping undecodable record",
				"collection", a.codec.collection,
				"key", rec.Key,
				"error", err,
			)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *accessor[T]) decode(rec store.Record, err error) (*T, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCacheRead, a.codec.collection, err)
	}
	var v T
	if err := store.Decode(rec.Data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %w", domain.ErrCacheRead, a.codec.collection, rec.Key, err)
	}
	return &v, nil
}

// upsertMany validates, stamps and writes items in one transaction. Invalid
// items are skipped and reported; valid ones are still written. CachedAt
// never moves backwards for a record.
func (a *accessor[T]) upsertMany(ctx context.Context, items []T) ([]T, error) {
	if len(items) == 0 {
		return nil, nil
	}

	now := a.clock()
	var (
		invalid []error
		written = make([]T, 0, len(items))
		recs    = make([]store.Record, 0, len(items))
	)
	for _, item := range items {
		if err := validate.Struct(item); err != nil {
			invalid = append(invalid, fmt.Errorf("%s %q: %w", a.codec.collection, a.codec.key(item), err))
			continue
		}

		stamp := now
		if prev, err := a.get(ctx, a.codec.key(item)); err == nil {
			if at := a.codec.cachedAt(*prev); at.After(stamp) {
				stamp = at
			}
		}
		a.codec.stamp(&item, stamp)

		data, err := store.Encode(item)
		if err != nil {
			invalid = append(invalid, err)
			continue
		}
		recs = append(recs, store.Record{
			Key:     a.codec.key(item),
			Indexes: a.codec.indexes(item),
			Data:    data,
		})
		written = append(written, item)
	}

	if err := a.store.PutMany(ctx, a.codec.collection, recs); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCacheWrite, a.codec.collection, err)
	}
	if len(invalid) > 0 {
		return written, fmt.Errorf("%w: %w", domain.ErrCacheWrite, errors.Join(invalid...))
	}
	return written, nil
}
