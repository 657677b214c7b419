package hooks

import (
	"context"
	"fmt"
	"strconv"

	"news_offline/internal/cache"
	"news_offline/internal/domain"
)

const (
	entityNews       = "news"
	entityPlayers    = "players"
	entityCategories = "categories"
	entityFavorites  = "favorites"
)

type NewsHooks struct {
	*base
	remote Remote
	cache  *cache.NewsCache
}

func (h *NewsHooks) BySlug(ctx context.Context, slug string, opts ...ReadOption) (Result[domain.News], error) {
	return readThrough(ctx, h.base, read[domain.News]{
		entity: entityNews,
		key:    "slug:" + slug,
		cache: func(ctx context.Context) (domain.News, bool, error) {
			return deref(h.cache.GetBySlug(ctx, slug))
		},
		remote: func(ctx context.Context) (domain.News, error) {
			return remoteValue(h.remote.NewsBySlug(ctx, slug))
		},
		write: h.write,
	}, opts...)
}

func (h *NewsHooks) ByID(ctx context.Context, id int64, opts ...ReadOption) (Result[domain.News], error) {
	return readThrough(ctx, h.base, read[domain.News]{
		entity: entityNews,
		key:    "id:" + strconv.FormatInt(id, 10),
		cache: func(ctx context.Context) (domain.News, bool, error) {
			return deref(h.cache.GetByID(ctx, id))
		},
		remote: func(ctx context.Context) (domain.News, error) {
			return remoteValue(h.remote.NewsByID(ctx, id))
		},
		write: h.write,
	}, opts...)
}

func (h *NewsHooks) List(ctx context.Context, filter domain.NewsFilter, limit int, opts ...ReadOption) (Result[[]domain.News], error) {
	return readThrough(ctx, h.base, read[[]domain.News]{
		entity: entityNews,
		key:    fmt.Sprintf("list:%d:%q:%d", filter.CategoryID, filter.Search, limit),
		cache: func(ctx context.Context) ([]domain.News, bool, error) {
			items, err := h.cache.List(ctx, filter, limit)
			return items, len(items) > 0, err
		},
		remote: func(ctx context.Context) ([]domain.News, error) {
			return h.remote.ListNews(ctx, filter, limit)
		},
		write: func(ctx context.Context, items []domain.News) error {
			_, err := h.cache.UpsertMany(ctx, items)
			return err
		},
	}, opts...)
}

func (h *NewsHooks) write(ctx context.Context, n domain.News) error {
	_, err := h.cache.UpsertMany(ctx, []domain.News{n})
	return err
}

type PlayerHooks struct {
	*base
	remote Remote
	cache  *cache.PlayerCache
}

func (h *PlayerHooks) BySlug(ctx context.Context, slug string, opts ...ReadOption) (Result[domain.Player], error) {
	return readThrough(ctx, h.base, read[domain.Player]{
		entity: entityPlayers,
		key:    "slug:" + slug,
		cache: func(ctx context.Context) (domain.Player, bool, error) {
			return deref(h.cache.GetBySlug(ctx, slug))
		},
		remote: func(ctx context.Context) (domain.Player, error) {
			return remoteValue(h.remote.PlayerBySlug(ctx, slug))
		},
		write: h.write,
	}, opts...)
}

func (h *PlayerHooks) ByID(ctx context.Context, id int64, opts ...ReadOption) (Result[domain.Player], error) {
	return readThrough(ctx, h.base, read[domain.Player]{
		entity: entityPlayers,
		key:    "id:" + strconv.FormatInt(id, 10),
		cache: func(ctx context.Context) (domain.Player, bool, error) {
			return deref(h.cache.GetByID(ctx, id))
		},
		remote: func(ctx context.Context) (domain.Player, error) {
			return remoteValue(h.remote.PlayerByID(ctx, id))
		},
		write: h.write,
	}, opts...)
}

func (h *PlayerHooks) List(ctx context.Context, filter domain.PlayerFilter, limit int, opts ...ReadOption) (Result[[]domain.Player], error) {
	return readThrough(ctx, h.base, read[[]domain.Player]{
		entity: entityPlayers,
		key:    fmt.Sprintf("list:%d:%q:%d", filter.TeamID, filter.Position, limit),
		cache: func(ctx context.Context) ([]domain.Player, bool, error) {
			items, err := h.cache.List(ctx, filter, limit)
			return items, len(items) > 0, err
		},
		remote: func(ctx context.Context) ([]domain.Player, error) {
			return h.remote.ListPlayers(ctx, filter, limit)
		},
		write: func(ctx context.Context, items []domain.Player) error {
			_, err := h.cache.UpsertMany(ctx, items)
			return err
		},
	}, opts...)
}

func (h *PlayerHooks) write(ctx context.Context, p domain.Player) error {
	_, err := h.cache.UpsertMany(ctx, []domain.Player{p})
	return err
}

type CategoryHooks struct {
	*base
	remote Remote
	cache  *cache.CategoryCache
}

func (h *CategoryHooks) List(ctx context.Context, opts ...ReadOption) (Result[[]domain.Category], error) {
	return readThrough(ctx, h.base, read[[]domain.Category]{
		entity: entityCategories,
		key:    "list",
		cache: func(ctx context.Context) ([]domain.Category, bool, error) {
			items, err := h.cache.List(ctx, 0)
			return items, len(items) > 0, err
		},
		remote: h.remote.ListCategories,
		write: func(ctx context.Context, items []domain.Category) error {
			_, err := h.cache.UpsertMany(ctx, items)
			return err
		},
	}, opts...)
}

// deref adapts a cache lookup to the (value, found, error) form.
func deref[T any](v *T, err error) (T, bool, error) {
	var zero T
	if err != nil || v == nil {
		return zero, false, err
	}
	return *v, true, nil
}

func remoteValue[T any](v *T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, domain.ErrNotFound
	}
	return *v, nil
}
