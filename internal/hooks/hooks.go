// Package hooks serves reads and mutations for the site, preferring the
// remote API while online and falling back to the local cache and sync
// queue otherwise.
package hooks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"news_offline/internal/cache"
	"news_offline/internal/config"
	"news_offline/internal/domain"
	"news_offline/internal/metrics"
)

type Remote interface {
	ListNews(ctx context.Context, filter domain.NewsFilter, limit int) ([]domain.News, error)
	NewsBySlug(ctx context.Context, slug string) (*domain.News, error)
	NewsByID(ctx context.Context, id int64) (*domain.News, error)
	ListPlayers(ctx context.Context, filter domain.PlayerFilter, limit int) ([]domain.Player, error)
	PlayerBySlug(ctx context.Context, slug string) (*domain.Player, error)
	PlayerByID(ctx context.Context, id int64) (*domain.Player, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ToggleFavorite(ctx context.Context, entityType domain.EntityType, entityID int64) (domain.ToggleResult, error)
	IsFavorited(ctx context.Context, entityType domain.EntityType, entityID int64) (bool, error)
	CreateComment(ctx context.Context, input domain.CommentInput) (domain.CommentResult, error)
}

type Queue interface {
	Enqueue(ctx context.Context, op domain.OperationType, payload any) (domain.SyncQueueItem, error)
	HasPending(ctx context.Context, orderingKey string) (bool, error)
}

type Connectivity interface {
	Online() bool
}

// Result is what a read hook returns. Found is false when neither the
// remote nor the cache had the data. FromCache marks possibly stale data.
type Result[T any] struct {
	Data      T
	Found     bool
	FromCache bool
}

type Hooks struct {
	News       *NewsHooks
	Players    *PlayerHooks
	Categories *CategoryHooks
	Favorites  *FavoriteHooks
	Comments   *CommentHooks
}

func New(remote Remote, caches *cache.Set, queue Queue, online Connectivity, cfg config.HooksConfig, logger *slog.Logger) *Hooks {
	b := &base{
		enabled: cfg.IsEnabled(),
		timeout: cfg.RemoteTimeout,
		online:  online,
		logger:  logger.With("component", "hooks"),
	}
	return &Hooks{
		News:       &NewsHooks{base: b, remote: remote, cache: caches.News},
		Players:    &PlayerHooks{base: b, remote: remote, cache: caches.Players},
		Categories: &CategoryHooks{base: b, remote: remote, cache: caches.Categories},
		Favorites:  &FavoriteHooks{base: b, remote: remote, cache: caches.Favorites, queue: queue},
		Comments:   &CommentHooks{base: b, remote: remote, queue: queue},
	}
}

type base struct {
	enabled bool
	timeout time.Duration
	online  Connectivity
	group   singleflight.Group
	logger  *slog.Logger
}

// detached runs fn on a context that outlives the caller, bounded by the
// remote timeout.
func (b *base) detached(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	rctx := context.WithoutCancel(ctx)
	if b.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, b.timeout)
		defer cancel()
	}
	return fn(rctx)
}

// ReadOption tunes a single read hook call.
type ReadOption func(*readOptions)

type readOptions struct {
	enabled bool
}

// Enabled turns a single read on or off. A disabled read returns an empty
// Result without touching the cache or the remote.
func Enabled(on bool) ReadOption {
	return func(o *readOptions) {
		o.enabled = on
	}
}

func applyReadOptions(opts []ReadOption) readOptions {
	o := readOptions{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type cached[T any] struct {
	data  T
	found bool
}

type read[T any] struct {
	entity string
	key    string
	cache  func(ctx context.Context) (T, bool, error)
	remote func(ctx context.Context) (T, error)
	write  func(ctx context.Context, v T) error
}

// readThrough asks the remote while reading the cache in parallel. A remote
// answer is written through and returned; a transport failure falls back to
// the cache. If ctx ends first the result is discarded unwritten, but the
// remote call itself runs to completion.
func readThrough[T any](ctx context.Context, b *base, r read[T], opts ...ReadOption) (Result[T], error) {
	var zero Result[T]
	if !b.enabled || !applyReadOptions(opts).enabled {
		return zero, nil
	}

	if !b.online.Online() {
		return fromCache(ctx, r.entity, r.lookup(ctx, b))
	}

	local := make(chan cached[T], 1)
	go func() {
		local <- r.lookup(ctx, b)
	}()

	remote := b.group.DoChan(r.entity+":"+r.key, func() (any, error) {
		return b.detached(ctx, func(ctx context.Context) (any, error) {
			return r.remote(ctx)
		})
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-remote:
	}

	switch {
	case res.Err == nil:
		data, _ := res.Val.(T)
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if err := r.write(ctx, data); err != nil {
			b.logger.Warn("write-through failed", "entity", r.entity, "key", r.key, "error", err)
		}
		metrics.RecordRead(r.entity, "remote")
		return Result[T]{Data: data, Found: true}, nil

	case errors.Is(res.Err, domain.ErrNotFound):
		metrics.RecordRead(r.entity, "miss")
		return zero, nil

	case errors.Is(res.Err, domain.ErrApplication):
		return zero, res.Err
	}

	b.logger.Debug("remote read failed, serving cache", "entity", r.entity, "key", r.key, "error", res.Err)

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case c := <-local:
		return fromCache(ctx, r.entity, c)
	}
}

func (r read[T]) lookup(ctx context.Context, b *base) cached[T] {
	v, found, err := r.cache(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.logger.Warn("cache read failed", "entity", r.entity, "key", r.key, "error", err)
		}
		return cached[T]{}
	}
	return cached[T]{data: v, found: found}
}

func fromCache[T any](ctx context.Context, entity string, c cached[T]) (Result[T], error) {
	if err := ctx.Err(); err != nil {
		return Result[T]{}, err
	}
	if !c.found {
		metrics.RecordRead(entity, "miss")
		return Result[T]{FromCache: true}, nil
	}
	metrics.RecordRead(entity, "cache")
	return Result[T]{Data: c.data, Found: true, FromCache: true}, nil
}
