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

type PlayerCache struct {
	accessor[domain.Player]
}

func NewPlayerCache(s store.Store, logger *slog.Logger, clock func() time.Time) *PlayerCache {
	return &PlayerCache{accessor[domain.Player]{
		store:  s,
		clock:  clock,
		logger: logger,
		codec: codec[domain.Player]{
			collection: store.Players,
			key:        func(p domain.Player) string { return strconv.FormatInt(p.ID, 10) },
			indexes:    playerIndexes,
			cachedAt:   func(p domain.Player) time.Time { return p.CachedAt },
			stamp:      func(p *domain.Player, t time.Time) { p.CachedAt = t },
		},
	}}
}

func playerIndexes(p domain.Player) map[string]string {
	goals := store.IntKey(int64(p.Stats.Goals))
	idx := map[string]string{
		store.IndexSlug:     p.Slug,
		store.IndexCachedAt: store.TimeKey(p.CachedAt),
		store.IndexRank:     goals,
	}
	if p.TeamID > 0 {
		idx[store.IndexTeam] = store.Compose(store.IntKey(p.TeamID), goals)
	}
	return idx
}

func (c *PlayerCache) GetByID(ctx context.Context, id int64) (*domain.Player, error) {
	return c.get(ctx, strconv.FormatInt(id, 10))
}

func (c *PlayerCache) GetBySlug(ctx context.Context, slug string) (*domain.Player, error) {
	return c.getByIndex(ctx, store.IndexSlug, slug)
}

// List returns players ranked by goals, optionally restricted to a team
// and position.
func (c *PlayerCache) List(ctx context.Context, filter domain.PlayerFilter, limit int) ([]domain.Player, error) {
	index, r := store.IndexRank, store.Range{Reverse: true}
	if filter.TeamID > 0 {
		index, r = store.IndexTeam, store.Prefix(store.IntKey(filter.TeamID))
		r.Reverse = true
	}

	if filter.Position == "" {
		return c.scan(ctx, index, r, limit)
	}

	all, err := c.scan(ctx, index, r, 0)
	if err != nil {
		return nil, err
	}
	var out []domain.Player
	for _, p := range all {
		if strings.EqualFold(p.Position, filter.Position) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (c *PlayerCache) UpsertMany(ctx context.Context, items []domain.Player) ([]domain.Player, error) {
	return c.upsertMany(ctx, items)
}
