// Package maintenance bounds the local cache: it drops records older than
// the expiry window and evicts the oldest records of oversized collections.
// Failures are logged and never reach readers or writers.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"news_offline/internal/cache"
	"news_offline/internal/config"
	"news_offline/internal/domain"
	"news_offline/internal/metrics"
	"news_offline/internal/store"
)

// Expirable lists the collections carrying a cachedAt index.
var Expirable = []store.Collection{store.News, store.Players, store.Categories, store.Favorites}

type Maintainer struct {
	store    store.Store
	metadata *cache.MetadataCache
	cfg      config.CacheConfig
	clock    func() time.Time
	logger   *slog.Logger
}

func New(s store.Store, metadata *cache.MetadataCache, cfg config.CacheConfig, logger *slog.Logger, clock func() time.Time) *Maintainer {
	if clock == nil {
		clock = time.Now
	}
	return &Maintainer{
		store:    s,
		metadata: metadata,
		cfg:      cfg,
		clock:    clock,
		logger:   logger.With("component", "maintenance"),
	}
}

// SweepExpired removes records cached before now minus the expiry window
// and returns how many were removed.
func (m *Maintainer) SweepExpired(ctx context.Context) (int, error) {
	cutoff := store.TimeKey(m.clock().Add(-m.cfg.Expiry))

	var (
		removed int
		errs    []error
	)
	for _, c := range Expirable {
		recs, err := m.store.Scan(ctx, c, store.IndexCachedAt, store.Before(cutoff), 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", c, err))
			continue
		}
		n, err := m.delete(ctx, c, recs)
		if err != nil {
			errs = append(errs, err)
		}
		metrics.RecordEvictions(string(c), "expired", n)
		removed += n
	}
	return removed, errors.Join(errs...)
}

// EnforceSizeLimit evicts the oldest cached records of c until it holds at
// most maxEntries. Records outside the cachedAt index are never evicted.
func (m *Maintainer) EnforceSizeLimit(ctx context.Context, c store.Collection, maxEntries int) (int, error) {
	if maxEntries < 0 {
		return 0, fmt.Errorf("negative size limit for %s", c)
	}

	count, err := m.store.Count(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c, err)
	}
	excess := count - maxEntries
	if excess <= 0 {
		return 0, nil
	}

	recs, err := m.store.Scan(ctx, c, store.IndexCachedAt, store.All, excess)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", c, err)
	}
	n, err := m.delete(ctx, c, recs)
	metrics.RecordEvictions(string(c), "size", n)
	return n, err
}

// Run sweeps expired records, applies every configured size limit and
// records the sweep time. Errors are logged only.
func (m *Maintainer) Run(ctx context.Context) error {
	start := m.clock()

	expired, err := m.SweepExpired(ctx)
	if err != nil {
		m.logger.Warn("sweep expired failed", "error", err)
	}

	evicted := 0
	names := make([]string, 0, len(m.cfg.MaxEntries))
	for name := range m.cfg.MaxEntries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n, err := m.EnforceSizeLimit(ctx, store.Collection(name), m.cfg.MaxEntries[name])
		if err != nil {
			m.logger.Warn("enforce size limit failed", "collection", name, "error", err)
		}
		evicted += n
	}

	if err := m.metadata.Set(ctx, domain.MetaLastSweepAt, start); err != nil {
		m.logger.Warn("record sweep time failed", "error", err)
	}

	m.logger.Info("cache maintenance completed",
		"expired", expired,
		"evicted", evicted,
		"duration", m.clock().Sub(start),
	)
	return nil
}

func (m *Maintainer) delete(ctx context.Context, c store.Collection, recs []store.Record) (int, error) {
	removed := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := m.store.Delete(ctx, c, rec.Key); err != nil {
			return removed, fmt.Errorf("delete %s/%s: %w", c, rec.Key, err)
		}
		removed++
	}
	return removed, nil
}
