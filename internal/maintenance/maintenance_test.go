package maintenance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"news_offline/internal/cache"
	"news_offline/internal/config"
	"news_offline/internal/domain"
	"news_offline/internal/store"
	"news_offline/internal/testutil"
)

type MaintenanceTestSuite struct {
	suite.Suite
	ctx        context.Context
	store      store.Store
	clock      *testutil.Clock
	caches     *cache.Set
	maintainer *Maintainer
}

func (s *MaintenanceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = testutil.NewStore(s.T())
	s.clock = testutil.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.caches = cache.New(s.store, testutil.Logger(), s.clock.Now)
	s.maintainer = New(s.store, s.caches.Metadata, config.CacheConfig{
		Expiry:     24 * time.Hour,
		MaxEntries: map[string]int{"news": 5},
	}, testutil.Logger(), s.clock.Now)
}

func TestMaintenanceTestSuite(t *testing.T) {
	suite.Run(t, new(MaintenanceTestSuite))
}

// seedNews writes n articles, advancing the clock one minute between writes
// so cachedAt order matches id order.
func (s *MaintenanceTestSuite) seedNews(from, n int) {
	for i := from; i < from+n; i++ {
		_, err := s.caches.News.UpsertMany(s.ctx, []domain.News{{
			ID:          int64(i),
			Slug:        fmt.Sprintf("article-%d", i),
			Title:       "Article",
			PublishedAt: s.clock.Now(),
		}})
		s.Require().NoError(err)
		s.clock.Advance(time.Minute)
	}
}

func (s *MaintenanceTestSuite) TestSweepExpired_RemovesOnlyOldRecords() {
	s.seedNews(1, 2)
	s.clock.Advance(25 * time.Hour)
	s.seedNews(3, 1)

	removed, err := s.maintainer.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, err = s.caches.News.GetByID(s.ctx, 1)
	s.ErrorIs(err, domain.ErrNotFound)
	_, err = s.caches.News.GetByID(s.ctx, 3)
	s.NoError(err)
}

func (s *MaintenanceTestSuite) TestSweepExpired_KeepsUnsyncedFavorites() {
	_, err := s.caches.Favorites.Put(s.ctx, domain.Favorite{EntityType: domain.EntityNews, EntityID: 1, IsFavorited: true})
	s.Require().NoError(err)
	_, err = s.caches.Favorites.Put(s.ctx, domain.Favorite{EntityType: domain.EntityNews, EntityID: 2, IsFavorited: true, Synced: true})
	s.Require().NoError(err)

	s.clock.Advance(48 * time.Hour)
	removed, err := s.maintainer.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.caches.Favorites.Get(s.ctx, domain.EntityNews, 1)
	s.NoError(err)
}

func (s *MaintenanceTestSuite) TestEnforceSizeLimit_EvictsOldestFirst() {
	s.seedNews(1, 15)

	evicted, err := s.maintainer.EnforceSizeLimit(s.ctx, store.News, 5)
	s.Require().NoError(err)
	s.Equal(10, evicted)

	n, err := s.store.Count(s.ctx, store.News)
	s.Require().NoError(err)
	s.Equal(5, n)

	for id := int64(1); id <= 10; id++ {
		_, err := s.caches.News.GetByID(s.ctx, id)
		s.ErrorIs(err, domain.ErrNotFound, "id %d", id)
	}
	for id := int64(11); id <= 15; id++ {
		_, err := s.caches.News.GetByID(s.ctx, id)
		s.NoError(err, "id %d", id)
	}
}

func (s *MaintenanceTestSuite) TestEnforceSizeLimit_UnderLimitNoop() {
	s.seedNews(1, 3)

	evicted, err := s.maintainer.EnforceSizeLimit(s.ctx, store.News, 5)
	s.Require().NoError(err)
	s.Zero(evicted)
}

func (s *MaintenanceTestSuite) TestRun_RecordsSweepTime() {
	s.seedNews(1, 8)
	start := s.clock.Now()

	s.Require().NoError(s.maintainer.Run(s.ctx))

	n, err := s.store.Count(s.ctx, store.News)
	s.Require().NoError(err)
	s.Equal(5, n)

	at, err := s.caches.Metadata.Time(s.ctx, domain.MetaLastSweepAt)
	s.Require().NoError(err)
	s.True(start.Equal(at))
}

func (s *MaintenanceTestSuite) TestRun_ClosedStoreOnlyLogs() {
	s.Require().NoError(s.store.Close())
	s.NoError(s.maintainer.Run(s.ctx))
}
