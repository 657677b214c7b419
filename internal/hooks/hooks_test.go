package hooks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"news_offline/internal/cache"
	"news_offline/internal/config"
	"news_offline/internal/domain"
	"news_offline/internal/queue"
	"news_offline/internal/testutil"
)

type HooksTestSuite struct {
	suite.Suite
	ctx    context.Context
	remote *fakeRemote
	online *fakeOnline
	caches *cache.Set
	queue  *queue.Queue
	hooks  *Hooks
}

func (s *HooksTestSuite) SetupTest() {
	s.ctx = context.Background()
	st := testutil.NewStore(s.T())
	s.remote = &fakeRemote{}
	s.online = &fakeOnline{}
	s.online.online.Store(true)
	s.caches = cache.New(st, testutil.Logger(), nil)
	s.queue = queue.New(st, testutil.Logger(), nil)
	s.hooks = s.build(config.HooksConfig{RemoteTimeout: time.Second})
}

func (s *HooksTestSuite) build(cfg config.HooksConfig) *Hooks {
	return New(s.remote, s.caches, s.queue, s.online, cfg, testutil.Logger())
}

func TestHooksTestSuite(t *testing.T) {
	suite.Run(t, new(HooksTestSuite))
}

func derby() domain.News {
	return domain.News{ID: 1, Slug: "derby", Title: "Derby day", CategoryID: 2, PublishedAt: time.Now()}
}

func (s *HooksTestSuite) seedNews(items ...domain.News) {
	_, err := s.caches.News.UpsertMany(s.ctx, items)
	s.Require().NoError(err)
}

func (s *HooksTestSuite) TestDisabled_DoesNothing() {
	disabled := false
	h := s.build(config.HooksConfig{Enabled: &disabled})
	s.seedNews(derby())

	res, err := h.News.BySlug(s.ctx, "derby")

	s.Require().NoError(err)
	s.False(res.Found)
	s.Zero(s.remote.count("NewsBySlug"))
}

func (s *HooksTestSuite) TestDisabledCall_SkipsOnlyThatCall() {
	s.seedNews(derby())
	s.remote.newsBySlug = func(context.Context, string) (*domain.News, error) {
		n := derby()
		return &n, nil
	}

	res, err := s.hooks.News.BySlug(s.ctx, "derby", Enabled(false))
	s.Require().NoError(err)
	s.False(res.Found)
	s.Zero(s.remote.count("NewsBySlug"))

	res, err = s.hooks.News.BySlug(s.ctx, "derby", Enabled(true))
	s.Require().NoError(err)
	s.True(res.Found)
	s.Equal(1, s.remote.count("NewsBySlug"))
}

func (s *HooksTestSuite) TestDisabledCall_ListsAndFavorites() {
	s.online.online.Store(false)
	s.seedNews(derby())

	news, err := s.hooks.News.List(s.ctx, domain.NewsFilter{}, 10, Enabled(false))
	s.Require().NoError(err)
	s.False(news.Found)
	s.Empty(news.Data)

	categories, err := s.hooks.Categories.List(s.ctx, Enabled(false))
	s.Require().NoError(err)
	s.False(categories.Found)

	_, err = s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 1)
	s.Require().NoError(err)
	fav, err := s.hooks.Favorites.IsFavorited(s.ctx, domain.EntityNews, 1, Enabled(false))
	s.Require().NoError(err)
	s.False(fav.Found)
}

func (s *HooksTestSuite) TestOffline_ServesCache() {
	s.online.online.Store(false)
	s.seedNews(derby())

	res, err := s.hooks.News.BySlug(s.ctx, "derby")

	s.Require().NoError(err)
	s.True(res.Found)
	s.True(res.FromCache)
	s.Equal("Derby day", res.Data.Title)
	s.Zero(s.remote.count("NewsBySlug"))
}

func (s *HooksTestSuite) TestOffline_MissIsNotAnError() {
	s.online.online.Store(false)

	res, err := s.hooks.News.BySlug(s.ctx, "unknown")

	s.Require().NoError(err)
	s.False(res.Found)
	s.True(res.FromCache)
}

func (s *HooksTestSuite) TestOnline_WritesThrough() {
	fresh := derby()
	fresh.Title = "Derby day, updated"
	s.remote.newsBySlug = func(context.Context, string) (*domain.News, error) { return &fresh, nil }

	res, err := s.hooks.News.BySlug(s.ctx, "derby")

	s.Require().NoError(err)
	s.True(res.Found)
	s.False(res.FromCache)
	s.Equal("Derby day, updated", res.Data.Title)

	cached, err := s.caches.News.GetBySlug(s.ctx, "derby")
	s.Require().NoError(err)
	s.Equal("Derby day, updated", cached.Title)
	s.False(cached.CachedAt.IsZero())
}

func (s *HooksTestSuite) TestOnline_TransportErrorFallsBackToCache() {
	s.seedNews(derby())

	res, err := s.hooks.News.BySlug(s.ctx, "derby")

	s.Require().NoError(err)
	s.True(res.Found)
	s.True(res.FromCache)
	s.Equal(1, s.remote.count("NewsBySlug"))
}

func (s *HooksTestSuite) TestOnline_TransportErrorAndMiss() {
	res, err := s.hooks.Categories.List(s.ctx)

	s.Require().NoError(err)
	s.False(res.Found)
	s.True(res.FromCache)
}

func (s *HooksTestSuite) TestOnline_RemoteNotFoundIsAuthoritative() {
	s.seedNews(derby())
	s.remote.newsBySlug = func(context.Context, string) (*domain.News, error) { return nil, domain.ErrNotFound }

	res, err := s.hooks.News.BySlug(s.ctx, "derby")

	s.Require().NoError(err)
	s.False(res.Found)
	s.False(res.FromCache)
}

func (s *HooksTestSuite) TestOnline_ApplicationErrorReturned() {
	appErr := &domain.ApplicationError{Procedure: "players.getById", Code: "UNAUTHORIZED"}
	s.remote.playerByID = func(context.Context, int64) (*domain.Player, error) { return nil, appErr }

	_, err := s.hooks.Players.ByID(s.ctx, 3)

	s.ErrorIs(err, domain.ErrApplication)
}

func (s *HooksTestSuite) TestOnline_TimeoutFallsBackToCache() {
	h := s.build(config.HooksConfig{RemoteTimeout: 20 * time.Millisecond})
	s.seedNews(derby())
	s.remote.newsBySlug = func(ctx context.Context, _ string) (*domain.News, error) {
		<-ctx.Done()
		return nil, domain.ErrTransport
	}

	res, err := h.News.BySlug(s.ctx, "derby")

	s.Require().NoError(err)
	s.True(res.FromCache)
	s.Equal("Derby day", res.Data.Title)
}

func (s *HooksTestSuite) TestCancelled_DiscardsWithoutWriteThrough() {
	release := make(chan struct{})
	finished := make(chan struct{})
	entered := make(chan struct{})
	fresh := derby()
	s.remote.newsBySlug = func(ctx context.Context, _ string) (*domain.News, error) {
		defer close(finished)
		close(entered)
		<-release
		return &fresh, ctx.Err()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		<-entered
		cancel()
	}()

	_, err := s.hooks.News.BySlug(ctx, "derby")
	s.ErrorIs(err, context.Canceled)

	close(release)
	<-finished

	_, err = s.caches.News.GetBySlug(s.ctx, "derby")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *HooksTestSuite) TestConcurrentReads_ShareOneRemoteCall() {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	s.remote.listNews = func(context.Context, domain.NewsFilter, int) ([]domain.News, error) {
		entered <- struct{}{}
		<-release
		return []domain.News{derby()}, nil
	}

	var wg sync.WaitGroup
	results := make([]Result[[]domain.News], 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.hooks.News.List(s.ctx, domain.NewsFilter{CategoryID: 2}, 10)
			s.NoError(err)
			results[i] = res
		}()
		if i == 0 {
			<-entered
		}
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(1, s.remote.count("ListNews"))
	for _, res := range results {
		s.True(res.Found)
		s.Len(res.Data, 1)
	}
}

func (s *HooksTestSuite) TestList_WritesThroughAll() {
	s.remote.listCategories = func(context.Context) ([]domain.Category, error) {
		return []domain.Category{
			{ID: 1, Slug: "matches", Name: "Matches"},
			{ID: 2, Slug: "transfers", Name: "Transfers"},
		}, nil
	}

	res, err := s.hooks.Categories.List(s.ctx)
	s.Require().NoError(err)
	s.Len(res.Data, 2)

	s.online.online.Store(false)
	res, err = s.hooks.Categories.List(s.ctx)
	s.Require().NoError(err)
	s.True(res.FromCache)
	s.Len(res.Data, 2)
}
