package hooks

import (
	"context"
	"time"

	"news_offline/internal/config"
	"news_offline/internal/domain"
	"news_offline/internal/testutil"
)

func (s *HooksTestSuite) pendingOps() []domain.OperationType {
	items, err := s.queue.ListPending(s.ctx)
	s.Require().NoError(err)
	ops := make([]domain.OperationType, len(items))
	for i, item := range items {
		ops[i] = item.Operation
	}
	return ops
}

func (s *HooksTestSuite) TestToggle_OfflineFlipsAndQueues() {
	s.online.online.Store(false)

	out, err := s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)
	s.True(out.IsFavorited)
	s.True(out.Queued)

	out, err = s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)
	s.False(out.IsFavorited)

	s.Equal([]domain.OperationType{domain.OpToggleFavoriteNews, domain.OpToggleFavoriteNews}, s.pendingOps())

	fav, err := s.caches.Favorites.Get(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)
	s.False(fav.Synced)
	s.Zero(s.remote.count("ToggleFavorite"))
}

func (s *HooksTestSuite) TestToggle_OnlineWritesServerState() {
	s.remote.toggle = func(context.Context, domain.EntityType, int64) (domain.ToggleResult, error) {
		return domain.ToggleResult{IsFavorited: true}, nil
	}

	out, err := s.hooks.Favorites.Toggle(s.ctx, domain.EntityPlayer, 9)
	s.Require().NoError(err)
	s.True(out.IsFavorited)
	s.False(out.Queued)

	fav, err := s.caches.Favorites.Get(s.ctx, domain.EntityPlayer, 9)
	s.Require().NoError(err)
	s.True(fav.Synced)
	s.Empty(s.pendingOps())
}

func (s *HooksTestSuite) TestToggle_UnreachableQueues() {
	out, err := s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 4)

	s.Require().NoError(err)
	s.True(out.Queued)
	s.True(out.IsFavorited)
	s.Len(s.pendingOps(), 1)
}

func (s *HooksTestSuite) TestToggle_QueuedEarlierToggleKeepsOrder() {
	s.online.online.Store(false)
	_, err := s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)

	s.online.online.Store(true)
	s.remote.toggle = func(context.Context, domain.EntityType, int64) (domain.ToggleResult, error) {
		return domain.ToggleResult{IsFavorited: true}, nil
	}
	out, err := s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)

	s.True(out.Queued)
	s.False(out.IsFavorited)
	s.Zero(s.remote.count("ToggleFavorite"))
	s.Len(s.pendingOps(), 2)
}

func (s *HooksTestSuite) TestToggle_RejectedIsReturned() {
	s.remote.toggle = func(context.Context, domain.EntityType, int64) (domain.ToggleResult, error) {
		return domain.ToggleResult{}, &domain.ApplicationError{Code: "UNAUTHORIZED"}
	}

	_, err := s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 4)

	s.ErrorIs(err, domain.ErrApplication)
	s.Empty(s.pendingOps())
}

func (s *HooksTestSuite) TestToggle_QueueFailureRestoresPreviousState() {
	s.online.online.Store(false)
	_, err := s.caches.Favorites.Put(s.ctx, domain.Favorite{
		EntityType: domain.EntityNews, EntityID: 4, IsFavorited: true, Synced: true,
	})
	s.Require().NoError(err)

	h := New(s.remote, s.caches, failingQueue{Queue: s.queue, err: domain.ErrCacheWrite},
		s.online, config.HooksConfig{RemoteTimeout: time.Second}, testutil.Logger())

	_, err = h.Favorites.Toggle(s.ctx, domain.EntityNews, 4)
	s.ErrorIs(err, domain.ErrCacheWrite)

	fav, err := s.caches.Favorites.Get(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)
	s.True(fav.IsFavorited)
	s.True(fav.Synced)

	unsynced, err := s.caches.Favorites.ListUnsynced(s.ctx)
	s.Require().NoError(err)
	s.Empty(unsynced)
}

func (s *HooksTestSuite) TestToggle_QueueFailureDropsNewEntry() {
	s.online.online.Store(false)
	h := New(s.remote, s.caches, failingQueue{Queue: s.queue, err: domain.ErrCacheWrite},
		s.online, config.HooksConfig{RemoteTimeout: time.Second}, testutil.Logger())

	_, err := h.Favorites.Toggle(s.ctx, domain.EntityPlayer, 2)
	s.Error(err)

	_, err = s.caches.Favorites.Get(s.ctx, domain.EntityPlayer, 2)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *HooksTestSuite) TestToggle_UnknownEntity() {
	_, err := s.hooks.Favorites.Toggle(s.ctx, "team", 4)
	s.Error(err)
}

func (s *HooksTestSuite) TestIsFavorited_UnsyncedLocalWins() {
	s.online.online.Store(false)
	_, err := s.hooks.Favorites.Toggle(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)

	s.online.online.Store(true)
	s.remote.isFavorited = func(context.Context, domain.EntityType, int64) (bool, error) { return false, nil }

	res, err := s.hooks.Favorites.IsFavorited(s.ctx, domain.EntityNews, 4)
	s.Require().NoError(err)
	s.True(res.Data)
	s.True(res.FromCache)
	s.Zero(s.remote.count("IsFavorited"))
}

func (s *HooksTestSuite) TestIsFavorited_ReadsThrough() {
	s.remote.isFavorited = func(context.Context, domain.EntityType, int64) (bool, error) { return true, nil }

	res, err := s.hooks.Favorites.IsFavorited(s.ctx, domain.EntityPlayer, 2)
	s.Require().NoError(err)
	s.True(res.Data)
	s.False(res.FromCache)

	fav, err := s.caches.Favorites.Get(s.ctx, domain.EntityPlayer, 2)
	s.Require().NoError(err)
	s.True(fav.Synced)
}

func (s *HooksTestSuite) TestComment_Online() {
	s.remote.createComment = func(_ context.Context, in domain.CommentInput) (domain.CommentResult, error) {
		s.Equal(int64(3), in.NewsID)
		return domain.CommentResult{ID: 77}, nil
	}

	out, err := s.hooks.Comments.Create(s.ctx, domain.CommentInput{NewsID: 3, Content: "what a goal"})
	s.Require().NoError(err)
	s.False(out.Queued)
	s.Require().NotNil(out.Comment)
	s.Equal(int64(77), out.Comment.ID)
}

func (s *HooksTestSuite) TestComment_OfflineQueues() {
	s.online.online.Store(false)

	out, err := s.hooks.Comments.Create(s.ctx, domain.CommentInput{NewsID: 3, Content: "what a goal"})
	s.Require().NoError(err)
	s.True(out.Queued)
	s.Equal([]domain.OperationType{domain.OpCreateComment}, s.pendingOps())
}

func (s *HooksTestSuite) TestComment_Invalid() {
	_, err := s.hooks.Comments.Create(s.ctx, domain.CommentInput{NewsID: 3})
	s.Error(err)
	s.Empty(s.pendingOps())
}
