package hooks

import (
	"context"
	"sync"
	"sync/atomic"

	"news_offline/internal/domain"
)

type fakeOnline struct {
	online atomic.Bool
}

func (f *fakeOnline) Online() bool { return f.online.Load() }

// fakeRemote answers with the configured funcs; unset ones fail as
// unreachable.
type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int

	newsBySlug     func(ctx context.Context, slug string) (*domain.News, error)
	listNews       func(ctx context.Context, filter domain.NewsFilter, limit int) ([]domain.News, error)
	playerByID     func(ctx context.Context, id int64) (*domain.Player, error)
	listCategories func(ctx context.Context) ([]domain.Category, error)
	toggle         func(ctx context.Context, t domain.EntityType, id int64) (domain.ToggleResult, error)
	isFavorited    func(ctx context.Context, t domain.EntityType, id int64) (bool, error)
	createComment  func(ctx context.Context, in domain.CommentInput) (domain.CommentResult, error)
}

func (f *fakeRemote) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeRemote) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRemote) ListNews(ctx context.Context, filter domain.NewsFilter, limit int) ([]domain.News, error) {
	f.record("ListNews")
	if f.listNews == nil {
		return nil, domain.ErrTransport
	}
	return f.listNews(ctx, filter, limit)
}

func (f *fakeRemote) NewsBySlug(ctx context.Context, slug string) (*domain.News, error) {
	f.record("NewsBySlug")
	if f.newsBySlug == nil {
		return nil, domain.ErrTransport
	}
	return f.newsBySlug(ctx, slug)
}

func (f *fakeRemote) NewsByID(context.Context, int64) (*domain.News, error) {
	f.record("NewsByID")
	return nil, domain.ErrTransport
}

func (f *fakeRemote) ListPlayers(context.Context, domain.PlayerFilter, int) ([]domain.Player, error) {
	f.record("ListPlayers")
	return nil, domain.ErrTransport
}

func (f *fakeRemote) PlayerBySlug(context.Context, string) (*domain.Player, error) {
	f.record("PlayerBySlug")
	return nil, domain.ErrTransport
}

func (f *fakeRemote) PlayerByID(ctx context.Context, id int64) (*domain.Player, error) {
	f.record("PlayerByID")
	if f.playerByID == nil {
		return nil, domain.ErrTransport
	}
	return f.playerByID(ctx, id)
}

func (f *fakeRemote) ListCategories(ctx context.Context) ([]domain.Category, error) {
	f.record("ListCategories")
	if f.listCategories == nil {
		return nil, domain.ErrTransport
	}
	return f.listCategories(ctx)
}

func (f *fakeRemote) ToggleFavorite(ctx context.Context, t domain.EntityType, id int64) (domain.ToggleResult, error) {
	f.record("ToggleFavorite")
	if f.toggle == nil {
		return domain.ToggleResult{}, domain.ErrTransport
	}
	return f.toggle(ctx, t, id)
}

func (f *fakeRemote) IsFavorited(ctx context.Context, t domain.EntityType, id int64) (bool, error) {
	f.record("IsFavorited")
	if f.isFavorited == nil {
		return false, domain.ErrTransport
	}
	return f.isFavorited(ctx, t, id)
}

func (f *fakeRemote) CreateComment(ctx context.Context, in domain.CommentInput) (domain.CommentResult, error) {
	f.record("CreateComment")
	if f.createComment == nil {
		return domain.CommentResult{}, domain.ErrTransport
	}
	return f.createComment(ctx, in)
}

// failingQueue refuses every enqueue.
type failingQueue struct {
	Queue
	err error
}

func (q failingQueue) Enqueue(context.Context, domain.OperationType, any) (domain.SyncQueueItem, error) {
	return domain.SyncQueueItem{}, q.err
}
