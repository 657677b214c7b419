package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"news_offline/internal/domain"
)

type Queue interface {
	ListPending(ctx context.Context) ([]domain.SyncQueueItem, error)
	MarkSyncing(ctx context.Context, id uint64) (domain.SyncQueueItem, error)
	MarkSynced(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, cause error, nextAttemptAt time.Time) (domain.SyncQueueItem, error)
	Abandon(ctx context.Context, id uint64) error
	HasPending(ctx context.Context, orderingKey string) (bool, error)
	Len(ctx context.Context) (int, error)
}

// Remote is the subset of the RPC API that queued mutations replay against.
type Remote interface {
	ToggleFavorite(ctx context.Context, entityType domain.EntityType, entityID int64) (domain.ToggleResult, error)
	CreateComment(ctx context.Context, input domain.CommentInput) (domain.CommentResult, error)
}

type FavoriteStore interface {
	Put(ctx context.Context, f domain.Favorite) (domain.Favorite, error)
	Delete(ctx context.Context, entityType domain.EntityType, entityID int64) error
}

type MetadataStore interface {
	SetLastSyncedAt(ctx context.Context, t time.Time) error
}

type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, item domain.SyncQueueItem, reason error) error
	Close() error
}
