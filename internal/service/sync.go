package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"news_offline/internal/config"
	"news_offline/internal/domain"
	"news_offline/internal/metrics"
)

// AbandonFunc is told about every item removed without being delivered.
type AbandonFunc func(item domain.SyncQueueItem, reason error)

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeFailed
	outcomeAbandoned
	outcomeInterrupted
)

// SyncService replays queued mutations against the remote API.
type SyncService struct {
	queue     Queue
	remote    Remote
	favorites FavoriteStore
	metadata  MetadataStore
	publisher DeadLetterPublisher
	logger    *slog.Logger
	config    config.QueueConfig

	onAbandoned AbandonFunc
	now         func() time.Time
	draining    atomic.Bool
}

func NewSyncService(
	queue Queue,
	remote Remote,
	favorites FavoriteStore,
	metadata MetadataStore,
	publisher DeadLetterPublisher,
	logger *slog.Logger,
	cfg config.QueueConfig,
) *SyncService {
	return &SyncService{
		queue:     queue,
		remote:    remote,
		favorites: favorites,
		metadata:  metadata,
		publisher: publisher,
		logger:    logger.With("component", "sync"),
		config:    cfg,
		now:       time.Now,
	}
}

// OnAbandoned registers fn to be called once for each abandoned item.
func (s *SyncService) OnAbandoned(fn AbandonFunc) {
	s.onAbandoned = fn
}

// Draining reports whether a drain is in flight.
func (s *SyncService) Draining() bool {
	return s.draining.Load()
}

// Drain delivers every ready queue item in FIFO order. Failed items are
// rescheduled for a later drain, and items queued behind them for the same
// entity wait with them. A call made while another drain is running
// returns domain.ErrDrainInProgress and touches nothing.
func (s *SyncService) Drain(ctx context.Context) (*domain.DrainStats, error) {
	if !s.draining.CompareAndSwap(false, true) {
		return nil, domain.ErrDrainInProgress
	}
	defer s.draining.Store(false)

	startTime := s.now()

	items, err := s.queue.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	stats := &domain.DrainStats{}
	if len(items) == 0 {
		metrics.QueueDepth.Set(0)
		return stats, nil
	}

	s.logger.Info("starting drain", "items", len(items))

	blocked := make(map[string]bool)
	var drainErr error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			drainErr = err
			break
		}

		key := item.OrderingKey()
		if blocked[key] || !item.Ready(s.now()) {
			blocked[key] = true
			stats.Deferred++
			continue
		}

		stats.Processed++
		switch s.process(ctx, item) {
		case outcomeSynced:
			stats.Synced++
		case outcomeFailed:
			stats.Failed++
			blocked[key] = true
		case outcomeAbandoned:
			stats.Abandoned++
		case outcomeInterrupted:
			stats.Processed--
			drainErr = ctx.Err()
		}
		if drainErr != nil {
			break
		}
	}

	if stats.Synced > 0 {
		if err := s.metadata.SetLastSyncedAt(ctx, s.now()); err != nil {
			s.logger.Warn("failed to record last sync time", "error", err)
		}
	}
	if n, err := s.queue.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}

	stats.Duration = s.now().Sub(startTime)
	metrics.DrainDuration.Observe(stats.Duration.Seconds())

	s.logger.Info("drain completed",
		"processed", stats.Processed,
		"synced", stats.Synced,
		"failed", stats.Failed,
		"abandoned", stats.Abandoned,
		"deferred", stats.Deferred,
		"duration", stats.Duration,
	)

	return stats, drainErr
}

func (s *SyncService) process(ctx context.Context, item domain.SyncQueueItem) outcome {
	logger := s.logger.With("id", item.ID, "operation", item.Operation, "retry_count", item.RetryCount)

	if _, err := s.queue.MarkSyncing(ctx, item.ID); err != nil {
		logger.Warn("failed to mark item syncing", "error", err)
		return outcomeFailed
	}

	confirmed, err := s.execute(ctx, item)
	if err == nil {
		if err := s.queue.MarkSynced(ctx, item.ID); err != nil {
			logger.Warn("failed to remove synced item", "error", err)
		}
		if confirmed != nil {
			s.writeFavorite(ctx, item, *confirmed)
		}
		metrics.RecordItem(string(item.Operation), "synced")
		logger.Debug("item synced")
		return outcomeSynced
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Debug("drain interrupted", "error", err)
		return outcomeInterrupted
	}

	if errors.Is(err, domain.ErrApplication) {
		s.abandon(ctx, item, err)
		return outcomeAbandoned
	}

	if item.RetryCount+1 > s.config.RetryCeiling {
		s.abandon(ctx, item, fmt.Errorf("%w after %d attempts: %w", domain.ErrQueueCeilingExceeded, item.RetryCount+1, err))
		return outcomeAbandoned
	}

	backoff := s.Backoff(item.RetryCount)
	if _, markErr := s.queue.MarkFailed(ctx, item.ID, err, s.now().Add(backoff)); markErr != nil {
		logger.Warn("failed to reschedule item", "error", markErr)
	}
	metrics.RecordItem(string(item.Operation), "failed")
	logger.Warn("item failed, retry scheduled",
		"backoff", backoff,
		"error", err,
	)
	return outcomeFailed
}

// execute replays item against the server. For favorite toggles it returns
// the state the server confirmed.
func (s *SyncService) execute(ctx context.Context, item domain.SyncQueueItem) (*domain.Favorite, error) {
	switch item.Operation {
	case domain.OpToggleFavoriteNews, domain.OpToggleFavoritePlayer:
		entityType, entityID, err := favoriteTarget(item)
		if err != nil {
			return nil, malformed(item, err)
		}

		result, err := s.remote.ToggleFavorite(ctx, entityType, entityID)
		if err != nil {
			return nil, err
		}
		return &domain.Favorite{
			EntityType:  entityType,
			EntityID:    entityID,
			IsFavorited: result.IsFavorited,
			Synced:      true,
		}, nil

	case domain.OpCreateComment:
		var p domain.CommentPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return nil, malformed(item, err)
		}
		_, err := s.remote.CreateComment(ctx, p)
		return nil, err

	default:
		return nil, &domain.ApplicationError{
			Procedure: string(item.Operation),
			Code:      "UNKNOWN_OPERATION",
			Message:   "operation not supported",
		}
	}
}

func favoriteTarget(item domain.SyncQueueItem) (domain.EntityType, int64, error) {
	var p domain.FavoritePayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return "", 0, err
	}
	if item.Operation == domain.OpToggleFavoritePlayer {
		return domain.EntityPlayer, p.EntityID, nil
	}
	return domain.EntityNews, p.EntityID, nil
}

// writeFavorite stores the server's state once the item has left the queue,
// unless a later toggle for the same entity is still queued; that toggle's
// optimistic state wins locally.
func (s *SyncService) writeFavorite(ctx context.Context, item domain.SyncQueueItem, fav domain.Favorite) {
	later, err := s.queue.HasPending(ctx, item.OrderingKey())
	if err != nil {
		s.logger.Warn("failed to check queued toggles", "id", item.ID, "error", err)
		return
	}
	if later {
		return
	}

	fav.UpdatedAt = s.now()
	if _, err := s.favorites.Put(ctx, fav); err != nil {
		s.logger.Warn("favorite write-through failed", "id", item.ID, "error", err)
	}
}

// discardFavorite drops the optimistic state of an abandoned toggle so the
// next read goes to the server. A later queued toggle keeps its own state.
func (s *SyncService) discardFavorite(ctx context.Context, item domain.SyncQueueItem) {
	entityType, entityID, err := favoriteTarget(item)
	if err != nil {
		return
	}

	later, err := s.queue.HasPending(ctx, item.OrderingKey())
	if err != nil {
		s.logger.Warn("failed to check queued toggles", "id", item.ID, "error", err)
		return
	}
	if later {
		return
	}

	if err := s.favorites.Delete(ctx, entityType, entityID); err != nil {
		s.logger.Warn("failed to discard abandoned favorite", "id", item.ID, "error", err)
	}
}

func (s *SyncService) abandon(ctx context.Context, item domain.SyncQueueItem, reason error) {
	if err := s.queue.Abandon(ctx, item.ID); err != nil {
		s.logger.Warn("failed to remove abandoned item", "id", item.ID, "error", err)
	}
	switch item.Operation {
	case domain.OpToggleFavoriteNews, domain.OpToggleFavoritePlayer:
		s.discardFavorite(ctx, item)
	}

	metrics.RecordItem(string(item.Operation), "abandoned")
	s.logger.Error("queue item abandoned",
		"id", item.ID,
		"operation", item.Operation,
		"retry_count", item.RetryCount,
		"error", reason,
	)

	if s.publisher != nil {
		if err := s.publisher.PublishDeadLetter(ctx, item, reason); err != nil {
			s.logger.Warn("failed to publish dead letter", "id", item.ID, "error", err)
		}
	}
	if s.onAbandoned != nil {
		s.onAbandoned(item, reason)
	}
}

// Backoff returns the delay before retrying an item that has already
// failed retryCount times.
func (s *SyncService) Backoff(retryCount int) time.Duration {
	backoff := s.config.InitialBackoff
	for i := 0; i < retryCount; i++ {
		backoff *= 2
		if backoff >= s.config.MaxBackoff {
			return s.config.MaxBackoff
		}
	}
	if backoff > s.config.MaxBackoff {
		backoff = s.config.MaxBackoff
	}
	return backoff
}

func malformed(item domain.SyncQueueItem, err error) error {
	return &domain.ApplicationError{
		Procedure: string(item.Operation),
		Code:      "MALFORMED_PAYLOAD",
		Message:   err.Error(),
	}
}
