package hooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"news_offline/internal/cache"
	"news_offline/internal/domain"
	"news_offline/internal/metrics"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ToggleOutcome reports the favorite state the user should see. Queued
// means the server has not confirmed it yet.
type ToggleOutcome struct {
	IsFavorited bool
	Queued      bool
}

type FavoriteHooks struct {
	*base
	remote Remote
	cache  *cache.FavoriteCache
	queue  Queue
}

// Toggle flips a favorite. Online it goes straight to the server unless
// earlier toggles of the same entity are still queued; offline, or when the
// server is unreachable, the flip is applied locally and queued.
func (h *FavoriteHooks) Toggle(ctx context.Context, entityType domain.EntityType, entityID int64) (ToggleOutcome, error) {
	op, err := domain.ToggleOperation(entityType)
	if err != nil {
		return ToggleOutcome{}, err
	}
	if entityID <= 0 {
		return ToggleOutcome{}, fmt.Errorf("invalid %s id %d", entityType, entityID)
	}

	if h.online.Online() {
		outcome, done, err := h.toggleRemote(ctx, op, entityType, entityID)
		if done {
			return outcome, err
		}
	}

	return h.toggleLocal(ctx, op, entityType, entityID)
}

// toggleRemote reports done=false when the toggle must be queued instead.
func (h *FavoriteHooks) toggleRemote(ctx context.Context, op domain.OperationType, entityType domain.EntityType, entityID int64) (ToggleOutcome, bool, error) {
	key := domain.OrderingKeyFor(op, entityID)
	queued, err := h.queue.HasPending(ctx, key)
	if err != nil {
		h.logger.Warn("failed to check queued toggles", "key", key, "error", err)
	}
	if queued || err != nil {
		return ToggleOutcome{}, false, nil
	}

	res, err := h.remote.ToggleFavorite(ctx, entityType, entityID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrApplication), errors.Is(err, domain.ErrNotFound):
		return ToggleOutcome{}, true, err
	case ctx.Err() != nil:
		return ToggleOutcome{}, true, ctx.Err()
	default:
		h.logger.Info("toggle unreachable, queueing", "entity_type", entityType, "entity_id", entityID, "error", err)
		return ToggleOutcome{}, false, nil
	}

	_, err = h.cache.Put(ctx, domain.Favorite{
		EntityType:  entityType,
		EntityID:    entityID,
		IsFavorited: res.IsFavorited,
		Synced:      true,
	})
	if err != nil {
		h.logger.Warn("favorite write-through failed", "entity_type", entityType, "entity_id", entityID, "error", err)
	}
	return ToggleOutcome{IsFavorited: res.IsFavorited}, true, nil
}

// toggleLocal flips the cached state and queues the toggle. If the toggle
// cannot be queued the previous state is restored.
func (h *FavoriteHooks) toggleLocal(ctx context.Context, op domain.OperationType, entityType domain.EntityType, entityID int64) (ToggleOutcome, error) {
	prev, err := h.cache.Get(ctx, entityType, entityID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.logger.Warn("favorite read failed, assuming not favorited", "error", err)
	}
	current := prev != nil && prev.IsFavorited

	fav, err := h.cache.Put(ctx, domain.Favorite{
		EntityType:  entityType,
		EntityID:    entityID,
		IsFavorited: !current,
	})
	if err != nil {
		return ToggleOutcome{}, fmt.Errorf("store optimistic favorite: %w", err)
	}

	if _, err := h.queue.Enqueue(ctx, op, domain.FavoritePayload{EntityID: entityID}); err != nil {
		h.restore(ctx, entityType, entityID, prev)
		return ToggleOutcome{}, fmt.Errorf("queue favorite toggle: %w", err)
	}
	metrics.RecordItem(string(op), "queued")
	return ToggleOutcome{IsFavorited: fav.IsFavorited, Queued: true}, nil
}

func (h *FavoriteHooks) restore(ctx context.Context, entityType domain.EntityType, entityID int64, prev *domain.Favorite) {
	var err error
	if prev != nil {
		_, err = h.cache.Put(ctx, *prev)
	} else {
		err = h.cache.Delete(ctx, entityType, entityID)
	}
	if err != nil {
		h.logger.Warn("failed to restore favorite", "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// IsFavorited prefers an unconfirmed local state over the server's.
func (h *FavoriteHooks) IsFavorited(ctx context.Context, entityType domain.EntityType, entityID int64, opts ...ReadOption) (Result[bool], error) {
	if !entityType.Valid() {
		return Result[bool]{}, fmt.Errorf("unknown entity type %q", entityType)
	}
	if !h.enabled || !applyReadOptions(opts).enabled {
		return Result[bool]{}, nil
	}

	if local, err := h.cache.Get(ctx, entityType, entityID); err == nil && !local.Synced {
		return Result[bool]{Data: local.IsFavorited, Found: true, FromCache: true}, nil
	}

	return readThrough(ctx, h.base, read[bool]{
		entity: entityFavorites,
		key:    domain.FavoriteKey(entityType, entityID),
		cache: func(ctx context.Context) (bool, bool, error) {
			f, err := h.cache.Get(ctx, entityType, entityID)
			if err != nil {
				return false, false, err
			}
			return f.IsFavorited, true, nil
		},
		remote: func(ctx context.Context) (bool, error) {
			return h.remote.IsFavorited(ctx, entityType, entityID)
		},
		write: func(ctx context.Context, favorited bool) error {
			_, err := h.cache.Put(ctx, domain.Favorite{
				EntityType:  entityType,
				EntityID:    entityID,
				IsFavorited: favorited,
				Synced:      true,
			})
			return err
		},
	}, opts...)
}

// CommentOutcome carries the created comment, or Queued when it will be
// posted later.
type CommentOutcome struct {
	Comment *domain.CommentResult
	Queued  bool
}

type CommentHooks struct {
	*base
	remote Remote
	queue  Queue
}

func (h *CommentHooks) Create(ctx context.Context, input domain.CommentInput) (CommentOutcome, error) {
	if err := validate.Struct(input); err != nil {
		return CommentOutcome{}, fmt.Errorf("invalid comment: %w", err)
	}

	if h.online.Online() {
		key := domain.OrderingKeyFor(domain.OpCreateComment, input.NewsID)
		queued, err := h.queue.HasPending(ctx, key)
		if err == nil && !queued {
			res, err := h.remote.CreateComment(ctx, input)
			switch {
			case err == nil:
				return CommentOutcome{Comment: &res}, nil
			case errors.Is(err, domain.ErrApplication), errors.Is(err, domain.ErrNotFound):
				return CommentOutcome{}, err
			case ctx.Err() != nil:
				return CommentOutcome{}, ctx.Err()
			}
			h.logger.Info("comment unreachable, queueing", "news_id", input.NewsID, "error", err)
		}
	}

	if _, err := h.queue.Enqueue(ctx, domain.OpCreateComment, input); err != nil {
		return CommentOutcome{}, fmt.Errorf("queue comment: %w", err)
	}
	metrics.RecordItem(string(domain.OpCreateComment), "queued")
	return CommentOutcome{Queued: true}, nil
}
