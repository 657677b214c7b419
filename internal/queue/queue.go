// Package queue persists mutations made while offline until the sync
// engine delivers them.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

type Queue struct {
	store  store.Store
	clock  func() time.Time
	logger *slog.Logger

	// mu serializes read-modify-write cycles on items.
	mu sync.Mutex
}

func New(s store.Store, logger *slog.Logger, clock func() time.Time) *Queue {
	if clock == nil {
		clock = time.Now
	}
	return &Queue{
		store:  s,
		clock:  clock,
		logger: logger.With("component", "queue"),
	}
}

func itemKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func orderKey(item domain.SyncQueueItem) string {
	return store.Compose(store.TimeKey(item.CreatedAt), store.IntKey(int64(item.ID)))
}

// Enqueue appends a pending operation. The payload is stored as JSON.
func (q *Queue) Enqueue(ctx context.Context, op domain.OperationType, payload any) (domain.SyncQueueItem, error) {
	data, err := store.Encode(payload)
	if err != nil {
		return domain.SyncQueueItem{}, fmt.Errorf("encode %s payload: %w", op, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id, err := q.store.NextSequence(ctx, store.SyncQueue)
	if err != nil {
		return domain.SyncQueueItem{}, fmt.Errorf("%w: allocate queue id: %w", domain.ErrCacheWrite, err)
	}

	item := domain.SyncQueueItem{
		ID:        id,
		Operation: op,
		Payload:   data,
		CreatedAt: q.clock(),
		Status:    domain.StatusPending,
	}
	if err := q.put(ctx, item); err != nil {
		return domain.SyncQueueItem{}, err
	}

	q.logger.Debug("enqueued", "id", id, "operation", op)
	return item, nil
}

// ListPending returns every undelivered item in FIFO order. Items left in
// syncing by an interrupted drain are reported as pending.
func (q *Queue) ListPending(ctx context.Context) ([]domain.SyncQueueItem, error) {
	recs, err := q.store.Scan(ctx, store.SyncQueue, store.IndexOrder, store.All, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: list queue: %w", domain.ErrCacheRead, err)
	}

	items := make([]domain.SyncQueueItem, 0, len(recs))
	for _, rec := range recs {
		var item domain.SyncQueueItem
		if err := store.Decode(rec.Data, &item); err != nil {
			q.logger.Warn("skipping undecodable queue item", "key", rec.Key, "error", err)
			continue
		}
		if item.Status == domain.StatusSyncing {
			item.Status = domain.StatusPending
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *Queue) Get(ctx context.Context, id uint64) (domain.SyncQueueItem, error) {
	rec, err := q.store.Get(ctx, store.SyncQueue, itemKey(id))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.SyncQueueItem{}, fmt.Errorf("queue item %d: %w", id, err)
	}
	if err != nil {
		return domain.SyncQueueItem{}, fmt.Errorf("%w: queue item %d: %w", domain.ErrCacheRead, id, err)
	}

	var item domain.SyncQueueItem
	if err := store.Decode(rec.Data, &item); err != nil {
		return domain.SyncQueueItem{}, fmt.Errorf("%w: decode queue item %d: %w", domain.ErrCacheRead, id, err)
	}
	return item, nil
}

func (q *Queue) MarkSyncing(ctx context.Context, id uint64) (domain.SyncQueueItem, error) {
	return q.update(ctx, id, func(item *domain.SyncQueueItem) {
		now := q.clock()
		item.Status = domain.StatusSyncing
		item.LastAttemptAt = &now
	})
}

// MarkSynced removes a delivered item.
func (q *Queue) MarkSynced(ctx context.Context, id uint64) error {
	return q.remove(ctx, id)
}

// MarkFailed records a failed attempt and schedules the next one.
func (q *Queue) MarkFailed(ctx context.Context, id uint64, cause error, nextAttemptAt time.Time) (domain.SyncQueueItem, error) {
	return q.update(ctx, id, func(item *domain.SyncQueueItem) {
		now := q.clock()
		item.Status = domain.StatusFailed
		item.RetryCount++
		item.LastAttemptAt = &now
		item.NextAttemptAt = &nextAttemptAt
		if cause != nil {
			item.LastError = cause.Error()
		}
	})
}

// Abandon removes an item that will never be delivered.
func (q *Queue) Abandon(ctx context.Context, id uint64) error {
	return q.remove(ctx, id)
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.store.Count(ctx, store.SyncQueue)
	if err != nil {
		return 0, fmt.Errorf("%w: count queue: %w", domain.ErrCacheRead, err)
	}
	return n, nil
}

// HasPending reports whether any queued item targets orderingKey.
func (q *Queue) HasPending(ctx context.Context, orderingKey string) (bool, error) {
	items, err := q.ListPending(ctx)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.OrderingKey() == orderingKey {
			return true, nil
		}
	}
	return false, nil
}

func (q *Queue) update(ctx context.Context, id uint64, fn func(*domain.SyncQueueItem)) (domain.SyncQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, err := q.Get(ctx, id)
	if err != nil {
		return domain.SyncQueueItem{}, err
	}
	fn(&item)
	if err := q.put(ctx, item); err != nil {
		return domain.SyncQueueItem{}, err
	}
	return item, nil
}

func (q *Queue) remove(ctx context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Delete(ctx, store.SyncQueue, itemKey(id)); err != nil {
		return fmt.Errorf("%w: remove queue item %d: %w", domain.ErrCacheWrite, id, err)
	}
	return nil
}

func (q *Queue) put(ctx context.Context, item domain.SyncQueueItem) error {
	data, err := store.Encode(item)
	if err != nil {
		return fmt.Errorf("encode queue item %d: %w", item.ID, err)
	}
	rec := store.Record{
		Key:     itemKey(item.ID),
		Indexes: map[string]string{store.IndexOrder: orderKey(item)},
		Data:    data,
	}
	if err := q.store.Put(ctx, store.SyncQueue, rec); err != nil {
		return fmt.Errorf("%w: store queue item %d: %w", domain.ErrCacheWrite, item.ID, err)
	}
	return nil
}
