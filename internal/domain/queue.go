package domain

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

type OperationType string

const (
	OpToggleFavoriteNews   OperationType = "toggle-favorite-news"
	OpToggleFavoritePlayer OperationType = "toggle-favorite-player"
	OpCreateComment        OperationType = "create-comment"
)

// ToggleOperation returns the queue operation that toggles a favorite of the given entity type.
func ToggleOperation(entityType EntityType) (OperationType, error) {
	switch entityType {
	case EntityNews:
		return OpToggleFavoriteNews, nil
	case EntityPlayer:
		return OpToggleFavoritePlayer, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}
}

type QueueStatus string

const (
	StatusPending QueueStatus = "pending"
	StatusSyncing QueueStatus = "syncing"
	StatusFailed  QueueStatus = "failed"
	StatusSynced  QueueStatus = "synced"
)

type SyncQueueItem struct {
	ID            uint64          `json:"id"`
	Operation     OperationType   `json:"operation"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
	RetryCount    int             `json:"retryCount"`
	LastAttemptAt *time.Time      `json:"lastAttemptAt,omitempty"`
	NextAttemptAt *time.Time      `json:"nextAttemptAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
	Status        QueueStatus     `json:"status"`
}

// FavoritePayload is the payload of both favorite toggle operations.
type FavoritePayload struct {
	EntityID int64 `json:"entityId"`
}

// CommentPayload is the payload of OpCreateComment.
type CommentPayload = CommentInput

// OrderingKey identifies the entity an item mutates. Items sharing a key
// must reach the server in enqueue order.
func (i SyncQueueItem) OrderingKey() string {
	switch i.Operation {
	case OpToggleFavoriteNews, OpToggleFavoritePlayer:
		var p FavoritePayload
		if err := json.Unmarshal(i.Payload, &p); err == nil {
			return OrderingKeyFor(i.Operation, p.EntityID)
		}
	case OpCreateComment:
		var p CommentPayload
		if err := json.Unmarshal(i.Payload, &p); err == nil {
			return OrderingKeyFor(i.Operation, p.NewsID)
		}
	}
	return string(i.Operation)
}

// OrderingKeyFor is the ordering key of op applied to entityID.
func OrderingKeyFor(op OperationType, entityID int64) string {
	return fmt.Sprintf("%s:%d", op, entityID)
}

// Ready reports whether the item's backoff has elapsed at now.
func (i SyncQueueItem) Ready(now time.Time) bool {
	return i.NextAttemptAt == nil || !i.NextAttemptAt.After(now)
}
