package domain

import (
	"fmt"
	"time"
)

type EntityType string

const (
	EntityNews   EntityType = "news"
	EntityPlayer EntityType = "player"
)

func (t EntityType) Valid() bool {
	return t == EntityNews || t == EntityPlayer
}

// Favorite mirrors a favorite relationship. Synced is false while the
// local state has not been confirmed by the server.
type Favorite struct {
	EntityType  EntityType `json:"entityType" validate:"required,oneof=news player"`
	EntityID    int64      `json:"entityId" validate:"required,gt=0"`
	IsFavorited bool       `json:"isFavorited"`
	Synced      bool       `json:"synced"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CachedAt    time.Time  `json:"cachedAt"`
}

func (f Favorite) Key() string {
	return FavoriteKey(f.EntityType, f.EntityID)
}

func FavoriteKey(entityType EntityType, entityID int64) string {
	return fmt.Sprintf("%s:%d", entityType, entityID)
}

type ToggleResult struct {
	IsFavorited bool `json:"isFavorited"`
}

type CommentInput struct {
	NewsID   int64  `json:"newsId" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required,max=2000"`
	ParentID *int64 `json:"parentId,omitempty"`
}

type CommentResult struct {
	ID int64 `json:"id"`
}
