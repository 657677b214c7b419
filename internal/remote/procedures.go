package remote

import (
	"context"
	"fmt"

	"news_offline/internal/domain"
)

// Procedure names.
const (
	ProcNewsList        = "news.list"
	ProcNewsBySlug      = "news.getBySlug"
	ProcNewsByID        = "news.getById"
	ProcPlayersList     = "players.list"
	ProcPlayerBySlug    = "players.getBySlug"
	ProcPlayerByID      = "players.getById"
	ProcCategoriesList  = "categories.list"
	ProcFavoritesToggle = "favorites.toggle"
	ProcFavoritesCheck  = "favorites.isFavorited"
	ProcCommentsCreate  = "comments.create"
)

type listInput[F any] struct {
	Filter F   `json:"filter"`
	Limit  int `json:"limit,omitempty"`
}

type slugInput struct {
	Slug string `json:"slug"`
}

type idInput struct {
	ID int64 `json:"id"`
}

type favoriteInput struct {
	EntityType domain.EntityType `json:"entityType"`
	EntityID   int64             `json:"entityId"`
}

// queryOne fetches a single entity. A null result means the server has no
// such entity.
func queryOne[T any](ctx context.Context, c *Client, procedure string, input any) (*T, error) {
	var out *T
	if err := c.query(ctx, procedure, input, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%s: empty result: %w", procedure, domain.ErrNotFound)
	}
	return out, nil
}

func (c *Client) ListNews(ctx context.Context, filter domain.NewsFilter, limit int) ([]domain.News, error) {
	var out []domain.News
	err := c.query(ctx, ProcNewsList, listInput[domain.NewsFilter]{Filter: filter, Limit: limit}, &out)
	return out, err
}

func (c *Client) NewsBySlug(ctx context.Context, slug string) (*domain.News, error) {
	return queryOne[domain.News](ctx, c, ProcNewsBySlug, slugInput{Slug: slug})
}

func (c *Client) NewsByID(ctx context.Context, id int64) (*domain.News, error) {
	return queryOne[domain.News](ctx, c, ProcNewsByID, idInput{ID: id})
}

func (c *Client) ListPlayers(ctx context.Context, filter domain.PlayerFilter, limit int) ([]domain.Player, error) {
	var out []domain.Player
	err := c.query(ctx, ProcPlayersList, listInput[domain.PlayerFilter]{Filter: filter, Limit: limit}, &out)
	return out, err
}

func (c *Client) PlayerBySlug(ctx context.Context, slug string) (*domain.Player, error) {
	return queryOne[domain.Player](ctx, c, ProcPlayerBySlug, slugInput{Slug: slug})
}

func (c *Client) PlayerByID(ctx context.Context, id int64) (*domain.Player, error) {
	return queryOne[domain.Player](ctx, c, ProcPlayerByID, idInput{ID: id})
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := c.query(ctx, ProcCategoriesList, nil, &out)
	return out, err
}

// ToggleFavorite flips the favorite on the server and returns the
// resulting state.
func (c *Client) ToggleFavorite(ctx context.Context, entityType domain.EntityType, entityID int64) (domain.ToggleResult, error) {
	var out domain.ToggleResult
	err := c.mutate(ctx, ProcFavoritesToggle, favoriteInput{EntityType: entityType, EntityID: entityID}, &out)
	return out, err
}

func (c *Client) IsFavorited(ctx context.Context, entityType domain.EntityType, entityID int64) (bool, error) {
	var out domain.ToggleResult
	err := c.query(ctx, ProcFavoritesCheck, favoriteInput{EntityType: entityType, EntityID: entityID}, &out)
	return out.IsFavorited, err
}

func (c *Client) CreateComment(ctx context.Context, input domain.CommentInput) (domain.CommentResult, error) {
	var out domain.CommentResult
	err := c.mutate(ctx, ProcCommentsCreate, input, &out)
	return out, err
}
