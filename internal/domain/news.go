package domain

import "time"

type News struct {
	ID          int64     `json:"id" validate:"required,gt=0"`
	Slug        string    `json:"slug" validate:"required,max=255"`
	Title       string    `json:"title" validate:"required"`
	Summary     string    `json:"summary,omitempty"`
	Content     string    `json:"content,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty" validate:"omitempty,url"`
	CategoryID  int64     `json:"categoryId" validate:"gte=0"`
	Author      string    `json:"author,omitempty"`
	Views       int64     `json:"views" validate:"gte=0"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CachedAt    time.Time `json:"cachedAt"`
}

type Player struct {
	ID          int64       `json:"id" validate:"required,gt=0"`
	Slug        string      `json:"slug" validate:"required,max=255"`
	Name        string      `json:"name" validate:"required"`
	Position    string      `json:"position,omitempty"`
	Nationality string      `json:"nationality,omitempty"`
	Number      int         `json:"number" validate:"gte=0,lte=99"`
	TeamID      int64       `json:"teamId" validate:"gte=0"`
	TeamName    string      `json:"teamName,omitempty"`
	Stats       PlayerStats `json:"stats"`
	CachedAt    time.Time   `json:"cachedAt"`
}

type PlayerStats struct {
	Appearances int     `json:"appearances" validate:"gte=0"`
	Goals       int     `json:"goals" validate:"gte=0"`
	Assists     int     `json:"assists" validate:"gte=0"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=10"`
}

type Category struct {
	ID          int64     `json:"id" validate:"required,gt=0"`
	Slug        string    `json:"slug" validate:"required,max=255"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	CachedAt    time.Time `json:"cachedAt"`
}

// NewsFilter narrows news.list results. Zero values mean "any".
type NewsFilter struct {
	CategoryID int64  `json:"categoryId,omitempty"`
	Search     string `json:"search,omitempty"`
}

// PlayerFilter narrows players.list results. Zero values mean "any".
type PlayerFilter struct {
	TeamID   int64  `json:"teamId,omitempty"`
	Position string `json:"position,omitempty"`
}
