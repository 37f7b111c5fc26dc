package database

import (
	"context"
)

// CategoryRepository persists categories. Get and GetByName return nil, nil
// when nothing matches.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	Get(ctx context.Context, id int64) (*Category, error)
	GetByName(ctx context.Context, name string) (*Category, error)
	MaxPosition(ctx context.Context) (int, error)

	Create(ctx context.Context, name string, position int) (*Category, error)
	UpdatePosition(ctx context.Context, id int64, position int) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type PostRepository interface {
	Get(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context) ([]Post, error)
	ListByCategory(ctx context.Context, categoryID int64) ([]Post, error)
	CountByCategory(ctx context.Context) (map[int64]int, error)
	AllMediaURLs(ctx context.Context) ([]string, error)

	Create(ctx context.Context, post *Post) (*Post, error)
	UpdateMediaURLs(ctx context.Context, id int64, mediaURLs []string) error
	Delete(ctx context.Context, id int64) (bool, error)
}
