package bookmarks

import "errors"

var (
	ErrEmptyName        = errors.New("category name is empty")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryNotFound = errors.New("category not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrEmptyOrder       = errors.New("category order is empty")
	ErrEmptyURL         = errors.New("tweet URL is empty")
	ErrNoCategory       = errors.New("no category selected")
	ErrFetchFailed      = errors.New("failed to fetch tweet")
	ErrExtractionFailed = errors.New("failed to extract tweet")
)
