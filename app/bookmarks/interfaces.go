package bookmarks

import (
	"context"

	"github.com/lysyi3m/tweetshelf/app/extract"
)

type PageFetcher interface {
	Run(ctx context.Context, url string) ([]byte, error)
}

type PostExtractor interface {
	Run(data []byte) (*extract.Post, error)
}

// MediaMirror turns remote media URLs into local references and removes them.
type MediaMirror interface {
	RunAll(ctx context.Context, urls []string) []string
	Remove(ref string) error
}
