package database

import (
	"time"
)

type Category struct {
	ID       int64
	Name     string
	Position int
}

type Post struct {
	ID          int64
	CategoryID  int64
	Text        string
	Author      string
	Handle      string
	Timestamp   string   // As shown on the page, not parsed
	MediaURLs   []string // Local "/media/<name>" refs or remote URLs when mirroring failed
	OriginalURL string
	AddedBy     string
	CreatedAt   time.Time
}
