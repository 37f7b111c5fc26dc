package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var ErrExtractionFailed = errors.New("extraction failed")

// Post is the normalized result of scraping a tweet page.
type Post struct {
	Text      string
	Author    string
	Handle    string
	Timestamp string
	Media     []string
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Run extracts a post from an already fetched HTML document. Fields that no
// selector matches fall back to sentinels; only unreadable input is an error.
func (e *Extractor) Run(data []byte) (*Post, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: HTML data is empty", ErrExtractionFailed)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	post := &Post{
		Text:      TextNotFound,
		Author:    UnknownAuthor,
		Timestamp: UnknownTimestamp,
	}

	if text := first(textCascade, doc); text != "" {
		post.Text = text
	}

	if author := first(authorCascade, doc); author != "" {
		post.Author, post.Handle = splitAuthor(author)
	}

	if timestamp := first(timestampCascade, doc); timestamp != "" {
		post.Timestamp = timestamp
	}

	media := mediaCascade.Run(doc)
	if len(media) == 0 {
		media = mediaMetaCascade.Run(doc)
	}
	post.Media = dedupe(media)

	slog.Debug("Post extracted",
		"author", post.Author,
		"handle", post.Handle,
		"timestamp", post.Timestamp,
		"media", len(post.Media))

	return post, nil
}

func first(c Cascade, doc *goquery.Document) string {
	values := c.Run(doc)
	if len(values) == 0 {
		slog.Debug("No selector matched", "field", c.Field, "selectors", len(c.Selectors))
		return ""
	}
	return values[0]
}

// splitAuthor splits "Jane Doe @janedoe" into display name and handle.
func splitAuthor(value string) (string, string) {
	if !strings.Contains(value, "@") {
		return value, ""
	}

	parts := strings.Split(value, " @")
	author := strings.TrimSpace(parts[0])
	handle := ""
	if len(parts) > 1 {
		handle = strings.TrimSpace(parts[1])
	}

	if author == "" {
		author = UnknownAuthor
	}

	return author, handle
}
