package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/tweetshelf/app/auth"
	"github.com/lysyi3m/tweetshelf/app/bookmarks"
	"github.com/lysyi3m/tweetshelf/app/database"
	"github.com/lysyi3m/tweetshelf/app/feed"
)

type BookmarkService interface {
	Gallery(ctx context.Context) ([]bookmarks.CategoryWithPosts, error)
	CreateCategory(ctx context.Context, name string) (*database.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	ReorderCategories(ctx context.Context, ids []int64) error
	SaveFromURL(ctx context.Context, req bookmarks.SaveRequest) (*database.Post, error)
	DeletePost(ctx context.Context, id int64) error
	CategoryPosts(ctx context.Context, categoryID int64) (*bookmarks.CategoryWithPosts, error)
}

var _ BookmarkService = (*bookmarks.Service)(nil)

type FeedGenerator interface {
	Run(category database.Category, posts []database.Post) (string, error)
}

var _ FeedGenerator = (*feed.Generator)(nil)

type CredentialChecker interface {
	Check(username, password string) bool
}

var _ CredentialChecker = (*auth.Authenticator)(nil)

type Handler struct {
	service   BookmarkService
	generator FeedGenerator
	version   string
}

type postView struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Text        string    `json:"text"`
	Author      string    `json:"author"`
	Handle      string    `json:"handle"`
	Timestamp   string    `json:"timestamp"`
	MediaURLs   []string  `json:"media_urls"`
	OriginalURL string    `json:"original_url"`
	AddedBy     string    `json:"added_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type categoryView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// galleryCategoryView always carries posts, empty categories included.
type galleryCategoryView struct {
	categoryView
	Posts []postView `json:"posts"`
}

func newPostView(p database.Post) postView {
	media := p.MediaURLs
	if media == nil {
		media = []string{}
	}
	return postView{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Text:        p.Text,
		Author:      p.Author,
		Handle:      p.Handle,
		Timestamp:   p.Timestamp,
		MediaURLs:   media,
		OriginalURL: p.OriginalURL,
		AddedBy:     p.AddedBy,
		CreatedAt:   p.CreatedAt.In(time.Local),
	}
}

func newCategoryView(c database.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Position: c.Position}
}

// flexID accepts category ids sent either as JSON numbers or strings.
type flexID int64

func (f *flexID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid category id %s", data)
		}
		raw = n.String()
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid category id %s", data)
	}

	*f = flexID(id)
	return nil
}

type orderRequest struct {
	Order []flexID `json:"order"`
}
