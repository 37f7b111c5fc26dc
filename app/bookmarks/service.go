package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/tweetshelf/app/database"
)

const defaultAddedBy = "unknown"

// CategoryWithPosts is one gallery section.
type CategoryWithPosts struct {
	database.Category
	Posts []database.Post
}

type SaveRequest struct {
	URL         string
	CategoryID  int64
	NewCategory string // Takes precedence over CategoryID when set
	AddedBy     string
}

type Service struct {
	categories database.CategoryRepository
	posts      database.PostRepository
	fetcher    PageFetcher
	extractor  PostExtractor
	mirror     MediaMirror
}

func NewService(categories database.CategoryRepository, posts database.PostRepository,
	fetcher PageFetcher, extractor PostExtractor, mirror MediaMirror) *Service {
	return &Service{
		categories: categories,
		posts:      posts,
		fetcher:    fetcher,
		extractor:  extractor,
		mirror:     mirror,
	}
}

func (s *Service) ListCategoriesOrdered(ctx context.Context) ([]database.Category, error) {
	return s.categories.List(ctx)
}

// FindCategoryByName returns nil when no category has that name.
func (s *Service) FindCategoryByName(ctx context.Context, name string) (*database.Category, error) {
	return s.categories.GetByName(ctx, strings.TrimSpace(name))
}

// CreateCategory appends a category after the current last position.
func (s *Service) CreateCategory(ctx context.Context, name string) (*database.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	existing, err := s.categories.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrCategoryExists, name)
	}

	maxPosition, err := s.categories.MaxPosition(ctx)
	if err != nil {
		return nil, err
	}

	category, err := s.categories.Create(ctx, name, maxPosition+1)
	if errors.Is(err, database.ErrConflict) {
		return nil, fmt.Errorf("%w: %s", ErrCategoryExists, name)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Category created", "category_id", category.ID, "name", category.Name, "position", category.Position)
	return category, nil
}

// DeleteCategory removes a category with all of its posts and the mirrored
// media only they reference. Individual post failures are logged and do not
// stop the delete.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	category, err := s.categories.Get(ctx, id)
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("%w: %d", ErrCategoryNotFound, id)
	}

	posts, err := s.posts.ListByCategory(ctx, id)
	if err != nil {
		return err
	}

	shared, err := s.sharedRefs(ctx, posts)
	if err != nil {
		return err
	}

	removed := 0
	for _, post := range posts {
		s.unmirror(post, shared)

		if _, err := s.posts.Delete(ctx, post.ID); err != nil {
			slog.Warn("Failed to delete post, continuing", "category_id", id, "post_id", post.ID, "error", err)
			continue
		}
		removed++
	}

	if _, err := s.categories.Delete(ctx, id); err != nil {
		return err
	}

	slog.Info("Category deleted", "category_id", id, "name", category.Name, "posts", removed)
	return nil
}

// ReorderCategories sets each category's position to its index in ids.
// Unknown ids are skipped.
func (s *Service) ReorderCategories(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return ErrEmptyOrder
	}

	for position, id := range ids {
		found, err := s.categories.UpdatePosition(ctx, id, position)
		if err != nil {
			return err
		}
		if !found {
			slog.Warn("Unknown category in order, skipping", "category_id", id, "position", position)
		}
	}

	slog.Debug("Categories reordered", "count", len(ids))
	return nil
}

func (s *Service) CreatePost(ctx context.Context, post *database.Post) (*database.Post, error) {
	category, err := s.categories.Get(ctx, post.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("%w: %d", ErrCategoryNotFound, post.CategoryID)
	}

	return s.posts.Create(ctx, post)
}

// DeletePost removes the post's mirrored media and then the post itself.
// Media another post also references is kept.
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("%w: %d", ErrPostNotFound, id)
	}

	shared, err := s.sharedRefs(ctx, []database.Post{*post})
	if err != nil {
		return err
	}

	s.unmirror(*post, shared)

	found, err := s.posts.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrPostNotFound, id)
	}

	slog.Info("Post deleted", "post_id", id, "category_id", post.CategoryID)
	return nil
}

func (s *Service) ListPostsByCategory(ctx context.Context, categoryID int64) ([]database.Post, error) {
	return s.posts.ListByCategory(ctx, categoryID)
}

// CategoryPosts returns a single gallery section.
func (s *Service) CategoryPosts(ctx context.Context, categoryID int64) (*CategoryWithPosts, error) {
	category, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("%w: %d", ErrCategoryNotFound, categoryID)
	}

	posts, err := s.posts.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []database.Post{}
	}

	return &CategoryWithPosts{Category: *category, Posts: posts}, nil
}

// Gallery returns every category in display order with its posts.
func (s *Service) Gallery(ctx context.Context) ([]CategoryWithPosts, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}

	gallery := make([]CategoryWithPosts, 0, len(categories))
	for _, category := range categories {
		posts, err := s.posts.ListByCategory(ctx, category.ID)
		if err != nil {
			return nil, err
		}
		if posts == nil {
			posts = []database.Post{}
		}
		gallery = append(gallery, CategoryWithPosts{Category: category, Posts: posts})
	}

	return gallery, nil
}

// SaveFromURL fetches a tweet page, extracts it, mirrors its media and
// stores the result. Nothing is stored when fetching or extraction fails.
func (s *Service) SaveFromURL(ctx context.Context, req SaveRequest) (*database.Post, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, ErrEmptyURL
	}

	category, err := s.resolveCategory(ctx, req.CategoryID, req.NewCategory)
	if err != nil {
		return nil, err
	}

	data, err := s.fetcher.Run(ctx, url)
	if err != nil {
		slog.Warn("Failed to fetch tweet", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	extracted, err := s.extractor.Run(data)
	if err != nil {
		slog.Warn("Failed to extract tweet", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	refs := s.mirror.RunAll(ctx, extracted.Media)

	addedBy := strings.TrimSpace(req.AddedBy)
	if addedBy == "" {
		addedBy = defaultAddedBy
	}

	post, err := s.CreatePost(ctx, &database.Post{
		CategoryID:  category.ID,
		Text:        extracted.Text,
		Author:      extracted.Author,
		Handle:      extracted.Handle,
		Timestamp:   extracted.Timestamp,
		MediaURLs:   refs,
		OriginalURL: url,
		AddedBy:     addedBy,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Tweet saved",
		"post_id", post.ID,
		"category_id", category.ID,
		"url", url,
		"author", post.Author,
		"media", len(post.MediaURLs))

	return post, nil
}

func (s *Service) resolveCategory(ctx context.Context, categoryID int64, newName string) (*database.Category, error) {
	if name := strings.TrimSpace(newName); name != "" {
		existing, err := s.categories.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		return s.CreateCategory(ctx, name)
	}

	if categoryID <= 0 {
		return nil, ErrNoCategory
	}

	category, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("%w: %d", ErrCategoryNotFound, categoryID)
	}

	return category, nil
}

// sharedRefs returns the media references still used by posts outside deleting.
// Mirrored files are named by URL, so one file can back several posts.
func (s *Service) sharedRefs(ctx context.Context, deleting []database.Post) (map[string]bool, error) {
	all, err := s.posts.AllMediaURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load media references: %w", err)
	}

	counts := make(map[string]int, len(all))
	for _, ref := range all {
		counts[ref]++
	}
	for _, post := range deleting {
		for _, ref := range post.MediaURLs {
			counts[ref]--
		}
	}

	shared := make(map[string]bool)
	for ref, n := range counts {
		if n > 0 {
			shared[ref] = true
		}
	}

	return shared, nil
}

func (s *Service) unmirror(post database.Post, shared map[string]bool) {
	for _, ref := range post.MediaURLs {
		if shared[ref] {
			slog.Debug("Media still referenced, keeping", "post_id", post.ID, "ref", ref)
			continue
		}
		if err := s.mirror.Remove(ref); err != nil {
			slog.Warn("Failed to remove media", "post_id", post.ID, "ref", ref, "error", err)
		}
	}
}
