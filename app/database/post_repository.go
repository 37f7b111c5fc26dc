package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var _ PostRepository = (*PostRepo)(nil)

type PostRepo struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepo {
	return &PostRepo{db: db}
}

const postColumns = `id, category_id, text, author, handle, timestamp, media_urls, original_url, added_by, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (Post, error) {
	var p Post
	var mediaJSON string

	err := row.Scan(&p.ID, &p.CategoryID, &p.Text, &p.Author, &p.Handle, &p.Timestamp,
		&mediaJSON, &p.OriginalURL, &p.AddedBy, &p.CreatedAt)
	if err != nil {
		return Post{}, err
	}

	p.MediaURLs, err = decodeMedia(mediaJSON)
	if err != nil {
		return Post{}, fmt.Errorf("post %d: %w", p.ID, err)
	}

	return p, nil
}

func (r *PostRepo) Get(ctx context.Context, id int64) (*Post, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id)

	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &p, nil
}

func (r *PostRepo) List(ctx context.Context) ([]Post, error) {
	return r.query(ctx, "SELECT "+postColumns+" FROM posts ORDER BY id ASC")
}

// ListByCategory returns the posts of one category, newest first.
func (r *PostRepo) ListByCategory(ctx context.Context, categoryID int64) ([]Post, error) {
	return r.query(ctx, "SELECT "+postColumns+`
		FROM posts
		WHERE category_id = ?
		ORDER BY created_at DESC, id DESC`, categoryID)
}

func (r *PostRepo) query(ctx context.Context, query string, args ...interface{}) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

func (r *PostRepo) CountByCategory(ctx context.Context) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT category_id, COUNT(*) FROM posts GROUP BY category_id")
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var categoryID int64
		var count int
		if err := rows.Scan(&categoryID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan post count: %w", err)
		}
		counts[categoryID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post count rows: %w", err)
	}

	return counts, nil
}

// AllMediaURLs returns every media reference stored across all posts.
func (r *PostRepo) AllMediaURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT media_urls FROM posts")
	if err != nil {
		return nil, fmt.Errorf("failed to query media urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var mediaJSON string
		if err := rows.Scan(&mediaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan media urls: %w", err)
		}

		media, err := decodeMedia(mediaJSON)
		if err != nil {
			return nil, err
		}
		urls = append(urls, media...)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media rows: %w", err)
	}

	return urls, nil
}

func (r *PostRepo) Create(ctx context.Context, post *Post) (*Post, error) {
	mediaJSON, err := encodeMedia(post.MediaURLs)
	if err != nil {
		return nil, err
	}

	created := *post
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	created.CreatedAt = created.CreatedAt.UTC()
	if created.AddedBy == "" {
		created.AddedBy = "unknown"
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO posts (category_id, text, author, handle, timestamp, media_urls, original_url, added_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, created.CategoryID, created.Text, created.Author, created.Handle, created.Timestamp,
		mediaJSON, created.OriginalURL, created.AddedBy, created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	created.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get post id: %w", err)
	}

	return &created, nil
}

func (r *PostRepo) UpdateMediaURLs(ctx context.Context, id int64, mediaURLs []string) error {
	mediaJSON, err := encodeMedia(mediaURLs)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, "UPDATE posts SET media_urls = ? WHERE id = ?", mediaJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update media urls: %w", err)
	}

	return nil
}

func (r *PostRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	return affected(res)
}

func encodeMedia(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("failed to encode media urls: %w", err)
	}
	return string(data), nil
}

func decodeMedia(data string) ([]string, error) {
	urls := []string{}
	if data == "" {
		return urls, nil
	}
	if err := json.Unmarshal([]byte(data), &urls); err != nil {
		return nil, fmt.Errorf("failed to decode media urls: %w", err)
	}
	return urls, nil
}
