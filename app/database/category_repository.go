package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrConflict = errors.New("unique constraint violated")

var _ CategoryRepository = (*CategoryRepo)(nil)

type CategoryRepo struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, position
		FROM categories
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

func (r *CategoryRepo) Get(ctx context.Context, id int64) (*Category, error) {
	return r.getOne(ctx, "SELECT id, name, position FROM categories WHERE id = ?", id)
}

func (r *CategoryRepo) GetByName(ctx context.Context, name string) (*Category, error) {
	return r.getOne(ctx, "SELECT id, name, position FROM categories WHERE name = ?", name)
}

func (r *CategoryRepo) getOne(ctx context.Context, query string, arg interface{}) (*Category, error) {
	var c Category
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// MaxPosition returns the highest position in use, or -1 when there are no
// categories.
func (r *CategoryRepo) MaxPosition(ctx context.Context) (int, error) {
	var position int
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) FROM categories").Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("failed to get max category position: %w", err)
	}
	return position, nil
}

func (r *CategoryRepo) Create(ctx context.Context, name string, position int) (*Category, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO categories (name, position) VALUES (?, ?)", name, position)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q: %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}

	return &Category{ID: id, Name: name, Position: position}, nil
}

func (r *CategoryRepo) UpdatePosition(ctx context.Context, id int64, position int) (bool, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE categories SET position = ? WHERE id = ?", position, id)
	if err != nil {
		return false, fmt.Errorf("failed to update category position: %w", err)
	}
	return affected(res)
}

// Delete removes the category. Posts still referencing it are removed by the
// ON DELETE CASCADE constraint.
func (r *CategoryRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete category: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
