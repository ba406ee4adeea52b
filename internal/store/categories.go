package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

const categoryColumns = `id, name, slug, parent_id`

func scanCategory(row scanner) (*models.Category, error) {
	var (
		category models.Category
		parentID sql.NullInt64
	)

	if err := row.Scan(&category.ID, &category.Name, &category.Slug, &parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, err
	}

	category.ParentID = int64Ptr(parentID)
	return &category, nil
}

func queryCategories(ctx context.Context, q database.Querier, query string, args ...any) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return categories, nil
}

func GetCategory(ctx context.Context, q database.Querier, id int64) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	category, err := scanCategory(q.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category, err
}

func ListChildren(ctx context.Context, q database.Querier, parentID int64) ([]models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE parent_id = $1
		ORDER BY name, id`

	categories, err := queryCategories(ctx, q, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return categories, nil
}

func ListCategories(ctx context.Context, q database.Querier) ([]models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY id`

	categories, err := queryCategories(ctx, q, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// SlugExists treats NULL parents as one sibling group.
func SlugExists(ctx context.Context, q database.Querier, parentID *int64, slug string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM categories
			WHERE parent_id IS NOT DISTINCT FROM $1
			  AND slug = $2
			  AND id <> $3
		)`

	var exists bool
	if err := q.QueryRowContext(ctx, query, nullInt64(parentID), slug, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func CreateCategory(ctx context.Context, q database.Querier, c *models.Category) error {
	query := `
		INSERT INTO categories (name, slug, parent_id)
		VALUES ($1, $2, $3)
		RETURNING id`

	if err := q.QueryRowContext(ctx, query, c.Name, c.Slug, nullInt64(c.ParentID)).Scan(&c.ID); err != nil {
		return fmt.Errorf("create category: %w", database.MapIntegrity(err))
	}
	return nil
}

func UpdateCategory(ctx context.Context, q database.Querier, c *models.Category) error {
	result, err := q.ExecContext(ctx,
		`UPDATE categories SET name = $2, slug = $3, parent_id = $4 WHERE id = $1`,
		c.ID, c.Name, c.Slug, nullInt64(c.ParentID))
	if err != nil {
		return fmt.Errorf("update category: %w", database.MapIntegrity(err))
	}
	return expectRow(result, database.ErrCategoryNotFound)
}

// DeleteCategory relies on ON DELETE CASCADE for the subtree and the
// product links.
func DeleteCategory(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", database.MapIntegrity(err))
	}
	return expectRow(result, database.ErrCategoryNotFound)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return GetCategory(ctx, s.db, id)
}

func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]models.Category, error) {
	return ListChildren(ctx, s.db, parentID)
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	return ListCategories(ctx, s.db)
}

func (s *Store) SlugExists(ctx context.Context, parentID *int64, slug string, excludeID int64) (bool, error) {
	return SlugExists(ctx, s.db, parentID, slug, excludeID)
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	return CreateCategory(ctx, s.db, c)
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	return UpdateCategory(ctx, s.db, c)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return DeleteCategory(ctx, s.db, id)
}
