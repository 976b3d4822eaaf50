package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

const categoryColumns = "id, moodle_id, name, description, parent_id, path, created_at, updated_at"

// CategoryRepository handles database operations for categories.
type CategoryRepository struct {
	DB *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

// Upsert inserts the category or overwrites every non-key field of the row
// with the same moodle_id.
func (r *CategoryRepository) Upsert(ctx context.Context, c *Category) error {
	query := upsertQuery(r.DB.DriverName(), "moodle_categories",
		[]string{"moodle_id", "name", "description", "parent_id", "path"},
		[]string{"moodle_id"},
		[]string{"name", "description", "parent_id", "path"})
	if _, err := r.DB.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to upsert category %d: %w", c.MoodleID, err)
	}
	return nil
}

// GetByMoodleID finds a category by its remote id.
func (r *CategoryRepository) GetByMoodleID(ctx context.Context, moodleID int64) (*Category, error) {
	var category Category
	err := r.DB.GetContext(ctx, &category, "SELECT "+categoryColumns+" FROM moodle_categories WHERE moodle_id = ?", moodleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found is not an error
		}
		return nil, err
	}
	return &category, nil
}

// GetAll retrieves all categories ordered by path, so parents precede children.
func (r *CategoryRepository) GetAll(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	err := r.DB.SelectContext(ctx, &categories, "SELECT "+categoryColumns+" FROM moodle_categories ORDER BY path, name")
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// GetTopLevel retrieves the roots of the category forest.
func (r *CategoryRepository) GetTopLevel(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	err := r.DB.SelectContext(ctx, &categories, "SELECT "+categoryColumns+" FROM moodle_categories WHERE parent_id = 0 ORDER BY name")
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// GetChildren retrieves the direct children of a category.
func (r *CategoryRepository) GetChildren(ctx context.Context, parentID int64) ([]*Category, error) {
	var categories []*Category
	err := r.DB.SelectContext(ctx, &categories, "SELECT "+categoryColumns+" FROM moodle_categories WHERE parent_id = ? ORDER BY name", parentID)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// GetChildIDs returns the remote ids of the direct children of a category.
func (r *CategoryRepository) GetChildIDs(ctx context.Context, parentID int64) ([]int64, error) {
	var ids []int64
	err := r.DB.SelectContext(ctx, &ids, "SELECT moodle_id FROM moodle_categories WHERE parent_id = ? ORDER BY moodle_id", parentID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountChildren counts the direct children of a category.
func (r *CategoryRepository) CountChildren(ctx context.Context, parentID int64) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM moodle_categories WHERE parent_id = ?", parentID)
	return n, err
}

// GetByMoodleIDs retrieves the categories whose remote ids are listed.
func (r *CategoryRepository) GetByMoodleIDs(ctx context.Context, ids []int64) ([]*Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+categoryColumns+" FROM moodle_categories WHERE moodle_id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var categories []*Category
	if err := r.DB.SelectContext(ctx, &categories, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetIDsByPath returns the remote ids of the category at the end of path and
// of every category below it. Prefixes only match whole segments, so "1/2"
// does not pick up "1/23".
func (r *CategoryRepository) GetIDsByPath(ctx context.Context, path string) ([]int64, error) {
	parts := ParsePath(path)
	if len(parts) == 0 {
		return nil, nil
	}
	trimmed := strings.TrimRight(path, "/")
	var ids []int64
	err := r.DB.SelectContext(ctx, &ids,
		"SELECT moodle_id FROM moodle_categories WHERE moodle_id = ? OR path = ? OR path LIKE ? ESCAPE '!' ORDER BY moodle_id",
		parts[len(parts)-1], trimmed, escapeLike(trimmed)+"/%")
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchByName searches for categories by name.
func (r *CategoryRepository) SearchByName(ctx context.Context, query string) ([]*Category, error) {
	var categories []*Category
	err := r.DB.SelectContext(ctx, &categories,
		"SELECT "+categoryColumns+" FROM moodle_categories WHERE LOWER(name) LIKE LOWER(?) ESCAPE '!' ORDER BY name",
		"%"+escapeLike(query)+"%")
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Count returns the number of stored categories.
func (r *CategoryRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM moodle_categories")
	return n, err
}

// ParsePath splits a materialized path ("/1/5" or "1/5") into remote ids.
// Segments that are not integers are ignored.
func ParsePath(path string) []int64 {
	var ids []int64
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		id, err := strconv.ParseInt(seg, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
