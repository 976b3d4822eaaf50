package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const courseColumns = "id, moodle_id, name, shortname, description, description_format, category_id, visibility, created_at, updated_at"

// CourseFilter narrows a course listing. Zero values mean "no filter".
type CourseFilter struct {
	CategoryIDs []int64
	Search      string
	VisibleOnly bool
	Limit       int
	Offset      int
}

// CourseRepository handles database operations for courses.
type CourseRepository struct {
	DB *sqlx.DB
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

// Upsert inserts the course or overwrites every non-key field of the row
// with the same moodle_id.
func (r *CourseRepository) Upsert(ctx context.Context, c *Course) error {
	query := upsertQuery(r.DB.DriverName(), "moodle_courses",
		[]string{"moodle_id", "name", "shortname", "description", "description_format", "category_id", "visibility"},
		[]string{"moodle_id"},
		[]string{"name", "shortname", "description", "description_format", "category_id", "visibility"})
	if _, err := r.DB.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to upsert course %d: %w", c.MoodleID, err)
	}
	return nil
}

// GetByMoodleID finds a course by its remote id.
func (r *CourseRepository) GetByMoodleID(ctx context.Context, moodleID int64) (*Course, error) {
	var course Course
	err := r.DB.GetContext(ctx, &course, "SELECT "+courseColumns+" FROM moodle_courses WHERE moodle_id = ?", moodleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found is not an error
		}
		return nil, err
	}
	return &course, nil
}

// GetAllMoodleIDs returns the remote id of every stored course.
func (r *CourseRepository) GetAllMoodleIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.DB.SelectContext(ctx, &ids, "SELECT moodle_id FROM moodle_courses ORDER BY moodle_id"); err != nil {
		return nil, err
	}
	return ids, nil
}

// Find lists courses matching f ordered by name.
func (r *CourseRepository) Find(ctx context.Context, f CourseFilter) ([]*Course, error) {
	where, args, err := f.where()
	if err != nil {
		return nil, err
	}
	query := "SELECT " + courseColumns + " FROM moodle_courses" + where + " ORDER BY name, moodle_id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	var courses []*Course
	if err := r.DB.SelectContext(ctx, &courses, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	return courses, nil
}

// Count counts courses matching f. Limit and Offset are ignored.
func (r *CourseRepository) Count(ctx context.Context, f CourseFilter) (int, error) {
	where, args, err := f.where()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.DB.GetContext(ctx, &n, r.DB.Rebind("SELECT COUNT(*) FROM moodle_courses"+where), args...)
	return n, err
}

func (f CourseFilter) where() (string, []any, error) {
	var clauses []string
	var args []any

	if len(f.CategoryIDs) > 0 {
		clause, inArgs, err := sqlx.In("category_id IN (?)", f.CategoryIDs)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, inArgs...)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + escapeLike(term) + "%"
		clauses = append(clauses, "(LOWER(name) LIKE LOWER(?) ESCAPE '!' OR LOWER(shortname) LIKE LOWER(?) ESCAPE '!')")
		args = append(args, like, like)
	}
	if f.VisibleOnly {
		clauses = append(clauses, "visibility = 1")
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
