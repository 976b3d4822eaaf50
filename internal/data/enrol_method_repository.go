package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const enrolMethodColumns = "id, moodle_enrol_id, moodle_course_id, enrol_plugin, name, status, roleid, cost, currency, " +
	"enrolstartdate, enrolenddate, enrolperiod, expirynotify, expirythreshold, notifyall, category_id, " +
	"default_status_id, is_enrollment_fee, installments, data, created_at, updated_at"

var enrolMethodWritable = []string{
	"moodle_enrol_id", "moodle_course_id", "enrol_plugin", "name", "status", "roleid", "cost", "currency",
	"enrolstartdate", "enrolenddate", "enrolperiod", "expirynotify", "expirythreshold", "notifyall",
	"category_id", "default_status_id", "is_enrollment_fee", "installments", "data",
}

// EnrolMethodRepository handles database operations for enrolment methods.
type EnrolMethodRepository struct {
	DB *sqlx.DB
}

// NewEnrolMethodRepository creates a new EnrolMethodRepository.
func NewEnrolMethodRepository(db *sqlx.DB) *EnrolMethodRepository {
	return &EnrolMethodRepository{DB: db}
}

// Upsert inserts the method or overwrites the row with the same
// (moodle_enrol_id, moodle_course_id) pair.
func (r *EnrolMethodRepository) Upsert(ctx context.Context, m *EnrolMethod) error {
	query := upsertQuery(r.DB.DriverName(), "moodle_enrol_methods",
		enrolMethodWritable,
		[]string{"moodle_enrol_id", "moodle_course_id"},
		enrolMethodWritable[2:])
	if _, err := r.DB.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to upsert enrol method %d of course %d: %w", m.MoodleEnrolID, m.MoodleCourseID, err)
	}
	return nil
}

// GetByCourse lists the methods of a course, most expensive first.
func (r *EnrolMethodRepository) GetByCourse(ctx context.Context, courseID int64) ([]*EnrolMethod, error) {
	var methods []*EnrolMethod
	err := r.DB.SelectContext(ctx, &methods,
		"SELECT "+enrolMethodColumns+" FROM moodle_enrol_methods WHERE moodle_course_id = ? ORDER BY cost DESC, id", courseID)
	if err != nil {
		return nil, err
	}
	return methods, nil
}

// GetByCourses lists the methods of several courses keyed by course id,
// each list ordered most expensive first.
func (r *EnrolMethodRepository) GetByCourses(ctx context.Context, courseIDs []int64) (map[int64][]*EnrolMethod, error) {
	byCourse := make(map[int64][]*EnrolMethod, len(courseIDs))
	if len(courseIDs) == 0 {
		return byCourse, nil
	}
	query, args, err := sqlx.In("SELECT "+enrolMethodColumns+" FROM moodle_enrol_methods WHERE moodle_course_id IN (?) ORDER BY moodle_course_id, cost DESC, id", courseIDs)
	if err != nil {
		return nil, err
	}
	var methods []*EnrolMethod
	if err := r.DB.SelectContext(ctx, &methods, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, m := range methods {
		byCourse[m.MoodleCourseID] = append(byCourse[m.MoodleCourseID], m)
	}
	return byCourse, nil
}

// DeleteStale removes the methods of a course whose enrol id is not in keep.
// An empty keep list removes every method of the course.
func (r *EnrolMethodRepository) DeleteStale(ctx context.Context, courseID int64, keep []int64) (int64, error) {
	query := "DELETE FROM moodle_enrol_methods WHERE moodle_course_id = ?"
	args := []any{courseID}
	if len(keep) > 0 {
		var err error
		query, args, err = sqlx.In(query+" AND moodle_enrol_id NOT IN (?)", courseID, keep)
		if err != nil {
			return 0, err
		}
	}
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune enrol methods of course %d: %w", courseID, err)
	}
	return res.RowsAffected()
}

// DeleteOrphans removes methods whose course is no longer stored.
func (r *EnrolMethodRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM moodle_enrol_methods WHERE moodle_course_id NOT IN (SELECT moodle_id FROM moodle_courses)")
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned enrol methods: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored methods.
func (r *EnrolMethodRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM moodle_enrol_methods")
	return n, err
}
