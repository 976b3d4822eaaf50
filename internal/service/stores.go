package service

import (
	"context"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/moodle"
	"time"
)

// RemoteCatalog is the subset of the Moodle client used by the syncers.
type RemoteCatalog interface {
	GetCategories(ctx context.Context) ([]moodle.CategoryRecord, error)
	GetCourses(ctx context.Context) ([]moodle.CourseRecord, error)
	GetCourseEnrolmentMethods(ctx context.Context, courseID int64) ([]moodle.EnrolMethodRecord, error)
}

// CategoryStore defines the database operations on categories.
type CategoryStore interface {
	Upsert(ctx context.Context, c *data.Category) error
	GetByMoodleID(ctx context.Context, moodleID int64) (*data.Category, error)
	GetByMoodleIDs(ctx context.Context, ids []int64) ([]*data.Category, error)
	GetAll(ctx context.Context) ([]*data.Category, error)
	GetTopLevel(ctx context.Context) ([]*data.Category, error)
	GetChildren(ctx context.Context, parentID int64) ([]*data.Category, error)
	GetChildIDs(ctx context.Context, parentID int64) ([]int64, error)
	GetIDsByPath(ctx context.Context, path string) ([]int64, error)
	CountChildren(ctx context.Context, parentID int64) (int, error)
	Count(ctx context.Context) (int, error)
}

// CourseStore defines the database operations on courses.
type CourseStore interface {
	Upsert(ctx context.Context, c *data.Course) error
	GetByMoodleID(ctx context.Context, moodleID int64) (*data.Course, error)
	GetAllMoodleIDs(ctx context.Context) ([]int64, error)
	Find(ctx context.Context, f data.CourseFilter) ([]*data.Course, error)
	Count(ctx context.Context, f data.CourseFilter) (int, error)
}

// EnrolMethodStore defines the database operations on enrolment methods.
type EnrolMethodStore interface {
	Upsert(ctx context.Context, m *data.EnrolMethod) error
	GetByCourse(ctx context.Context, courseID int64) ([]*data.EnrolMethod, error)
	GetByCourses(ctx context.Context, courseIDs []int64) (map[int64][]*data.EnrolMethod, error)
	DeleteStale(ctx context.Context, courseID int64, keep []int64) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// SettingsStore defines the key/value settings operations.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	SetMany(ctx context.Context, values map[string]string) error
	SetIfAbsent(ctx context.Context, key, value string) (string, error)
}

// SyncRunStore defines the sync run log operations.
type SyncRunStore interface {
	Create(ctx context.Context, run *data.SyncRun) error
	Finish(ctx context.Context, run *data.SyncRun) error
	Latest(ctx context.Context, limit int) ([]*data.SyncRun, error)
}

// PageCache stores rendered catalog pages.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Invalidator is notified after local catalog data changed.
type Invalidator interface {
	Invalidate(ctx context.Context)
}
