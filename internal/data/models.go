package data

import (
	"strings"
	"time"
)

// Setting is one key/value row of the settings store.
type Setting struct {
	Key       string    `db:"setting_key"`
	Value     string    `db:"setting_value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Category is a local copy of a Moodle course category.
type Category struct {
	ID          int64     `db:"id"`
	MoodleID    int64     `db:"moodle_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	ParentID    int64     `db:"parent_id"`
	Path        string    `db:"path"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Depth is the number of ancestors of the category, derived from its path
// ("/1" is 0, "/1/5" is 1). An empty path counts as top level.
func (c *Category) Depth() int {
	return PathDepth(c.Path)
}

// PathDepth counts the ancestors encoded in a slash-separated category path.
func PathDepth(path string) int {
	n := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return n - 1
}

// Course is a local copy of a Moodle course.
type Course struct {
	ID                int64     `db:"id"`
	MoodleID          int64     `db:"moodle_id"`
	Name              string    `db:"name"`
	Shortname         string    `db:"shortname"`
	Description       string    `db:"description"`
	DescriptionFormat int       `db:"description_format"`
	CategoryID        int64     `db:"category_id"`
	Visibility        int       `db:"visibility"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Visible reports whether the course is shown in the public catalog.
func (c *Course) Visible() bool {
	return c.Visibility == 1
}

// EnrolMethod is a local copy of a course enrolment (pricing) method.
// It is identified by the pair (MoodleEnrolID, MoodleCourseID).
type EnrolMethod struct {
	ID              int64     `db:"id"`
	MoodleEnrolID   int64     `db:"moodle_enrol_id"`
	MoodleCourseID  int64     `db:"moodle_course_id"`
	EnrolPlugin     string    `db:"enrol_plugin"`
	Name            string    `db:"name"`
	Status          int       `db:"status"`
	RoleID          *int64    `db:"roleid"`
	Cost            *float64  `db:"cost"`
	Currency        *string   `db:"currency"`
	EnrolStartDate  *int64    `db:"enrolstartdate"`
	EnrolEndDate    *int64    `db:"enrolenddate"`
	EnrolPeriod     *int64    `db:"enrolperiod"`
	ExpiryNotify    *int64    `db:"expirynotify"`
	ExpiryThreshold *int64    `db:"expirythreshold"`
	NotifyAll       *int64    `db:"notifyall"`
	CategoryID      *int64    `db:"category_id"`
	DefaultStatusID *int64    `db:"default_status_id"`
	IsEnrolmentFee  bool      `db:"is_enrollment_fee"`
	Installments    *int64    `db:"installments"`
	Data            string    `db:"data"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Sync run kinds.
const (
	SyncKindCategories = "categories"
	SyncKindCourses    = "courses"
	SyncKindEnrolments = "enrolments"
	SyncKindPrices     = "prices"
)

// Sync run triggers.
const (
	TriggerAdmin   = "admin"
	TriggerWebhook = "webhook"
	TriggerCLI     = "cli"
)

// SyncRun records one synchronization attempt.
type SyncRun struct {
	ID          string     `db:"id"`
	Kind        string     `db:"kind"`
	TriggeredBy string     `db:"triggered_by"`
	StartedAt   time.Time  `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	Items       int        `db:"items"`
	Courses     int        `db:"courses"`
	Success     bool       `db:"success"`
	Message     string     `db:"message"`
	Errors      string     `db:"errors"`
}
