package moodle

import (
	"github.com/tidwall/gjson"
)

// Webservice function names consumed by the catalog.
const (
	FuncSiteInfo             = "core_webservice_get_site_info"
	FuncGetCategories        = "core_course_get_categories"
	FuncGetCourses           = "core_course_get_courses"
	FuncGetEnrolmentMethods  = "core_enrol_get_course_enrolment_methods"
	FormatMoodle             = 0
	FormatHTML               = 1
	FormatPlain              = 2
	FormatMarkdown           = 4
	defaultCourseVisibility  = 1
	defaultDescriptionFormat = FormatHTML
)

// SiteInfo is the subset of core_webservice_get_site_info shown to admins.
type SiteInfo struct {
	SiteName  string `json:"sitename"`
	SiteURL   string `json:"siteurl"`
	Username  string `json:"username"`
	Release   string `json:"release"`
	Version   string `json:"version"`
	Functions int    `json:"functions"`
}

// CategoryRecord is one entry of core_course_get_categories.
// Description and Path default to "", Parent defaults to 0.
type CategoryRecord struct {
	ID          int64
	Name        string
	Description string
	Parent      int64
	Path        string
}

// CourseRecord is one entry of core_course_get_courses.
// Summary defaults to "", SummaryFormat to HTML, CategoryID to 0, Visible to 1.
type CourseRecord struct {
	ID            int64
	FullName      string
	ShortName     string
	Summary       string
	SummaryFormat int
	CategoryID    int64
	Visible       int
}

// EnrolMethodRecord is one entry of core_enrol_get_course_enrolment_methods.
// Pointer fields are nil when the key is absent or null upstream.
type EnrolMethodRecord struct {
	ID              int64
	Plugin          string
	Name            string
	Status          int
	RoleID          *int64
	Cost            *float64
	Currency        *string
	EnrolStartDate  *int64
	EnrolEndDate    *int64
	EnrolPeriod     *int64
	ExpiryNotify    *int64
	ExpiryThreshold *int64
	NotifyAll       *int64
	CategoryID      *int64
	DefaultStatusID *int64
	IsEnrolmentFee  int
	Installments    *int64
	// Raw is the source record as received, kept for fields not mapped above.
	Raw string
}

// Valid reports whether the record can be stored: it needs a non-zero id
// and a plugin name.
func (r EnrolMethodRecord) Valid() bool {
	return r.ID != 0 && r.Plugin != ""
}

// present mirrors "key is set and not null".
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func optInt(r gjson.Result) *int64 {
	if !present(r) {
		return nil
	}
	v := r.Int()
	return &v
}

func optFloat(r gjson.Result) *float64 {
	if !present(r) {
		return nil
	}
	v := r.Float()
	return &v
}

func optString(r gjson.Result) *string {
	if !present(r) {
		return nil
	}
	v := r.String()
	return &v
}

func intOr(r gjson.Result, def int64) int64 {
	if !present(r) {
		return def
	}
	return r.Int()
}

func stringOr(r gjson.Result, def string) string {
	if !present(r) {
		return def
	}
	return r.String()
}

func parseCategory(r gjson.Result) CategoryRecord {
	return CategoryRecord{
		ID:          r.Get("id").Int(),
		Name:        r.Get("name").String(),
		Description: stringOr(r.Get("description"), ""),
		Parent:      intOr(r.Get("parent"), 0),
		Path:        stringOr(r.Get("path"), ""),
	}
}

func parseCourse(r gjson.Result) CourseRecord {
	return CourseRecord{
		ID:            r.Get("id").Int(),
		FullName:      r.Get("fullname").String(),
		ShortName:     r.Get("shortname").String(),
		Summary:       stringOr(r.Get("summary"), ""),
		SummaryFormat: int(intOr(r.Get("summaryformat"), defaultDescriptionFormat)),
		CategoryID:    intOr(r.Get("categoryid"), 0),
		Visible:       int(intOr(r.Get("visible"), defaultCourseVisibility)),
	}
}

func parseEnrolMethod(r gjson.Result) EnrolMethodRecord {
	plugin := stringOr(r.Get("enrol"), "")
	if plugin == "" {
		// Stock Moodle names the plugin "type"; the pricing extension uses "enrol".
		plugin = stringOr(r.Get("type"), "")
	}
	return EnrolMethodRecord{
		ID:              intOr(r.Get("id"), 0),
		Plugin:          plugin,
		Name:            stringOr(r.Get("name"), ""),
		Status:          int(intOr(r.Get("status"), 0)),
		RoleID:          optInt(r.Get("roleid")),
		Cost:            optFloat(r.Get("cost")),
		Currency:        optString(r.Get("currency")),
		EnrolStartDate:  optInt(r.Get("enrolstartdate")),
		EnrolEndDate:    optInt(r.Get("enrolenddate")),
		EnrolPeriod:     optInt(r.Get("enrolperiod")),
		ExpiryNotify:    optInt(r.Get("expirynotify")),
		ExpiryThreshold: optInt(r.Get("expirythreshold")),
		NotifyAll:       optInt(r.Get("notifyall")),
		CategoryID:      optInt(r.Get("category_id")),
		DefaultStatusID: optInt(r.Get("default_status_id")),
		IsEnrolmentFee:  int(intOr(r.Get("is_enrollment_fee"), 0)),
		Installments:    optInt(r.Get("installments")),
		Raw:             r.Raw,
	}
}
