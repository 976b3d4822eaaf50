package service

import (
	"context"
	"fmt"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/moodle"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// maxReportedErrors is how many per-course errors a batch message lists.
	maxReportedErrors = 3
	batchTimeout      = 10 * time.Minute
)

// BatchResult aggregates a multi-course enrolment sync.
type BatchResult struct {
	TotalCount   int      `json:"total_count"`
	TotalCourses int      `json:"total_courses"`
	Errors       []string `json:"errors"`
}

// Message renders the result for admins and webhook callers.
func (r BatchResult) Message() string {
	msg := fmt.Sprintf("%d métodos de enrol sincronizados de %d cursos!", r.TotalCount, r.TotalCourses)
	if len(r.Errors) == 0 {
		return msg
	}
	shown := r.Errors
	if len(shown) > maxReportedErrors {
		shown = shown[:maxReportedErrors]
	}
	msg += " Erros: " + strings.Join(shown, "; ")
	if extra := len(r.Errors) - maxReportedErrors; extra > 0 {
		msg += fmt.Sprintf(" (e mais %d erros)", extra)
	}
	return msg
}

// EnrolmentSyncer mirrors per-course enrolment methods into local storage.
//
// Every sync upserts the returned methods and then deletes the stored
// methods of that course that were not returned, so a course always mirrors
// its last successful fetch. A course whose fetch fails keeps its rows.
type EnrolmentSyncer struct {
	remote  RemoteCatalog
	courses CourseStore
	store   EnrolMethodStore
	runs    *SyncRecorder
	cache   Invalidator
	log     logger.Logger
	batches singleflight.Group
}

// NewEnrolmentSyncer creates an EnrolmentSyncer. runs and cache may be nil.
func NewEnrolmentSyncer(remote RemoteCatalog, courses CourseStore, store EnrolMethodStore, runs *SyncRecorder, cache Invalidator, log logger.Logger) *EnrolmentSyncer {
	if log == nil {
		log = logger.Nop()
	}
	return &EnrolmentSyncer{remote: remote, courses: courses, store: store, runs: runs, cache: cache, log: log}
}

// SyncCourse syncs the enrolment methods of one course and returns how many
// were upserted.
func (s *EnrolmentSyncer) SyncCourse(ctx context.Context, courseID int64) (int, error) {
	if courseID <= 0 {
		return 0, &ValidationError{Field: "course_id", Message: "Curso inválido"}
	}

	run := s.runs.Start(ctx, data.SyncKindEnrolments)
	count, err := s.syncCourse(ctx, courseID)
	courses := 0
	if count > 0 {
		courses = 1
	}
	s.runs.Finish(ctx, run, SyncOutcome{Items: count, Courses: courses, Message: EnrolMethodsSyncedMessage(count)}, err)
	if err != nil {
		return count, err
	}
	s.invalidate(ctx)
	return count, nil
}

// SyncAllCourses syncs every locally stored course. Per-course failures are
// collected in the result and do not stop the batch.
func (s *EnrolmentSyncer) SyncAllCourses(ctx context.Context) (BatchResult, error) {
	return s.batch(ctx, "all", false)
}

// FullResync removes the methods of courses that are no longer stored and
// then syncs every stored course like SyncAllCourses.
func (s *EnrolmentSyncer) FullResync(ctx context.Context) (BatchResult, error) {
	return s.batch(ctx, "full", true)
}

// batch collapses concurrent identical batches into one run. The shared run
// is detached from any single caller: it keeps the first caller's values
// (trigger included) but has its own deadline, and each caller stops waiting
// when its own context ends.
func (s *EnrolmentSyncer) batch(ctx context.Context, key string, full bool) (BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	ch := s.batches.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), batchTimeout)
		defer cancel()
		return s.runBatch(runCtx, full)
	})

	select {
	case <-ctx.Done():
		return BatchResult{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.log.With(map[string]interface{}{"batch": key, "trigger": TriggerFrom(ctx)}).Debug("Joined in-flight enrolment batch")
		}
		result, _ := res.Val.(BatchResult)
		return result, res.Err
	}
}

func (s *EnrolmentSyncer) runBatch(ctx context.Context, full bool) (BatchResult, error) {
	var result BatchResult

	ids, err := s.courses.GetAllMoodleIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list stored courses: %w", err)
	}
	if len(ids) == 0 {
		return result, ErrNoCourses
	}

	kind := data.SyncKindEnrolments
	if full {
		kind = data.SyncKindPrices
	}
	run := s.runs.Start(ctx, kind)

	if full {
		removed, err := s.store.DeleteOrphans(ctx)
		if err != nil {
			s.runs.Finish(ctx, run, SyncOutcome{}, err)
			return result, err
		}
		if removed > 0 {
			s.log.With(map[string]interface{}{"removed": removed}).Info("Removed enrolment methods of courses no longer stored")
		}
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.runs.Finish(ctx, run, s.outcome(result), err)
			s.invalidate(ctx)
			return result, err
		}

		n, err := s.syncCourse(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Curso ID %d: %s", id, err.Error()))
			s.log.With(map[string]interface{}{"course_id": id}).Error(err, "Failed to sync course enrolment methods")
			continue
		}
		result.TotalCount += n
		if n > 0 {
			result.TotalCourses++
		}
	}

	s.runs.Finish(ctx, run, s.outcome(result), nil)
	s.invalidate(ctx)
	s.log.With(map[string]interface{}{
		"methods": result.TotalCount,
		"courses": result.TotalCourses,
		"errors":  len(result.Errors),
	}).Info("Enrolment methods synchronized")
	return result, nil
}

func (s *EnrolmentSyncer) outcome(r BatchResult) SyncOutcome {
	return SyncOutcome{Items: r.TotalCount, Courses: r.TotalCourses, Errors: r.Errors, Message: r.Message()}
}

// syncCourse upserts the returned methods and prunes the rest. Errors are
// returned unwrapped so their text can be reported per course.
func (s *EnrolmentSyncer) syncCourse(ctx context.Context, courseID int64) (int, error) {
	records, err := s.remote.GetCourseEnrolmentMethods(ctx, courseID)
	if err != nil {
		return 0, err
	}

	keep := make([]int64, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		if err := s.store.Upsert(ctx, enrolMethodFromRecord(courseID, r)); err != nil {
			return len(keep), err
		}
		keep = append(keep, r.ID)
	}

	removed, err := s.store.DeleteStale(ctx, courseID, keep)
	if err != nil {
		return len(keep), err
	}
	if removed > 0 {
		s.log.With(map[string]interface{}{"course_id": courseID, "removed": removed}).Debug("Pruned enrolment methods removed upstream")
	}
	return len(keep), nil
}

func (s *EnrolmentSyncer) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func enrolMethodFromRecord(courseID int64, r moodle.EnrolMethodRecord) *data.EnrolMethod {
	raw := r.Raw
	if raw == "" {
		raw = "{}"
	}
	return &data.EnrolMethod{
		MoodleEnrolID:   r.ID,
		MoodleCourseID:  courseID,
		EnrolPlugin:     r.Plugin,
		Name:            r.Name,
		Status:          r.Status,
		RoleID:          r.RoleID,
		Cost:            r.Cost,
		Currency:        r.Currency,
		EnrolStartDate:  r.EnrolStartDate,
		EnrolEndDate:    r.EnrolEndDate,
		EnrolPeriod:     r.EnrolPeriod,
		ExpiryNotify:    r.ExpiryNotify,
		ExpiryThreshold: r.ExpiryThreshold,
		NotifyAll:       r.NotifyAll,
		CategoryID:      r.CategoryID,
		DefaultStatusID: r.DefaultStatusID,
		IsEnrolmentFee:  r.IsEnrolmentFee != 0,
		Installments:    r.Installments,
		Data:            raw,
	}
}

// EnrolMethodsSyncedMessage is the user-facing summary of a single-course sync.
func EnrolMethodsSyncedMessage(n int) string {
	return fmt.Sprintf("%d métodos de enrol sincronizados!", n)
}
