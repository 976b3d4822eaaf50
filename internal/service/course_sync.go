package service

import (
	"context"
	"fmt"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
)

// CourseSyncer mirrors remote courses into local storage.
type CourseSyncer struct {
	remote RemoteCatalog
	store  CourseStore
	runs   *SyncRecorder
	cache  Invalidator
	log    logger.Logger
}

// NewCourseSyncer creates a CourseSyncer. runs and cache may be nil.
func NewCourseSyncer(remote RemoteCatalog, store CourseStore, runs *SyncRecorder, cache Invalidator, log logger.Logger) *CourseSyncer {
	if log == nil {
		log = logger.Nop()
	}
	return &CourseSyncer{remote: remote, store: store, runs: runs, cache: cache, log: log}
}

// SyncAll fetches every remote course and upserts it by remote id.
// The site front page course is stored like any other.
func (s *CourseSyncer) SyncAll(ctx context.Context) (int, error) {
	run := s.runs.Start(ctx, data.SyncKindCourses)

	count, err := s.syncAll(ctx)
	if count > 0 && s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.runs.Finish(ctx, run, SyncOutcome{Items: count, Message: CoursesSyncedMessage(count)}, err)
	if err != nil {
		return count, err
	}

	s.log.With(map[string]interface{}{"count": count}).Info("Courses synchronized")
	return count, nil
}

func (s *CourseSyncer) syncAll(ctx context.Context) (int, error) {
	records, err := s.remote.GetCourses(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range records {
		course := &data.Course{
			MoodleID:          r.ID,
			Name:              r.FullName,
			Shortname:         r.ShortName,
			Description:       r.Summary,
			DescriptionFormat: r.SummaryFormat,
			CategoryID:        r.CategoryID,
			Visibility:        r.Visible,
		}
		if err := s.store.Upsert(ctx, course); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// CoursesSyncedMessage is the user-facing summary of a course sync.
func CoursesSyncedMessage(n int) string {
	return fmt.Sprintf("%d cursos sincronizados com sucesso!", n)
}
