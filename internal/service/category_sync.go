package service

import (
	"context"
	"fmt"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
)

// CategorySyncer mirrors remote course categories into local storage.
type CategorySyncer struct {
	remote RemoteCatalog
	store  CategoryStore
	runs   *SyncRecorder
	cache  Invalidator
	log    logger.Logger
}

// NewCategorySyncer creates a CategorySyncer. runs and cache may be nil.
func NewCategorySyncer(remote RemoteCatalog, store CategoryStore, runs *SyncRecorder, cache Invalidator, log logger.Logger) *CategorySyncer {
	if log == nil {
		log = logger.Nop()
	}
	return &CategorySyncer{remote: remote, store: store, runs: runs, cache: cache, log: log}
}

// SyncAll fetches every remote category and upserts it by remote id.
// It returns the number of categories upserted.
func (s *CategorySyncer) SyncAll(ctx context.Context) (int, error) {
	run := s.runs.Start(ctx, data.SyncKindCategories)

	count, err := s.syncAll(ctx)
	if count > 0 && s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.runs.Finish(ctx, run, SyncOutcome{Items: count, Message: CategoriesSyncedMessage(count)}, err)
	if err != nil {
		return count, err
	}

	s.log.With(map[string]interface{}{"count": count}).Info("Categories synchronized")
	return count, nil
}

func (s *CategorySyncer) syncAll(ctx context.Context) (int, error) {
	records, err := s.remote.GetCategories(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, r := range records {
		category := &data.Category{
			MoodleID:    r.ID,
			Name:        r.Name,
			Description: r.Description,
			ParentID:    r.Parent,
			Path:        r.Path,
		}
		if err := s.store.Upsert(ctx, category); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// CategoriesSyncedMessage is the user-facing summary of a category sync.
func CategoriesSyncedMessage(n int) string {
	return fmt.Sprintf("%d categorias sincronizadas com sucesso!", n)
}

// Depth returns the indentation depth of a category path.
func Depth(path string) int {
	return data.PathDepth(path)
}
