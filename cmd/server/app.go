package main

import (
	"context"
	"fmt"
	"go-moodle-catalog/internal/cache"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/moodle"
	"go-moodle-catalog/internal/service"

	"github.com/jmoiron/sqlx"
)

// app holds the wired service layer shared by the server and the CLI.
type app struct {
	db         *sqlx.DB
	cache      *cache.Cache
	settings   *service.SettingsService
	remote     *moodle.Client
	catalog    *service.CatalogService
	categories *service.CategorySyncer
	courses    *service.CourseSyncer
	enrolments *service.EnrolmentSyncer
	runs       *service.SyncRecorder
}

// openDB connects and brings the schema up to date.
func openDB() (*sqlx.DB, error) {
	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB)
	if err != nil {
		return nil, err
	}
	log.Info("Applying database migrations...")
	if err := data.ApplyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("Migrations applied successfully.")
	return db, nil
}

func newApp(ctx context.Context) (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}

	pageCache, err := cache.New(cfg.Cache.FilePath)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{db: db, cache: pageCache}

	categoryRepository := data.NewCategoryRepository(db)
	courseRepository := data.NewCourseRepository(db)
	enrolRepository := data.NewEnrolMethodRepository(db)

	a.settings = service.NewSettingsService(data.NewSettingsRepository(db), log)
	seeded, err := a.settings.SeedConnection(ctx, moodle.Credentials{
		BaseURL:  cfg.Moodle.BaseURL,
		Username: cfg.Moodle.Username,
		Token:    cfg.Moodle.Token,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to seed connection settings: %w", err)
	}
	if seeded {
		log.Info("Connection settings seeded from configuration")
	}

	a.remote = moodle.NewClient(a.settings, moodle.Options{
		Timeout:            cfg.Moodle.Timeout,
		InsecureSkipVerify: cfg.Moodle.InsecureSkipVerify,
		RateLimit:          cfg.Moodle.RateLimit,
	}, log.With(map[string]interface{}{"component": "moodle"}))

	a.catalog = service.NewCatalogService(categoryRepository, courseRepository, enrolRepository, a.settings,
		service.CatalogOptions{Cache: pageCache, TTL: cfg.Cache.TTL}, log)
	a.settings.SetInvalidator(a.catalog)

	a.runs = service.NewSyncRecorder(data.NewSyncRunRepository(db), log)
	a.categories = service.NewCategorySyncer(a.remote, categoryRepository, a.runs, a.catalog, log)
	a.courses = service.NewCourseSyncer(a.remote, courseRepository, a.runs, a.catalog, log)
	a.enrolments = service.NewEnrolmentSyncer(a.remote, courseRepository, enrolRepository, a.runs, a.catalog, log)

	return a, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		log.Error(err, "Failed to close cache")
	}
	if err := a.db.Close(); err != nil {
		log.Error(err, "Failed to close database")
	}
}
