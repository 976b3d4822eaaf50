package handler

import (
	"context"
	"errors"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/middleware"
	"go-moodle-catalog/internal/moodle"
	"go-moodle-catalog/internal/service"
	"net/http"
)

// Catalog is the read side used by the public pages and the dashboard.
type Catalog interface {
	Catalog(ctx context.Context, f service.CatalogFilter) (*service.CatalogPage, error)
	TopLevelCategories(ctx context.Context) ([]*data.Category, error)
	CategoryTree(ctx context.Context) ([]*service.CategoryNode, error)
	CategoryOptions(ctx context.Context) ([]service.CategoryOption, error)
	AllCategories(ctx context.Context) ([]*data.Category, error)
	ListCourses(ctx context.Context, limit, offset int) ([]*data.Course, error)
	Stats(ctx context.Context) (service.Stats, error)
}

// Syncer runs a whole-collection sync.
type Syncer interface {
	SyncAll(ctx context.Context) (int, error)
}

// EnrolmentSyncer runs enrolment method syncs.
type EnrolmentSyncer interface {
	SyncCourse(ctx context.Context, courseID int64) (int, error)
	SyncAllCourses(ctx context.Context) (service.BatchResult, error)
	FullResync(ctx context.Context) (service.BatchResult, error)
}

// Settings manages connection, pricing and webhook settings.
type Settings interface {
	Credentials(ctx context.Context) (moodle.Credentials, error)
	SaveConnection(ctx context.Context, creds moodle.Credentials) error
	PricingSettings(ctx context.Context) (service.PricingSettings, error)
	SavePricing(ctx context.Context, p service.PricingSettings) error
	WebhookSecret(ctx context.Context) (string, error)
	RegenerateWebhookSecret(ctx context.Context) (string, error)
	VerifyWebhookToken(ctx context.Context, token string) (bool, error)
}

// Remote is the connection check of the Moodle client.
type Remote interface {
	IsConfigured(ctx context.Context) bool
	TestConnection(ctx context.Context) moodle.ConnectionResult
}

// RunLog lists recent sync runs.
type RunLog interface {
	Latest(ctx context.Context, limit int) ([]*data.SyncRun, error)
}

// Result is the JSON body of admin actions and webhooks.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeResult(w http.ResponseWriter, message string, payload interface{}) *middleware.AppError {
	if err := middleware.WriteJSON(w, http.StatusOK, Result{Success: true, Message: message, Data: payload}); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to write response", Code: http.StatusInternalServerError}
	}
	return nil
}

// syncError maps sync failures to HTTP errors. Upstream messages are shown
// as they are; admins need them to fix the connection.
func syncError(err error) *middleware.AppError {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		return &middleware.AppError{Error: err, Message: vErr.Message, Code: http.StatusBadRequest, Reason: "invalid_request"}
	case errors.Is(err, moodle.ErrNotConfigured):
		return notConfigured(err)
	case errors.Is(err, service.ErrNoCourses):
		return &middleware.AppError{Error: err, Message: "Nenhum curso encontrado. Sincronize os cursos primeiro.", Code: http.StatusBadRequest, Reason: "moodle_no_courses"}
	default:
		return &middleware.AppError{Error: err, Message: err.Error(), Code: http.StatusInternalServerError, Reason: "moodle_webhook_error"}
	}
}

func notConfigured(err error) *middleware.AppError {
	if err == nil {
		err = moodle.ErrNotConfigured
	}
	return &middleware.AppError{Error: err, Message: "Conexão não configurada", Code: http.StatusBadRequest, Reason: "moodle_not_configured"}
}
