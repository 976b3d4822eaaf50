package handler

import (
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/middleware"
	"go-moodle-catalog/internal/service"
	"net/http"
)

// WebhookHandler triggers syncs on behalf of the remote site. Requests reach
// it only through middleware.WebhookAuth.
type WebhookHandler struct {
	remote     Remote
	categories Syncer
	courses    Syncer
	enrolments EnrolmentSyncer
	log        logger.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(remote Remote, categories, courses Syncer, enrolments EnrolmentSyncer, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{remote: remote, categories: categories, courses: courses, enrolments: enrolments, log: log}
}

func (h *WebhookHandler) categoriesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if !h.remote.IsConfigured(r.Context()) {
		return notConfigured(nil)
	}
	ctx := service.WithTrigger(r.Context(), data.TriggerWebhook)
	n, err := h.categories.SyncAll(ctx)
	if err != nil {
		return syncError(err)
	}
	return writeResult(w, service.CategoriesSyncedMessage(n), nil)
}

func (h *WebhookHandler) coursesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if !h.remote.IsConfigured(r.Context()) {
		return notConfigured(nil)
	}
	ctx := service.WithTrigger(r.Context(), data.TriggerWebhook)
	n, err := h.courses.SyncAll(ctx)
	if err != nil {
		return syncError(err)
	}
	return writeResult(w, service.CoursesSyncedMessage(n), nil)
}

// pricesHandler resyncs every course's enrolment methods, dropping the
// methods of courses that are gone.
func (h *WebhookHandler) pricesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if !h.remote.IsConfigured(r.Context()) {
		return notConfigured(nil)
	}
	ctx := service.WithTrigger(r.Context(), data.TriggerWebhook)
	result, err := h.enrolments.FullResync(ctx)
	if err != nil {
		return syncError(err)
	}
	return writeResult(w, result.Message(), nil)
}
