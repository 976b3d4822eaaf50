package handler

import (
	"context"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/middleware"
	"go-moodle-catalog/internal/moodle"
	"go-moodle-catalog/internal/service"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	// batchTimeout bounds the "sync every course" action.
	batchTimeout = 5 * time.Minute
	recentRuns   = 10
)

// AdminHandler serves the admin dashboard and its actions.
type AdminHandler struct {
	settings   Settings
	remote     Remote
	catalog    Catalog
	categories Syncer
	courses    Syncer
	enrolments EnrolmentSyncer
	runs       RunLog
	view       middleware.Renderer
	baseURL    string
	log        logger.Logger
}

// AdminDeps groups the collaborators of an AdminHandler.
type AdminDeps struct {
	Settings   Settings
	Remote     Remote
	Catalog    Catalog
	Categories Syncer
	Courses    Syncer
	Enrolments EnrolmentSyncer
	Runs       RunLog
	View       middleware.Renderer
	// BaseURL is the public address shown in the webhook URLs.
	BaseURL string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(d AdminDeps, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		settings:   d.Settings,
		remote:     d.Remote,
		catalog:    d.Catalog,
		categories: d.Categories,
		courses:    d.Courses,
		enrolments: d.Enrolments,
		runs:       d.Runs,
		view:       d.View,
		baseURL:    strings.TrimRight(d.BaseURL, "/"),
		log:        log,
	}
}

// adminContext tags syncs started from the dashboard.
func adminContext(r *http.Request) context.Context {
	return service.WithTrigger(r.Context(), data.TriggerAdmin)
}

func (h *AdminHandler) dashboardHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	ctx := r.Context()
	creds, err := h.settings.Credentials(ctx)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load settings", Code: http.StatusInternalServerError}
	}
	pricing, err := h.settings.PricingSettings(ctx)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load settings", Code: http.StatusInternalServerError}
	}
	secret, err := h.settings.WebhookSecret(ctx)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load webhook secret", Code: http.StatusInternalServerError}
	}
	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load catalog statistics", Code: http.StatusInternalServerError}
	}
	runs, err := h.runs.Latest(ctx, recentRuns)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load sync history", Code: http.StatusInternalServerError}
	}

	data := map[string]interface{}{
		"Configured":    creds.Configured(),
		"Credentials":   creds,
		"Pricing":       pricing,
		"WebhookSecret": secret,
		"Webhooks":      h.webhookURLs(),
		"Stats":         stats,
		"Runs":          runs,
	}
	if err := h.view.Render(w, r, "admin.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render dashboard", Code: http.StatusInternalServerError}
	}
	return nil
}

func (h *AdminHandler) webhookURLs() []string {
	return []string{
		h.baseURL + "/webhooks/categories",
		h.baseURL + "/webhooks/courses",
		h.baseURL + "/webhooks/prices",
	}
}

func (h *AdminHandler) saveSettingsHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	creds := moodle.Credentials{
		BaseURL:  r.PostFormValue("base_url"),
		Username: r.PostFormValue("username"),
		Token:    r.PostFormValue("token"),
	}
	// A blank token keeps the stored one.
	if strings.TrimSpace(creds.Token) == "" {
		current, err := h.settings.Credentials(r.Context())
		if err != nil {
			return &middleware.AppError{Error: err, Message: "Failed to load settings", Code: http.StatusInternalServerError}
		}
		creds.Token = current.Token
	}
	if err := h.settings.SaveConnection(r.Context(), creds); err != nil {
		return syncError(err)
	}
	return writeResult(w, "Configurações salvas com sucesso!", nil)
}

func (h *AdminHandler) savePricingHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	p := service.PricingSettings{
		DecimalSeparator: r.PostFormValue("decimal_separator"),
		CurrencySymbol:   r.PostFormValue("currency_symbol"),
		PriceMessage:     r.PostFormValue("price_message"),
	}
	if err := h.settings.SavePricing(r.Context(), p); err != nil {
		return syncError(err)
	}
	return writeResult(w, "Configurações salvas com sucesso!", nil)
}

func (h *AdminHandler) testConnectionHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	result := h.remote.TestConnection(r.Context())
	if err := middleware.WriteJSON(w, http.StatusOK, result); err != nil {
		h.log.Error(err, "Failed to write connection test response")
	}
	return nil
}

func (h *AdminHandler) syncCategoriesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if !h.remote.IsConfigured(r.Context()) {
		return notConfigured(nil)
	}
	n, err := h.categories.SyncAll(adminContext(r))
	if err != nil {
		return syncError(err)
	}
	return writeResult(w, service.CategoriesSyncedMessage(n), map[string]int{"count": n})
}

func (h *AdminHandler) syncCoursesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if !h.remote.IsConfigured(r.Context()) {
		return notConfigured(nil)
	}
	n, err := h.courses.SyncAll(adminContext(r))
	if err != nil {
		return syncError(err)
	}
	return writeResult(w, service.CoursesSyncedMessage(n), map[string]int{"count": n})
}

func (h *AdminHandler) syncCourseEnrolmentsHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	// Non-numeric ids fall through to the service validation as 0.
	courseID, _ := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if courseID > 0 && !h.remote.IsConfigured(r.Context()) {
		return notConfigured(nil)
	}
	n, err := h.enrolments.SyncCourse(adminContext(r), courseID)
	if err != nil {
		return syncError(err)
	}
	return writeResult(w, service.EnrolMethodsSyncedMessage(n), map[string]int{"count": n})
}

func (h *AdminHandler) syncAllEnrolmentsHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if !h.remote.IsConfigured(r.Context()) {
		return notConfigured(nil)
	}

	deadline := time.Now().Add(batchTimeout)
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
		h.log.Debug("Write deadline not supported by this response writer")
	}
	ctx, cancel := context.WithDeadline(adminContext(r), deadline)
	defer cancel()

	result, err := h.enrolments.SyncAllCourses(ctx)
	if err != nil {
		return syncError(err)
	}
	return writeResult(w, result.Message(), result)
}

func (h *AdminHandler) regenerateSecretHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	secret, err := h.settings.RegenerateWebhookSecret(r.Context())
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Falha ao gerar o token", Code: http.StatusInternalServerError}
	}
	return writeResult(w, "Novo token gerado. Atualize a configuração do Moodle.", map[string]string{"secret": secret})
}
