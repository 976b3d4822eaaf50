//go:build unit

package handler

import (
	"context"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/moodle"
	"go-moodle-catalog/internal/service"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	settings   *fakeSettings
	remote     *fakeRemote
	catalog    *fakeCatalog
	categories *fakeSyncer
	courses    *fakeSyncer
	enrolments *fakeEnrolments
	runs       *fakeRuns
	view       *fakeRenderer
	handler    *AdminHandler
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		settings: &fakeSettings{
			creds:   moodle.Credentials{BaseURL: "https://moodle.example.com", Username: "admin", Token: "stored"},
			pricing: service.PricingSettings{DecimalSeparator: ",", CurrencySymbol: "R$", PriceMessage: service.DefaultPriceMessage},
			secret:  "s3cret",
		},
		remote:     &fakeRemote{configured: true},
		catalog:    &fakeCatalog{stats: service.Stats{Categories: 3, Courses: 10, EnrolMethods: 12}},
		categories: &fakeSyncer{},
		courses:    &fakeSyncer{},
		enrolments: &fakeEnrolments{},
		runs:       &fakeRuns{runs: []*data.SyncRun{{ID: "run-1", Kind: data.SyncKindCourses, Success: true}}},
		view:       &fakeRenderer{},
	}
	f.handler = NewAdminHandler(AdminDeps{
		Settings:   f.settings,
		Remote:     f.remote,
		Catalog:    f.catalog,
		Categories: f.categories,
		Courses:    f.courses,
		Enrolments: f.enrolments,
		Runs:       f.runs,
		View:       f.view,
		BaseURL:    "https://catalog.example.com/",
	}, logger.Nop())
	return f
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminHandler_Dashboard(t *testing.T) {
	f := newAdminFixture()

	rr := serveApp(f.handler.dashboardHandler, httptest.NewRequest(http.MethodGet, "/admin", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "admin.html", f.view.name)
	assert.Equal(t, true, f.view.data["Configured"])
	assert.Equal(t, "s3cret", f.view.data["WebhookSecret"])
	assert.Equal(t, service.Stats{Categories: 3, Courses: 10, EnrolMethods: 12}, f.view.data["Stats"])
	assert.Equal(t, []string{
		"https://catalog.example.com/webhooks/categories",
		"https://catalog.example.com/webhooks/courses",
		"https://catalog.example.com/webhooks/prices",
	}, f.view.data["Webhooks"])
	assert.Equal(t, recentRuns, f.runs.limit)
}

func TestAdminHandler_SaveSettings(t *testing.T) {
	t.Run("keeps stored token when blank", func(t *testing.T) {
		f := newAdminFixture()
		form := url.Values{"base_url": {"https://new.example.com"}, "username": {"bob"}, "token": {"  "}}

		rr := serveApp(f.handler.saveSettingsHandler, postForm("/admin/settings", form))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Configurações salvas com sucesso!", decodeResult(t, rr).Message)
		require.NotNil(t, f.settings.saved)
		assert.Equal(t, "stored", f.settings.saved.Token)
		assert.Equal(t, "bob", f.settings.saved.Username)
	})

	t.Run("replaces token", func(t *testing.T) {
		f := newAdminFixture()
		form := url.Values{"base_url": {"https://new.example.com"}, "username": {"bob"}, "token": {"fresh"}}

		serveApp(f.handler.saveSettingsHandler, postForm("/admin/settings", form))

		require.NotNil(t, f.settings.saved)
		assert.Equal(t, "fresh", f.settings.saved.Token)
	})

	t.Run("validation error", func(t *testing.T) {
		f := newAdminFixture()

		rr := serveApp(f.handler.saveSettingsHandler, postForm("/admin/settings", url.Values{"token": {"x"}}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeErrorBody(t, rr)
		assert.Equal(t, "invalid_request", body.Code)
		assert.Equal(t, "URL base inválida", body.Message)
		assert.Nil(t, f.settings.saved)
	})
}

func TestAdminHandler_SavePricing(t *testing.T) {
	f := newAdminFixture()
	form := url.Values{"decimal_separator": {"."}, "currency_symbol": {"US$"}, "price_message": {"{installments}x {price}"}}

	rr := serveApp(f.handler.savePricingHandler, postForm("/admin/pricing", form))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "US$", f.settings.pricing.CurrencySymbol)

	rr = serveApp(f.handler.savePricingHandler, postForm("/admin/pricing", url.Values{"decimal_separator": {";"}}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminHandler_TestConnection(t *testing.T) {
	f := newAdminFixture()
	f.remote.result = moodle.ConnectionResult{Success: false, Message: "Invalid token"}

	rr := serveApp(f.handler.testConnectionHandler, postForm("/admin/test-connection", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeResult(t, rr)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid token", res.Message)
}

func TestAdminHandler_Syncs(t *testing.T) {
	t.Run("categories", func(t *testing.T) {
		f := newAdminFixture()
		f.categories.count = 7

		rr := serveApp(f.handler.syncCategoriesHandler, postForm("/admin/sync/categories", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		res := decodeResult(t, rr)
		assert.Equal(t, service.CategoriesSyncedMessage(7), res.Message)
		assert.Equal(t, map[string]interface{}{"count": float64(7)}, res.Data)
		assert.Equal(t, []string{data.TriggerAdmin}, f.categories.triggers)
	})

	t.Run("courses not configured", func(t *testing.T) {
		f := newAdminFixture()
		f.remote.configured = false

		rr := serveApp(f.handler.syncCoursesHandler, postForm("/admin/sync/courses", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "moodle_not_configured", decodeErrorBody(t, rr).Code)
		assert.Zero(t, f.courses.calls)
	})

	t.Run("one course", func(t *testing.T) {
		f := newAdminFixture()
		f.enrolments.count = 2

		req := withURLParam(postForm("/admin/sync/enrolments/42", nil), "courseID", "42")
		rr := serveApp(f.handler.syncCourseEnrolmentsHandler, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []int64{42}, f.enrolments.courseIDs)
		assert.Equal(t, service.EnrolMethodsSyncedMessage(2), decodeResult(t, rr).Message)
	})

	t.Run("invalid course", func(t *testing.T) {
		f := newAdminFixture()

		req := withURLParam(postForm("/admin/sync/enrolments/abc", nil), "courseID", "abc")
		rr := serveApp(f.handler.syncCourseEnrolmentsHandler, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Curso inválido", decodeErrorBody(t, rr).Message)
	})

	t.Run("all courses", func(t *testing.T) {
		f := newAdminFixture()
		f.enrolments.batch = service.BatchResult{TotalCount: 3, TotalCourses: 2, Errors: []string{"Curso ID 9: timeout"}}

		rr := serveApp(f.handler.syncAllEnrolmentsHandler, postForm("/admin/sync/enrolments", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		res := decodeResult(t, rr)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "Curso ID 9: timeout")
		assert.True(t, f.enrolments.hadDeadline)
		assert.Zero(t, f.enrolments.fullCalls)
	})
}

func TestAdminHandler_RegenerateSecret(t *testing.T) {
	f := newAdminFixture()

	rr := serveApp(f.handler.regenerateSecretHandler, postForm("/admin/webhook-secret", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]interface{}{"secret": "regenerated"}, decodeResult(t, rr).Data)
}
