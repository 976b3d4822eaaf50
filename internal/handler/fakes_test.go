//go:build unit

package handler

import (
	"context"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/moodle"
	"go-moodle-catalog/internal/service"
	"go-moodle-catalog/internal/session"
	"net/http"
	"sync"
)

type fakeCatalog struct {
	page       *service.CatalogPage
	filters    []service.CatalogFilter
	topLevel   []*data.Category
	tree       []*service.CategoryNode
	options    []service.CategoryOption
	categories []*data.Category
	stats      service.Stats
	err        error
}

func (f *fakeCatalog) Catalog(ctx context.Context, flt service.CatalogFilter) (*service.CatalogPage, error) {
	f.filters = append(f.filters, flt)
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		return &service.CatalogPage{Filter: flt, Courses: []service.CourseCard{}, Page: 1}, nil
	}
	p := *f.page
	p.Filter = flt
	return &p, nil
}

func (f *fakeCatalog) TopLevelCategories(ctx context.Context) ([]*data.Category, error) {
	return f.topLevel, f.err
}

func (f *fakeCatalog) CategoryTree(ctx context.Context) ([]*service.CategoryNode, error) {
	return f.tree, f.err
}

func (f *fakeCatalog) CategoryOptions(ctx context.Context) ([]service.CategoryOption, error) {
	return f.options, f.err
}

func (f *fakeCatalog) AllCategories(ctx context.Context) ([]*data.Category, error) {
	return f.categories, f.err
}

func (f *fakeCatalog) ListCourses(ctx context.Context, limit, offset int) ([]*data.Course, error) {
	return nil, f.err
}

func (f *fakeCatalog) Stats(ctx context.Context) (service.Stats, error) {
	return f.stats, f.err
}

// fakeSyncer records the trigger each call ran under.
type fakeSyncer struct {
	mu       sync.Mutex
	count    int
	err      error
	calls    int
	triggers []string
}

func (f *fakeSyncer) SyncAll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.triggers = append(f.triggers, service.TriggerFrom(ctx))
	return f.count, f.err
}

type fakeEnrolments struct {
	count       int
	batch       service.BatchResult
	err         error
	courseIDs   []int64
	allCalls    int
	fullCalls   int
	hadDeadline bool
}

func (f *fakeEnrolments) SyncCourse(ctx context.Context, courseID int64) (int, error) {
	f.courseIDs = append(f.courseIDs, courseID)
	if courseID <= 0 {
		return 0, &service.ValidationError{Field: "course_id", Message: "Curso inválido"}
	}
	return f.count, f.err
}

func (f *fakeEnrolments) SyncAllCourses(ctx context.Context) (service.BatchResult, error) {
	f.allCalls++
	_, f.hadDeadline = ctx.Deadline()
	return f.batch, f.err
}

func (f *fakeEnrolments) FullResync(ctx context.Context) (service.BatchResult, error) {
	f.fullCalls++
	return f.batch, f.err
}

type fakeSettings struct {
	creds   moodle.Credentials
	saved   *moodle.Credentials
	pricing service.PricingSettings
	secret  string
	err     error
}

func (f *fakeSettings) Credentials(ctx context.Context) (moodle.Credentials, error) {
	return f.creds, f.err
}

func (f *fakeSettings) SaveConnection(ctx context.Context, creds moodle.Credentials) error {
	if creds.BaseURL == "" {
		return &service.ValidationError{Field: "base_url", Message: "URL base inválida"}
	}
	f.saved = &creds
	return f.err
}

func (f *fakeSettings) PricingSettings(ctx context.Context) (service.PricingSettings, error) {
	return f.pricing, f.err
}

func (f *fakeSettings) SavePricing(ctx context.Context, p service.PricingSettings) error {
	if p.DecimalSeparator != "," && p.DecimalSeparator != "." {
		return &service.ValidationError{Field: "decimal_separator", Message: "Separador decimal inválido"}
	}
	f.pricing = p
	return f.err
}

func (f *fakeSettings) WebhookSecret(ctx context.Context) (string, error) {
	return f.secret, f.err
}

func (f *fakeSettings) RegenerateWebhookSecret(ctx context.Context) (string, error) {
	f.secret = "regenerated"
	return f.secret, f.err
}

func (f *fakeSettings) VerifyWebhookToken(ctx context.Context, token string) (bool, error) {
	return token != "" && token == f.secret, f.err
}

type fakeRemote struct {
	configured bool
	result     moodle.ConnectionResult
}

func (f *fakeRemote) IsConfigured(ctx context.Context) bool { return f.configured }

func (f *fakeRemote) TestConnection(ctx context.Context) moodle.ConnectionResult { return f.result }

type fakeRuns struct {
	runs  []*data.SyncRun
	limit int
}

func (f *fakeRuns) Latest(ctx context.Context, limit int) ([]*data.SyncRun, error) {
	f.limit = limit
	return f.runs, nil
}

// fakeRenderer captures what would have been rendered.
type fakeRenderer struct {
	name string
	data map[string]interface{}
	err  error
}

func (f *fakeRenderer) Render(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) error {
	f.name, f.data = name, data
	if f.err != nil {
		return f.err
	}
	w.Write([]byte("rendered " + name))
	return nil
}

// mockSessionManager is a mock implementation of the session.Manager interface.
type mockSessionManager struct {
	destroyCalled bool
	renewed       bool
	removed       []string
	values        map[string]interface{}
}

var _ session.Manager = (*mockSessionManager)(nil)

func (m *mockSessionManager) LoadAndSave(next http.Handler) http.Handler { return next }
func (m *mockSessionManager) Put(ctx context.Context, key string, val interface{}) {
	if m.values == nil {
		m.values = map[string]interface{}{}
	}
	m.values[key] = val
}
func (m *mockSessionManager) GetString(ctx context.Context, key string) string {
	s, _ := m.values[key].(string)
	return s
}
func (m *mockSessionManager) PopString(ctx context.Context, key string) string {
	s := m.GetString(ctx, key)
	delete(m.values, key)
	return s
}
func (m *mockSessionManager) Remove(ctx context.Context, key string) {
	m.removed = append(m.removed, key)
	delete(m.values, key)
}
func (m *mockSessionManager) Destroy(ctx context.Context) error {
	m.destroyCalled = true
	m.values = nil
	return nil
}
func (m *mockSessionManager) RenewToken(ctx context.Context) error {
	m.renewed = true
	return nil
}

type fakeIdentity struct {
	subject string
	err     error
	code    string
}

func (f *fakeIdentity) LoginURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (f *fakeIdentity) Subject(ctx context.Context, code string) (string, error) {
	f.code = code
	return f.subject, f.err
}
