package handler

import (
	"context"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/middleware"
	"go-moodle-catalog/internal/session"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Pinger checks that the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Catalog  *CatalogHandler
	Admin    *AdminHandler
	Webhooks *WebhookHandler
	Auth     *AuthHandler
	Seo      *SeoHandler
	Static   http.Handler
	DB       Pinger
}

// RouterDeps are the cross-cutting pieces of the middleware stack.
type RouterDeps struct {
	Sessions session.Manager
	// Authz enforces the access policies; see middleware.Authorizer.
	Authz    func(http.Handler) http.Handler
	Webhooks middleware.TokenVerifier
	View     middleware.Renderer
	Log      logger.Logger
}

// NewRouter creates and configures a new chi router.
func NewRouter(h Handlers, d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Negotiate)

	wrap := middleware.Error(d.Log, d.View)

	if h.Static != nil {
		r.Handle("/static/*", h.Static)
	}
	r.Get("/healthz", healthHandler(h.DB))

	// Webhooks authenticate with the shared secret and carry no session.
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(middleware.WebhookAuth(d.Webhooks, d.Log))
		r.Method(http.MethodPost, "/categories", wrap(h.Webhooks.categoriesHandler))
		r.Method(http.MethodPost, "/courses", wrap(h.Webhooks.coursesHandler))
		r.Method(http.MethodPost, "/prices", wrap(h.Webhooks.pricesHandler))
	})

	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.LoadAndSave)
		r.Use(d.Authz)
		r.Use(middleware.CSRF(d.Sessions))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/cursos", http.StatusFound)
		})
		r.Method(http.MethodGet, "/cursos", wrap(h.Catalog.catalogHandler))
		r.Method(http.MethodGet, "/api/cursos", wrap(h.Catalog.apiCoursesHandler))
		r.Method(http.MethodGet, "/api/categorias", wrap(h.Catalog.apiCategoriesHandler))
		r.Method(http.MethodGet, "/sitemap.xml", wrap(h.Seo.sitemapHandler))
		r.Get("/robots.txt", h.Seo.robotsHandler)

		r.Get("/auth/login", h.Auth.handleLogin)
		r.Get("/auth/callback", h.Auth.handleCallback)
		r.Post("/auth/logout", h.Auth.handleLogout)

		r.Route("/admin", func(r chi.Router) {
			r.Method(http.MethodGet, "/", wrap(h.Admin.dashboardHandler))
			r.Method(http.MethodPost, "/settings", wrap(h.Admin.saveSettingsHandler))
			r.Method(http.MethodPost, "/pricing", wrap(h.Admin.savePricingHandler))
			r.Method(http.MethodPost, "/test-connection", wrap(h.Admin.testConnectionHandler))
			r.Method(http.MethodPost, "/webhook-secret", wrap(h.Admin.regenerateSecretHandler))
			r.Method(http.MethodPost, "/sync/categories", wrap(h.Admin.syncCategoriesHandler))
			r.Method(http.MethodPost, "/sync/courses", wrap(h.Admin.syncCoursesHandler))
			r.Method(http.MethodPost, "/sync/enrolments", wrap(h.Admin.syncAllEnrolmentsHandler))
			r.Method(http.MethodPost, "/sync/enrolments/{courseID}", wrap(h.Admin.syncCourseEnrolmentsHandler))
		})
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
			}
		}
		middleware.WriteJSON(w, status, body)
	}
}
