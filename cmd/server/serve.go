package main

import (
	"context"
	"errors"
	"fmt"
	"go-moodle-catalog/internal/auth"
	"go-moodle-catalog/internal/handler"
	"go-moodle-catalog/internal/middleware"
	"go-moodle-catalog/internal/session"
	"go-moodle-catalog/internal/view"
	"go-moodle-catalog/web"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	cachePurgeInterval = 15 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog web server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// --- Session Management Setup ---
	sessionManager := session.New(a.db, cfg.Session, cfg.Server.TLS.Enabled || cfg.Session.Secure)

	// --- Authentication and Authorization Setup ---
	log.Info("Initializing authentication and authorization...")
	var identity handler.Identity
	authenticator, err := auth.NewAuthenticator(ctx, &cfg.OIDC)
	switch {
	case errors.Is(err, auth.ErrOIDCDisabled):
		log.Warn("OIDC issuer not configured; admin login is disabled")
	case err != nil:
		return fmt.Errorf("failed to initialize authenticator: %w", err)
	default:
		identity = authenticator
	}
	enforcer, err := auth.NewEnforcer(a.db)
	if err != nil {
		return fmt.Errorf("failed to initialize enforcer: %w", err)
	}
	if err := auth.SeedDefaultPolicies(enforcer, cfg.Admin.Subjects, log); err != nil {
		return fmt.Errorf("failed to seed policies: %w", err)
	}
	log.Info("Auth components initialized and policies seeded.")

	// --- View Template Initialization ---
	viewService, err := view.New(web.TemplateFS)
	if err != nil {
		return fmt.Errorf("failed to initialize view templates: %w", err)
	}

	// --- Handlers and Router ---
	handlers := handler.Handlers{
		Catalog: handler.NewCatalogHandler(a.catalog, viewService, log),
		Admin: handler.NewAdminHandler(handler.AdminDeps{
			Settings:   a.settings,
			Remote:     a.remote,
			Catalog:    a.catalog,
			Categories: a.categories,
			Courses:    a.courses,
			Enrolments: a.enrolments,
			Runs:       a.runs,
			View:       viewService,
			BaseURL:    cfg.Server.BaseURL,
		}, log),
		Webhooks: handler.NewWebhookHandler(a.remote, a.categories, a.courses, a.enrolments, log),
		Auth:     handler.NewAuthHandler(identity, sessionManager, log),
		Seo:      handler.NewSeoHandler(a.catalog, cfg.Server.BaseURL, log),
		Static:   web.StaticHandler(),
		DB:       a.db,
	}
	router := handler.NewRouter(handlers, handler.RouterDeps{
		Sessions: sessionManager,
		Authz:    middleware.Authorizer(enforcer, sessionManager, log),
		Webhooks: a.settings,
		View:     viewService,
		Log:      log,
	})

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			err = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(cachePurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n, err := a.cache.PurgeExpired(gctx); err != nil {
					log.Error(err, "Failed to purge expired cache entries")
				} else if n > 0 {
					log.Debug(fmt.Sprintf("Purged %d expired cache entries", n))
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Warn("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error(err, "Server stopped with error")
		return err
	}
	log.Info("Server exiting")
	return nil
}
