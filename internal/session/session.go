package session

import (
	"context"
	"go-moodle-catalog/internal/config"
	"go-moodle-catalog/internal/data"
	"net/http"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
)

// Session keys.
const (
	KeySubject   = "user_subject"
	KeyCSRFToken = "csrf_token"
)

const defaultLifetime = 12 * time.Hour

// Manager is an interface that abstracts the session management implementation.
// This allows for easier testing and dependency injection.
type Manager interface {
	LoadAndSave(next http.Handler) http.Handler
	Put(ctx context.Context, key string, val interface{})
	GetString(ctx context.Context, key string) string
	PopString(ctx context.Context, key string) string
	Destroy(ctx context.Context) error
	Remove(ctx context.Context, key string)
	RenewToken(ctx context.Context) error
}

var _ Manager = (*scs.SessionManager)(nil)

// New creates a session manager backed by the sessions table of db.
func New(db *sqlx.DB, cfg config.SessionConfig, secure bool) *scs.SessionManager {
	sm := scs.New()
	if db.DriverName() == data.DriverMySQL {
		sm.Store = mysqlstore.New(db.DB)
	} else {
		sm.Store = sqlite3store.New(db.DB)
	}
	sm.Lifetime = defaultLifetime
	if cfg.Lifetime > 0 {
		sm.Lifetime = time.Duration(cfg.Lifetime) * time.Hour
	}
	sm.Cookie.Name = "catalog_session"
	sm.Cookie.Persist = true
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	return sm
}
