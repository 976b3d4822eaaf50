package middleware

import (
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/session"
	"net/http"

	"github.com/casbin/casbin/v2"
)

const (
	anonymousSubject = "anonymous"
	adminRole        = "admin"
	loginPath        = "/auth/login"
)

// Authorizer creates a new middleware for authorization.
// It checks the user's permissions using Casbin based on session data.
// Logged-in users keep every permission of anonymous visitors.
func Authorizer(e casbin.IEnforcer, sm session.Manager, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := sm.GetString(r.Context(), session.KeySubject)
			if subject == "" {
				subject = anonymousSubject
			}

			isAdmin := false
			if subject != anonymousSubject {
				isAdmin, _ = e.HasRoleForUser(subject, adminRole)
			}
			r = r.WithContext(SetUserInfo(r.Context(), &UserInfo{Subject: subject, Admin: isAdmin}))

			allowed, err := e.Enforce(subject, r.URL.Path, r.Method)
			if err == nil && !allowed && subject != anonymousSubject {
				allowed, err = e.Enforce(anonymousSubject, r.URL.Path, r.Method)
			}
			if err != nil {
				log.Error(err, "Authorization check failed")
				http.Error(w, "Authorization error", http.StatusInternalServerError)
				return
			}

			if !allowed {
				if subject == anonymousSubject && r.Method == http.MethodGet {
					http.Redirect(w, r, loginPath, http.StatusFound)
					return
				}
				if WantsJSON(r) {
					writeJSONError(w, http.StatusForbidden, "forbidden", "Sem permissão")
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
