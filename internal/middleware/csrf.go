package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"go-moodle-catalog/internal/session"
	"net/http"
)

// CSRFHeader and CSRFField carry the token on state-changing requests.
const (
	CSRFHeader = "X-CSRF-Token"
	CSRFField  = "csrf_token"
)

// CSRF keeps a per-session token and rejects unsafe requests that do not
// echo it. It must run inside the session LoadAndSave middleware.
func CSRF(sm session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := sm.GetString(ctx, session.KeyCSRFToken)
			if token == "" {
				var err error
				if token, err = newToken(); err != nil {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				sm.Put(ctx, session.KeyCSRFToken, token)
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				sent := r.Header.Get(CSRFHeader)
				if sent == "" {
					sent = r.PostFormValue(CSRFField)
				}
				if subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
					if WantsJSON(r) {
						writeJSONError(w, http.StatusForbidden, "csrf_invalid", "Token CSRF inválido")
						return
					}
					http.Error(w, "Invalid CSRF token", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(contextWithCSRF(ctx, token)))
		})
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
