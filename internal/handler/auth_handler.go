package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"go-moodle-catalog/internal/logger"
	"go-moodle-catalog/internal/session"
	"io"
	"net/http"
	"time"
)

const stateCookie = "oidc_state"

// Identity is the OIDC login flow.
type Identity interface {
	LoginURL(state string) string
	Subject(ctx context.Context, code string) (string, error)
}

// AuthHandler holds the dependencies for the authentication handlers.
type AuthHandler struct {
	auth     Identity
	sessions session.Manager
	log      logger.Logger
}

// NewAuthHandler creates a new AuthHandler. A nil identity disables login.
func NewAuthHandler(a Identity, sm session.Manager, log logger.Logger) *AuthHandler {
	return &AuthHandler{auth: a, sessions: sm, log: log}
}

// handleLogin redirects the user to the OIDC provider to log in.
// It uses a random 'state' string for CSRF protection.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		http.Error(w, "Login is not configured", http.StatusServiceUnavailable)
		return
	}
	state, err := randString(16)
	if err != nil {
		h.log.Error(err, "Failed to generate login state")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	// Store the state in a short-lived cookie to verify on callback.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(10 * time.Minute / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.auth.LoginURL(state), http.StatusFound)
}

// handleCallback is the redirect URL for the OIDC provider.
// It handles the code exchange and token verification.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		http.Error(w, "Login is not configured", http.StatusServiceUnavailable)
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "state cookie not found", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "state did not match", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	subject, err := h.auth.Subject(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.log.Error(err, "OIDC login failed")
		http.Error(w, "Login failed", http.StatusUnauthorized)
		return
	}

	// A fresh session token on privilege change prevents session fixation.
	if err := h.sessions.RenewToken(r.Context()); err != nil {
		h.log.Error(err, "Failed to renew session token")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.sessions.Remove(r.Context(), session.KeyCSRFToken)
	h.sessions.Put(r.Context(), session.KeySubject, subject)
	h.log.With(map[string]interface{}{"subject": subject}).Info("User logged in")

	http.Redirect(w, r, "/admin", http.StatusFound)
}

// handleLogout destroys the session.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		h.log.Error(err, "Failed to destroy session")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// randString is a helper function to generate a random string for the 'state' parameter.
func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
