package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type settingsKey string

const (
	// FormatKey is the key for the negotiated response format in the request context.
	FormatKey settingsKey = "format"

	FormatHTML = "html"
	FormatJSON = "json"
)

// Negotiate decides once per request whether the client wants JSON: API and
// webhook paths, a "format=json" query parameter, an XHR request or an
// Accept header preferring application/json.
func Negotiate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := FormatHTML
		if requestWantsJSON(r) {
			format = FormatJSON
		}
		ctx := context.WithValue(r.Context(), FormatKey, format)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestWantsJSON(r *http.Request) bool {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"), strings.HasPrefix(r.URL.Path, "/webhooks/"):
		return true
	case r.URL.Query().Get("format") == FormatJSON:
		return true
	case r.Header.Get("X-Requested-With") == "XMLHttpRequest":
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// WantsJSON reports whether the response should be JSON. Outside Negotiate
// the request itself is inspected.
func WantsJSON(r *http.Request) bool {
	if format, ok := r.Context().Value(FormatKey).(string); ok {
		return format == FormatJSON
	}
	return requestWantsJSON(r)
}

// ErrorBody is the JSON shape of every failed JSON response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	_ = WriteJSON(w, status, ErrorBody{Success: false, Code: code, Message: message})
}
