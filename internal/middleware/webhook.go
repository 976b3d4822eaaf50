package middleware

import (
	"context"
	"go-moodle-catalog/internal/logger"
	"net/http"
)

// WebhookTokenHeader carries the shared webhook secret.
const WebhookTokenHeader = "X-Moodle-Webhook-Token"

// TokenVerifier checks a webhook token against the stored secret.
type TokenVerifier interface {
	VerifyWebhookToken(ctx context.Context, token string) (bool, error)
}

// WebhookAuth rejects requests whose token, taken from the header or the
// "token" query parameter, does not match the webhook secret.
func WebhookAuth(v TokenVerifier, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(WebhookTokenHeader)
			if token == "" {
				token = r.URL.Query().Get("token")
			}

			ok, err := v.VerifyWebhookToken(r.Context(), token)
			if err != nil {
				log.Error(err, "Failed to verify webhook token")
				writeJSONError(w, http.StatusInternalServerError, "moodle_webhook_error", err.Error())
				return
			}
			if !ok {
				log.With(map[string]interface{}{"path": r.URL.Path, "remote": r.RemoteAddr}).Warn("Rejected webhook with invalid token")
				writeJSONError(w, http.StatusForbidden, "moodle_webhook_forbidden", "Token inválido")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
