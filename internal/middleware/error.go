package middleware

import (
	"fmt"
	"go-moodle-catalog/internal/logger"
	"net/http"
)

// AppError represents a custom error type for the application.
// Reason is a stable machine-readable code for JSON clients.
type AppError struct {
	Error   error
	Message string
	Code    int
	Reason  string
}

// AppHandler is a custom handler function type that returns an AppError.
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

// Renderer renders a named HTML template.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) error
}

// Error is a middleware that converts handler errors into user-friendly
// error pages, or into JSON error bodies for JSON clients.
func Error(log logger.Logger, view Renderer) func(AppHandler) http.Handler {
	return func(next AppHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					log.Error(err, "Panic recovered")
					respond(w, r, view, log, &AppError{Message: "Internal Server Error", Code: http.StatusInternalServerError})
				}
			}()

			if appErr := next(w, r); appErr != nil {
				if appErr.Code == 0 {
					appErr.Code = http.StatusInternalServerError
				}
				fields := map[string]interface{}{"path": r.URL.Path, "status": appErr.Code}
				if appErr.Code >= http.StatusInternalServerError {
					log.With(fields).Error(appErr.Error, appErr.Message)
				} else {
					log.With(fields).Warn(appErr.Message)
				}
				respond(w, r, view, log, appErr)
			}
		})
	}
}

func respond(w http.ResponseWriter, r *http.Request, view Renderer, log logger.Logger, appErr *AppError) {
	if WantsJSON(r) || view == nil {
		writeJSONError(w, appErr.Code, appErr.Reason, appErr.Message)
		return
	}
	data := map[string]interface{}{
		"StatusCode": appErr.Code,
		"StatusText": appErr.Message,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(appErr.Code)
	if err := view.Render(w, r, "error.html", data); err != nil {
		log.Error(err, "Failed to render error page")
	}
}
