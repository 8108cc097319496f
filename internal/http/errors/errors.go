// Package errors logs handler failures with the chi request id and writes
// generic responses so internal details never reach the browser.
package errors

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// InternalError logs err and answers 500 without exposing details.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	LogError(r, message, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// BadRequestError logs err and answers 400 with clientMessage.
func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	logf(r, "[WARN]", "bad request: %v", err)
	http.Error(w, clientMessage, http.StatusBadRequest)
}

// Unavailable answers 503 when a dependency (backend or database) is down.
func Unavailable(w http.ResponseWriter, r *http.Request, err error, dependency string) {
	logf(r, "[WARN]", "%s unavailable: %v", dependency, err)
	http.Error(w, "unready", http.StatusServiceUnavailable)
}

// LogError logs err at [ERROR] with the request id.
func LogError(r *http.Request, message string, err error) {
	logf(r, "[ERROR]", "%s: %v", message, err)
}

// LogInfo logs message at [INFO] with the request id.
func LogInfo(r *http.Request, message string) {
	logf(r, "[INFO]", "%s", message)
}

func logf(r *http.Request, level, format string, args ...any) {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		log.Printf(level+" RequestID=%s: "+format, append([]any{requestID}, args...)...)
		return
	}
	log.Printf(level+" "+format, args...)
}
