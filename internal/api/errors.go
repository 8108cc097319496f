package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const defaultDetailMessage = "Request failed"

// APIError is a non-2xx backend answer. Body holds the parsed payload so
// callers can inspect structured validation details.
type APIError struct {
	StatusCode int
	Status     string
	Body       any
}

func (e *APIError) Error() string {
	status := e.Status
	if status == "" {
		status = strconv.Itoa(e.StatusCode)
		if text := http.StatusText(e.StatusCode); text != "" {
			status += " " + text
		}
	}
	return "Request failed: " + status
}

// Detail returns the backend's "detail" field and whether it was present.
func (e *APIError) Detail() (any, bool) {
	obj, ok := e.Body.(map[string]any)
	if !ok {
		return nil, false
	}
	d, ok := obj["detail"]
	return d, ok
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsForbidden reports a 403 answer.
func IsForbidden(err error) bool { return StatusCode(err) == http.StatusForbidden }

// IsUnauthorized reports a 401 answer.
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

// IsNotFound reports a 404 answer.
func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

// FormatDetail reduces a backend "detail" value to one human-readable line.
//
// Strings pass through; arrays join each entry's "msg" with "; "; objects
// yield their "message"; anything else falls back to its JSON form or a
// generic message.
func FormatDetail(detail any) string {
	switch d := detail.(type) {
	case string:
		return d
	case []any:
		parts := make([]string, 0, len(d))
		for _, item := range d {
			parts = append(parts, formatDetailEntry(item))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		if msg, ok := d["message"]; ok {
			return stringify(msg, defaultDetailMessage)
		}
		if b, err := json.Marshal(d); err == nil {
			return string(b)
		}
		return defaultDetailMessage
	default:
		return defaultDetailMessage
	}
}

func formatDetailEntry(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["msg"]; ok {
			return stringify(msg, "Invalid input")
		}
	}
	b, err := json.Marshal(item)
	if err != nil {
		return "Invalid input"
	}
	return string(b)
}

func stringify(v any, fallback string) string {
	switch x := v.(type) {
	case nil:
		return fallback
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		if b, err := json.Marshal(x); err == nil {
			return string(b)
		}
		return fmt.Sprint(x)
	}
}

// ErrorMessage is the single place errors are turned into user-facing text.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if detail, ok := apiErr.Detail(); ok {
			return FormatDetail(detail)
		}
		if msg := apiErr.Error(); msg != "" {
			return msg
		}
		return fallback
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return "Not authenticated"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
