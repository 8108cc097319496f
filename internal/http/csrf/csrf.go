package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"gitea.jw6.us/james/dashboard/internal/config"
)

type contextKey struct{}

const (
	cookieName = "dashboard_csrf"
	headerName = "X-CSRF-Token"
	fieldName  = "_csrf"
)

// Middleware issues a double-submit token cookie. Mutating requests must echo
// it in a form field or header and, when the browser sends Origin, come from
// this site.
func Middleware(cfg *config.Config) func(http.Handler) http.Handler {
	secure := cfg.SecureCookies()
	baseURL := cfg.BaseURL

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				var err error
				token, err = generateToken()
				if err != nil {
					http.Error(w, "failed to issue csrf token", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			if isStateChanging(r.Method) {
				if !sameOrigin(r, baseURL) {
					http.Error(w, "cross-origin request rejected", http.StatusForbidden)
					return
				}
				if !valid(token, provided(r)) {
					http.Error(w, "invalid csrf token", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), contextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext returns the CSRF token associated with the request.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

func provided(r *http.Request) string {
	if v := r.Header.Get(headerName); v != "" {
		return v
	}
	return r.FormValue(fieldName)
}

func valid(token, got string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(token), []byte(got)) == 1
}

func sameOrigin(r *http.Request, baseURL string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	base, err := url.Parse(baseURL)
	return err == nil && strings.EqualFold(u.Host, base.Host)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
