package ui

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	"gitea.jw6.us/james/dashboard/internal/http/csrf"
	httperrors "gitea.jw6.us/james/dashboard/internal/http/errors"
	"gitea.jw6.us/james/dashboard/internal/pagination"
	"gitea.jw6.us/james/dashboard/internal/validation"
)

// parseWindow reads page and pageSize from the query string. Form posts
// carry the window in hidden fields so a redirect lands on the same page.
func (h *Handler) parseWindow(r *http.Request) pagination.Window {
	if r.Method == http.MethodGet {
		return pagination.FromQuery(r.URL.Query())
	}
	_ = r.ParseForm()
	return pagination.FromQuery(r.Form)
}

// withFlash adds flash messages and CSRF token to template data.
func (h *Handler) withFlash(r *http.Request, data map[string]any) map[string]any {
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		data["FlashMessage"] = status
	}
	if err := q.Get("error"); err != "" {
		data["FlashError"] = err
	}
	if csrfToken := csrf.TokenFromContext(r.Context()); csrfToken != "" {
		data["CSRFToken"] = csrfToken
	}
	data["AppName"] = h.appName()
	return data
}

func (h *Handler) appName() string {
	if h.cfg == nil || h.cfg.AppName == "" {
		return "App"
	}
	return h.cfg.AppName
}

// redirect redirects to a path with query parameters.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string, params map[string]string) {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	location := path
	if encoded := q.Encode(); encoded != "" {
		location += "?" + encoded
	}
	http.Redirect(w, r, location, http.StatusFound)
}

// redirectWindow redirects to path at window w with a flash parameter.
func (h *Handler) redirectWindow(w http.ResponseWriter, r *http.Request, path string, win pagination.Window, key, msg string) {
	q := url.Values{}
	if msg != "" {
		q.Set(key, msg)
	}
	http.Redirect(w, r, win.URL(path, q), http.StatusFound)
}

// render executes a template and writes the response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	h.renderStatus(w, r, http.StatusOK, name, data)
}

func (h *Handler) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := h.templates[name]
	if !ok {
		httperrors.InternalError(w, r, fmt.Errorf("template not found"), fmt.Sprintf("template %q not found", name))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		httperrors.LogError(r, fmt.Sprintf("template render error for %q", name), err)
	}
}

// session returns the browser session and the dashboard service bound to it.
func (h *Handler) session(r *http.Request) (*auth.BrowserSession, *dashboard.Service, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return nil, nil, false
	}
	return sess, h.registry.Service(sess), true
}

// authFailure handles errors that end the signed-in state. It reports whether
// a response was written.
func (h *Handler) authFailure(w http.ResponseWriter, r *http.Request, sess *auth.BrowserSession, err error) bool {
	switch {
	case errors.Is(err, api.ErrNotAuthenticated):
		http.Redirect(w, r, "/login", http.StatusFound)
		return true
	case api.IsUnauthorized(err) && h.cfg != nil && h.cfg.LogoutOnUnauthorized:
		if sess != nil {
			if lerr := h.registry.Logout(sess); lerr != nil {
				httperrors.LogError(r, "failed to clear session after 401", lerr)
			}
		}
		httperrors.LogInfo(r, "backend rejected the token, session cleared")
		h.redirect(w, r, "/login", map[string]string{"error": "Your session has expired. Please sign in again."})
		return true
	}
	return false
}

// pager is the view model behind the pagination controls.
type pager struct {
	Path       string
	Window     pagination.Window
	Count      int
	TotalPages int
	PrevURL    string
	NextURL    string
	Sizes      []pageSizeOption
}

type pageSizeOption struct {
	Size     int
	URL      string
	Selected bool
}

func newPager(path string, win pagination.Window, count int) pager {
	p := pager{Path: path, Window: win, Count: count, TotalPages: win.TotalPages(count)}
	if win.HasPrev() {
		p.PrevURL = win.SetPage(win.Page-1).URL(path, nil)
	}
	if win.HasNext(count) {
		p.NextURL = win.SetPage(win.Page+1).URL(path, nil)
	}
	for _, size := range pagination.PageSizes {
		p.Sizes = append(p.Sizes, pageSizeOption{
			Size:     size,
			URL:      win.SetPageSize(size).URL(path, nil),
			Selected: size == win.PageSize,
		})
	}
	return p
}

// Self links back to the current window.
func (p pager) Self() string { return p.Window.URL(p.Path, nil) }

// Link links to the current window with one extra query parameter.
func (p pager) Link(key, value string) string {
	return p.Window.URL(p.Path, url.Values{key: {value}})
}

var errNoSession = errors.New("no browser session in request context")

// fieldErrors extracts per-field messages from a validation failure.
func fieldErrors(err error) (validation.Errors, bool) {
	var fields validation.Errors
	if errors.As(err, &fields) {
		return fields, true
	}
	return nil, false
}
