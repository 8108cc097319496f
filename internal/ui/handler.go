package ui

import (
	"html/template"
	"net/http"
	"sync"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/config"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
)

// Handler serves server-rendered HTML pages.
type Handler struct {
	cfg       *config.Config
	registry  *dashboard.Registry
	templates map[string]*template.Template
}

// NewHandler builds the page handlers over the per-session registry.
func NewHandler(cfg *config.Config, registry *dashboard.Registry) *Handler {
	return &Handler{cfg: cfg, registry: registry, templates: templates}
}

// stat is one number on the home page. Err hides the value.
type stat struct {
	Value int
	Err   bool
}

// Home shows the signed-in user's overview.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	ctx := r.Context()

	var (
		wg           sync.WaitGroup
		user         *api.User
		userErr      error
		items, users stat
		online       bool
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		user, userErr = svc.CurrentUser(ctx)
	}()
	go func() {
		defer wg.Done()
		n, err := svc.ItemCount(ctx)
		items = stat{Value: n, Err: err != nil}
	}()
	go func() {
		defer wg.Done()
		n, err := svc.UserCount(ctx)
		users = stat{Value: n, Err: err != nil}
	}()
	go func() {
		defer wg.Done()
		up, err := svc.Health(ctx)
		online = err == nil && up
	}()
	wg.Wait()

	if userErr != nil && h.authFailure(w, r, sess, userErr) {
		return
	}

	data := h.withFlash(r, map[string]any{
		"Title":     "Home",
		"User":      user,
		"ItemCount": items,
		"UserCount": users,
		"Online":    online,
	})
	if userErr != nil {
		data["UserError"] = api.ErrorMessage(userErr, "Failed to load your account")
	}
	h.render(w, r, "home.html", data)
}
