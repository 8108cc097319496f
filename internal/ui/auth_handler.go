package ui

import (
	"net/http"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	httperrors "gitea.jw6.us/james/dashboard/internal/http/errors"
	"gitea.jw6.us/james/dashboard/internal/validation"
)

// LoginPage renders the sign-in form.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := h.withFlash(r, map[string]any{
		"Title":   "Sign in",
		"Form":    loginForm{},
		"HideNav": true,
	})
	h.render(w, r, "login.html", data)
}

// Login exchanges the submitted credentials for a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		httperrors.InternalError(w, r, errNoSession, "login without a bound session")
		return
	}

	form := parseLoginForm(r)
	if err := validation.Struct(form); err != nil {
		fields, ok := fieldErrors(err)
		if !ok {
			httperrors.InternalError(w, r, err, "validate login form")
			return
		}
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "login.html", h.withFlash(r, map[string]any{
			"Title":      "Sign in",
			"Form":       form,
			"FormErrors": fields,
			"HideNav":    true,
		}))
		return
	}

	if _, err := h.registry.Login(r.Context(), sess, form.Email, form.Password); err != nil {
		status := loginFailureStatus(err)
		if status == http.StatusUnauthorized {
			httperrors.LogInfo(r, "login failed: "+api.ErrorMessage(err, "Login failed"))
		} else {
			httperrors.LogError(r, "login request failed", err)
		}
		h.renderStatus(w, r, status, "login.html", h.withFlash(r, map[string]any{
			"Title":      "Sign in",
			"Form":       loginForm{Email: form.Email},
			"FlashError": api.ErrorMessage(err, "Login failed"),
			"HideNav":    true,
		}))
		return
	}

	h.redirect(w, r, "/", map[string]string{"status": "Signed in successfully"})
}

// loginFailureStatus maps a rejected login to the page status. Only a
// credential rejection is a 401; backend or transport failures are a 502.
func loginFailureStatus(err error) int {
	switch api.StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// Logout forgets the token and the session's cached data. No backend call
// is made.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		if err := h.registry.Logout(sess); err != nil {
			httperrors.LogError(r, "failed to clear session", err)
		}
	}
	h.redirect(w, r, "/login", map[string]string{"status": "Signed out"})
}
