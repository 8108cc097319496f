package ui

import (
	"net/http"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	httperrors "gitea.jw6.us/james/dashboard/internal/http/errors"
	"gitea.jw6.us/james/dashboard/internal/validation"
)

const settingsPath = "/settings"

// Settings shows the profile and password forms.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	h.renderSettings(w, r, sess, svc, http.StatusOK, nil)
}

func (h *Handler) renderSettings(w http.ResponseWriter, r *http.Request, sess *auth.BrowserSession, svc *dashboard.Service, status int, extra map[string]any) {
	data := h.withFlash(r, map[string]any{
		"Title":        "Settings",
		"PasswordForm": passwordForm{},
	})

	user, err := svc.CurrentUser(r.Context())
	if err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		data["LoadError"] = api.ErrorMessage(err, "Failed to load your profile")
	} else {
		data["User"] = user
		data["ProfileForm"] = profileForm{Email: user.Email, FullName: derefString(user.FullName)}
	}
	for k, v := range extra {
		data[k] = v
	}
	h.renderStatus(w, r, status, "settings.html", data)
}

// UpdateProfile saves the signed-in user's email and full name.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	form := parseProfileForm(r)
	if err := validation.Struct(form); err != nil {
		fields, ok := fieldErrors(err)
		if !ok {
			httperrors.InternalError(w, r, err, "validate profile form")
			return
		}
		h.renderSettings(w, r, sess, svc, http.StatusUnprocessableEntity, map[string]any{
			"ProfileForm":   form,
			"ProfileErrors": fields,
		})
		return
	}

	if _, err := svc.UpdateMe(r.Context(), form.input()); err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirect(w, r, settingsPath, map[string]string{"error": api.ErrorMessage(err, "Failed to update profile")})
		return
	}
	h.redirect(w, r, settingsPath, map[string]string{"status": "Profile updated"})
}

// ChangePassword checks the confirmation locally before calling the backend.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	form := parsePasswordForm(r)
	if err := validation.Struct(form); err != nil {
		fields, ok := fieldErrors(err)
		if !ok {
			httperrors.InternalError(w, r, err, "validate password form")
			return
		}
		h.renderSettings(w, r, sess, svc, http.StatusUnprocessableEntity, map[string]any{
			"PasswordErrors": fields,
		})
		return
	}

	msg, err := svc.ChangePassword(r.Context(), form.input())
	if err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirect(w, r, settingsPath, map[string]string{"error": api.ErrorMessage(err, "Failed to update password")})
		return
	}
	status := "Password updated"
	if msg != nil && msg.Message != "" {
		status = msg.Message
	}
	h.redirect(w, r, settingsPath, map[string]string{"status": status})
}
