package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	httperrors "gitea.jw6.us/james/dashboard/internal/http/errors"
	"gitea.jw6.us/james/dashboard/internal/pagination"
	"gitea.jw6.us/james/dashboard/internal/validation"
)

const usersPath = "/users"

// Users lists accounts for superusers. Everyone else gets the access denied
// panel the backend's 403 calls for.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	h.renderUsers(w, r, sess, svc, h.parseWindow(r), http.StatusOK, nil)
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, sess *auth.BrowserSession, svc *dashboard.Service, win pagination.Window, status int, extra map[string]any) {
	data := h.withFlash(r, map[string]any{
		"Title":     "Users",
		"Window":    win,
		"Form":      userCreateForm{IsActive: true},
		"EditID":    "",
		"ConfirmID": "",
	})
	merge := func() {
		for k, v := range extra {
			data[k] = v
		}
	}

	page, err := svc.Users(r.Context(), win)
	if err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		if api.IsForbidden(err) {
			data["Forbidden"] = true
			merge()
			h.renderStatus(w, r, http.StatusForbidden, "users.html", data)
			return
		}
		data["LoadError"] = api.ErrorMessage(err, "Failed to load users")
		merge()
		h.renderStatus(w, r, status, "users.html", data)
		return
	}

	if clamped := win.Clamp(page.Count); clamped != win && r.Method == http.MethodGet {
		http.Redirect(w, r, clamped.URL(usersPath, r.URL.Query()), http.StatusFound)
		return
	}

	q := r.URL.Query()
	data["Users"] = page.Data
	data["Pager"] = newPager(usersPath, win, page.Count)
	data["ConfirmID"] = q.Get("confirm")
	if id := q.Get("edit"); id != "" {
		for _, u := range page.Data {
			if u.ID.String() == id {
				data["EditID"] = id
				data["EditForm"] = userUpdateForm{
					Email:       u.Email,
					FullName:    derefString(u.FullName),
					IsActive:    u.IsActive,
					IsSuperuser: u.IsSuperuser,
				}
			}
		}
	}
	merge()
	h.renderStatus(w, r, status, "users.html", data)
}

// CreateUser validates the new-user form and posts it to the backend.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	win := h.parseWindow(r)

	form := parseUserCreateForm(r)
	if err := validation.Struct(form); err != nil {
		fields, ok := fieldErrors(err)
		if !ok {
			httperrors.InternalError(w, r, err, "validate user form")
			return
		}
		h.renderUsers(w, r, sess, svc, win, http.StatusUnprocessableEntity, map[string]any{
			"Form":       form,
			"FormErrors": fields,
			"CreateOpen": true,
		})
		return
	}

	if _, err := svc.CreateUser(r.Context(), form.input()); err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirectWindow(w, r, usersPath, win, "error", api.ErrorMessage(err, "Failed to create user"))
		return
	}
	h.redirectWindow(w, r, usersPath, win, "status", "User created")
}

// UpdateUser applies the edit form to one user. A blank password is left unchanged.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid user id")
		return
	}
	win := h.parseWindow(r)

	form := parseUserUpdateForm(r)
	if err := validation.Struct(form); err != nil {
		fields, ok := fieldErrors(err)
		if !ok {
			httperrors.InternalError(w, r, err, "validate user form")
			return
		}
		h.renderUsers(w, r, sess, svc, win, http.StatusUnprocessableEntity, map[string]any{
			"EditID":         id.String(),
			"EditForm":       form,
			"EditFormErrors": fields,
		})
		return
	}

	if _, err := svc.UpdateUser(r.Context(), id, form.input()); err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirectWindow(w, r, usersPath, win, "error", api.ErrorMessage(err, "Failed to update user"))
		return
	}
	h.redirectWindow(w, r, usersPath, win, "status", "User updated")
}

// DeleteUser removes a user; the page asks for confirmation first.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid user id")
		return
	}
	win := h.parseWindow(r)

	if _, err := svc.DeleteUser(r.Context(), id); err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirectWindow(w, r, usersPath, win, "error", api.ErrorMessage(err, "Failed to delete user"))
		return
	}
	h.redirectWindow(w, r, usersPath, win, "status", "User deleted")
}
