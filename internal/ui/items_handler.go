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

const itemsPath = "/items"

// Items lists one page of items. ?edit=<id> opens the edit form for a row
// and ?confirm=<id> asks before deleting it.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	h.renderItems(w, r, sess, svc, h.parseWindow(r), http.StatusOK, nil)
}

func (h *Handler) renderItems(w http.ResponseWriter, r *http.Request, sess *auth.BrowserSession, svc *dashboard.Service, win pagination.Window, status int, extra map[string]any) {
	data := h.withFlash(r, map[string]any{
		"Title":     "Items",
		"Window":    win,
		"Form":      itemForm{},
		"EditID":    "",
		"ConfirmID": "",
	})

	page, err := svc.Items(r.Context(), win)
	if err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		data["LoadError"] = api.ErrorMessage(err, "Failed to load items")
		for k, v := range extra {
			data[k] = v
		}
		h.renderStatus(w, r, status, "items.html", data)
		return
	}

	// A page past the end (after deletes, or a hand-edited URL) snaps back
	// to the last page.
	if clamped := win.Clamp(page.Count); clamped != win && r.Method == http.MethodGet {
		http.Redirect(w, r, clamped.URL(itemsPath, r.URL.Query()), http.StatusFound)
		return
	}

	q := r.URL.Query()
	data["Items"] = page.Data
	data["Pager"] = newPager(itemsPath, win, page.Count)
	data["ConfirmID"] = q.Get("confirm")
	if id := q.Get("edit"); id != "" {
		for _, it := range page.Data {
			if it.ID.String() == id {
				data["EditID"] = id
				data["EditForm"] = itemForm{Title: it.Title, Description: derefString(it.Description)}
			}
		}
	}
	for k, v := range extra {
		data[k] = v
	}
	h.renderStatus(w, r, status, "items.html", data)
}

// CreateItem validates the new-item form and posts it to the backend.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	win := h.parseWindow(r)

	form := parseItemForm(r)
	if err := validation.Struct(form); err != nil {
		fields, ok := fieldErrors(err)
		if !ok {
			httperrors.InternalError(w, r, err, "validate item form")
			return
		}
		h.renderItems(w, r, sess, svc, win, http.StatusUnprocessableEntity, map[string]any{
			"Form":       form,
			"FormErrors": fields,
			"CreateOpen": true,
		})
		return
	}

	if _, err := svc.CreateItem(r.Context(), form.create()); err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirectWindow(w, r, itemsPath, win, "error", api.ErrorMessage(err, "Failed to create item"))
		return
	}
	h.redirectWindow(w, r, itemsPath, win, "status", "Item created")
}

// UpdateItem applies the edit form to one item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid item id")
		return
	}
	win := h.parseWindow(r)

	form := parseItemForm(r)
	if err := validation.Struct(form); err != nil {
		fields, ok := fieldErrors(err)
		if !ok {
			httperrors.InternalError(w, r, err, "validate item form")
			return
		}
		h.renderItems(w, r, sess, svc, win, http.StatusUnprocessableEntity, map[string]any{
			"EditID":         id.String(),
			"EditForm":       form,
			"EditFormErrors": fields,
		})
		return
	}

	if _, err := svc.UpdateItem(r.Context(), id, form.update()); err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirectWindow(w, r, itemsPath, win, "error", api.ErrorMessage(err, "Failed to update item"))
		return
	}
	h.redirectWindow(w, r, itemsPath, win, "status", "Item updated")
}

// DeleteItem removes an item; the page asks for confirmation first.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	sess, svc, ok := h.session(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.BadRequestError(w, r, err, "invalid item id")
		return
	}
	win := h.parseWindow(r)

	if _, err := svc.DeleteItem(r.Context(), id); err != nil {
		if h.authFailure(w, r, sess, err) {
			return
		}
		h.redirectWindow(w, r, itemsPath, win, "error", api.ErrorMessage(err, "Failed to delete item"))
		return
	}
	h.redirectWindow(w, r, itemsPath, win, "status", "Item deleted")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
