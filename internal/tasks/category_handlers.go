package tasks

import (
	"net/http"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/auth"
	"smart-tasks-backend/internal/httpapi"
)

// Categories are shared by every user; the handlers still require a caller.

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.Caller(w, r); !ok {
		return
	}
	list, err := h.svc.ListCategories(r.Context(), httpapi.QueryString(r, "search"), httpapi.QueryString(r, "ordering"))
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, list)
}

func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.Caller(w, r); !ok {
		return
	}

	var body CategoryFields
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	c, err := h.svc.CreateCategory(r.Context(), body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, c)
}

func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.Caller(w, r); !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	c, err := h.svc.GetCategory(r.Context(), id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, c)
}

func (h *Handlers) PatchCategory(w http.ResponseWriter, r *http.Request) {
	h.updateCategory(w, r, false)
}

// PutCategory behaves like PatchCategory but insists on a name.
func (h *Handlers) PutCategory(w http.ResponseWriter, r *http.Request) {
	h.updateCategory(w, r, true)
}

func (h *Handlers) updateCategory(w http.ResponseWriter, r *http.Request, full bool) {
	if _, ok := auth.Caller(w, r); !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	var body CategoryFields
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if full && body.Name == nil {
		httpapi.Error(w, r, apperr.Invalid("name", "this field is required"))
		return
	}

	c, err := h.svc.UpdateCategory(r.Context(), id, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, c)
}

func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.Caller(w, r); !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		httpapi.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	var taskID *uint
	id, set, err := httpapi.QueryUint(r, "task")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	if set {
		taskID = &id
	}

	list, err := h.svc.ListComments(r.Context(), uid, taskID)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, list)
}

func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}

	var body CommentInput
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.Error(w, r, err)
		return
	}

	c, err := h.svc.CreateComment(r.Context(), uid, body)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, c)
}

func (h *Handlers) GetComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.Caller(w, r)
	if !ok {
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}

	c, err := h.svc.GetComment(r.Context(), uid, id)
	if err != nil {
		httpapi.Error(w, r, err)
		return
	}
	httpapi.OK(w, c)
}
