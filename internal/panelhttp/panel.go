// Package panelhttp serves the management API: authenticated JSON
// endpoints for creating, editing and organizing pages, files and
// users. Reads resolve against the active snapshot; writes go through
// the store and trigger a reload so the response already reflects the
// new state.
package panelhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/store"
)

type Handler struct {
	opts Options
}

func New(opts *Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: *opts}, nil
}

// RegisterRoutes mounts the panel API. Page and file ids use "+" in
// place of "/" so nested ids fit a single route segment.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.login)
	r.Post("/auth/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)

		r.Get("/auth/whoami", h.whoami)
		r.Get("/system", h.system)

		r.Get("/site", h.getSite)
		r.Get("/site/children", h.listSiteChildren)
		r.Post("/site/children/sort", h.sortSiteChildren)
		r.Get("/site/files", h.listSiteFiles)
		r.Post("/site/files", h.uploadSiteFile)

		r.Post("/pages", h.createPage)
		r.Route("/pages/{id}", func(r chi.Router) {
			r.Get("/", h.getPage)
			r.Patch("/", h.updatePage)
			r.Delete("/", h.deletePage)
			r.Patch("/slug", h.changeSlug)
			r.Patch("/status", h.changeStatus)
			r.Get("/children", h.listChildren)
			r.Post("/children/sort", h.sortChildren)
			r.Get("/files", h.listFiles)
			r.Post("/files", h.uploadFile)
		})

		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/", h.getFile)
			r.Patch("/", h.updateFile)
			r.Delete("/", h.deleteFile)
			r.Patch("/name", h.renameFile)
		})

		r.Get("/users", h.listUsers)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", h.getUser)
			r.Patch("/", h.updateUser)
			r.Patch("/password", h.changePassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/users", h.createUser)
			r.Delete("/users/{id}", h.deleteUser)
		})
	})
}

type envelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Status: "ok", Code: status, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, envelope{Status: "error", Code: status, Message: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// storeError maps store sentinels onto API status codes. The store's
// error text is safe to return: it names ids and fields, never paths.
func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrExists):
		h.fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalid):
		h.fail(w, http.StatusBadRequest, err.Error())
	default:
		h.fail(w, http.StatusInternalServerError, "internal error")
	}
}

// snapshot returns the active snapshot or replies 503 when content has
// not loaded yet.
func (h *Handler) snapshot(w http.ResponseWriter) (*model.Snapshot, bool) {
	snap := h.opts.Manager.Current()
	if snap == nil {
		h.fail(w, http.StatusServiceUnavailable, "content not loaded")
		return nil, false
	}
	return snap, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// reload swaps in a fresh snapshot after a mutation. A reload failure
// means the write landed but the next snapshot did not: the watcher
// keeps the previous one active, which is the state we report.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) (*model.Snapshot, bool) {
	if err := h.opts.Reload(r.Context()); err != nil {
		h.opts.Logger.Error(r.Context(), err, "reload after mutation")
		h.fail(w, http.StatusConflict, "change saved but produced invalid content: "+err.Error())
		return nil, false
	}
	return h.snapshot(w)
}
