package panelhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/quarry/internal/auth"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/panel"
	"github.com/keithlinneman/quarry/internal/store"
)

func (h *Handler) userParam(w http.ResponseWriter, r *http.Request, snap *model.Snapshot) *model.User {
	id := chi.URLParam(r, "id")
	user := snap.User(id)
	if user == nil {
		h.fail(w, http.StatusNotFound, "user not found: "+id)
		return nil
	}
	return user
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	out := make([]panel.UserInfo, 0, len(snap.Users))
	for _, u := range snap.Users {
		out = append(out, panel.NewUserInfo(u))
	}
	h.respond(w, http.StatusOK, struct {
		Users []panel.UserInfo `json:"users"`
	}{out})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	user := h.userParam(w, r, snap)
	if user == nil {
		return
	}
	h.respond(w, http.StatusOK, panel.NewUserInfo(user))
}

type createUserRequest struct {
	Id       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.opts.Logger.Error(r.Context(), err, "hashing password")
		h.fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	if err := h.opts.Store.CreateUser(r.Context(), snap, store.CreateUserInput{
		Id:           req.Id,
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: hash,
	}); err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusCreated, panel.NewUserInfo(snap.User(req.Id)))
}

type updateUserRequest struct {
	Content map[string]string `json:"content"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	user := h.userParam(w, r, snap)
	if user == nil {
		return
	}
	actor := currentUser(r.Context())
	if !actor.IsAdmin() {
		if actor.Id() != user.Id() {
			h.opts.Metrics.IncAuthDenied("not_admin")
			h.fail(w, http.StatusForbidden, "cannot edit other users")
			return
		}
		if _, ok := req.Content["role"]; ok {
			h.opts.Metrics.IncAuthDenied("not_admin")
			h.fail(w, http.StatusForbidden, "cannot change own role")
			return
		}
	}
	// password goes through the dedicated endpoint so it is always
	// hashed
	delete(req.Content, "password")

	if err := h.opts.Store.UpdateUser(r.Context(), snap, user.Id(), req.Content); err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, panel.NewUserInfo(snap.User(user.Id())))
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	user := h.userParam(w, r, snap)
	if user == nil {
		return
	}
	actor := currentUser(r.Context())
	if !actor.IsAdmin() && actor.Id() != user.Id() {
		h.opts.Metrics.IncAuthDenied("not_admin")
		h.fail(w, http.StatusForbidden, "cannot change another user's password")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.opts.Logger.Error(r.Context(), err, "hashing password")
		h.fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.opts.Store.UpdateUser(r.Context(), snap, user.Id(), map[string]string{"password": hash}); err != nil {
		h.storeError(w, err)
		return
	}
	if _, ok := h.reload(w, r); !ok {
		return
	}
	// a password change invalidates the user's other sessions
	h.opts.Sessions.RevokeUser(user.Id())
	h.opts.Logger.Info(r.Context(), "password changed", "user", user.Id(), "by", actor.Id())
	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	user := h.userParam(w, r, snap)
	if user == nil {
		return
	}
	if err := h.opts.Store.DeleteUser(r.Context(), snap, user.Id()); err != nil {
		h.storeError(w, err)
		return
	}
	if _, ok := h.reload(w, r); !ok {
		return
	}
	h.opts.Sessions.RevokeUser(user.Id())
	h.respond(w, http.StatusOK, nil)
}
