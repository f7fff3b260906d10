package panelhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/keithlinneman/quarry/internal/auth"
	"github.com/keithlinneman/quarry/internal/httpmw"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/panel"
)

type ctxKey int

const userKey ctxKey = 0

// currentUser returns the authenticated user, or nil outside the
// session-gated route group.
func currentUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ip := httpmw.ClientIPFromContext(r.Context())
	if h.opts.LoginLimiter != nil && !h.opts.LoginLimiter.Allow(ip) {
		h.opts.Metrics.IncAuthDenied("rate_limited")
		w.Header().Set("Retry-After", "10")
		h.fail(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	email, err := auth.NormalizeEmail(req.Email)
	if err != nil {
		h.fail(w, http.StatusBadRequest, "invalid email")
		return
	}

	snap, ok := h.snapshot(w)
	if !ok {
		return
	}

	user := snap.UserByEmail(email)
	if user == nil || user.PasswordHash() == "" {
		// burn the same time as a real verification
		auth.FakeVerify(req.Password)
		h.opts.Metrics.IncAuthDenied("unknown_user")
		h.opts.Logger.Warn(r.Context(), "login failed", "reason", "unknown_user", "ip", ip)
		h.fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.VerifyPassword(user.PasswordHash(), req.Password) {
		h.opts.Metrics.IncAuthDenied("bad_password")
		h.opts.Logger.Warn(r.Context(), "login failed", "reason", "bad_password", "user", user.Id(), "ip", ip)
		h.fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, sess, err := h.opts.Sessions.Create(user.Id())
	if err != nil {
		h.opts.Logger.Error(r.Context(), err, "creating session")
		h.fail(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.opts.Logger.Info(r.Context(), "login", "user", user.Id())
	h.respond(w, http.StatusOK, panel.NewUserInfo(user))
}

// sessionToken pulls the session token from the cookie or an
// Authorization bearer header. Scripted API clients use the header.
func (h *Handler) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(h.opts.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if ah := r.Header.Get("Authorization"); len(ah) > 7 && strings.EqualFold(ah[:7], "Bearer ") {
		return strings.TrimSpace(ah[7:])
	}
	return ""
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := h.sessionToken(r); token != "" {
		h.opts.Sessions.Revoke(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.respond(w, http.StatusOK, nil)
}

func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, panel.NewUserInfo(currentUser(r.Context())))
}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.sessionToken(r)
		if token == "" {
			h.opts.Metrics.IncAuthDenied("no_session")
			h.fail(w, http.StatusUnauthorized, "authentication required")
			return
		}
		sess, ok := h.opts.Sessions.Lookup(token)
		if !ok {
			h.opts.Metrics.IncAuthDenied("expired_session")
			h.fail(w, http.StatusUnauthorized, "session expired")
			return
		}
		snap := h.opts.Manager.Current()
		if snap == nil {
			h.fail(w, http.StatusServiceUnavailable, "content not loaded")
			return
		}
		user := snap.User(sess.UserID)
		if user == nil {
			// user removed since login
			h.opts.Sessions.Revoke(token)
			h.opts.Metrics.IncAuthDenied("stale_user")
			h.fail(w, http.StatusUnauthorized, "session expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r.Context())
		if user == nil || !user.IsAdmin() {
			h.opts.Metrics.IncAuthDenied("not_admin")
			h.fail(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
