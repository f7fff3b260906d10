package model

import (
	"strings"
	"sync"

	"github.com/keithlinneman/quarry/internal/blueprint"
	"github.com/keithlinneman/quarry/internal/contentfile"
)

// Role names the default permission tiers. Blueprints under
// blueprints/users/ can define additional roles.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// User is a panel account, backed by users/<id>/user.txt. The password
// field holds a bcrypt hash and is never exposed through the API.
type User struct {
	site *Site

	id      string // directory name under users/
	content *contentfile.Content

	bpOnce sync.Once
	bp     *blueprint.Blueprint
}

func (u *User) Id() string { return u.id }

func (u *User) Email() string {
	return normalizeEmail(u.content.Get("email").String())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) Name() string {
	if n := u.content.Get("name").String(); n != "" {
		return n
	}
	return u.id
}

func (u *User) Role() string {
	if r := u.content.Get("role").String(); r != "" {
		return r
	}
	return RoleEditor
}

func (u *User) IsAdmin() bool { return u.Role() == RoleAdmin }

func (u *User) UUID() string { return u.content.Get("uuid").String() }

// PasswordHash returns the stored bcrypt hash, or "" when the account
// has no password set.
func (u *User) PasswordHash() string { return u.content.Get("password").String() }

func (u *User) Content() *contentfile.Content { return u.content }

func (u *User) Field(key string) contentfile.Field { return u.content.Get(key) }

func (u *User) Blueprint() *blueprint.Blueprint {
	u.bpOnce.Do(func() {
		u.bp = u.site.blueprints.User(u.Role())
	})
	return u.bp
}

// ContentPath is the slash path of the user's content file under the
// project root.
func (u *User) ContentPath() string { return "users/" + u.id + "/user.txt" }
