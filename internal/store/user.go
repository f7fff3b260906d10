package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/keithlinneman/quarry/internal/contentfile"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/pathutil"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

// CreateUserInput describes a new panel account. PasswordHash must
// already be a bcrypt hash; the store never sees plaintext passwords.
type CreateUserInput struct {
	Id           string
	Email        string
	Name         string
	Role         string
	PasswordHash string
}

// CreateUser writes users/<id>/user.txt.
func (s *Store) CreateUser(ctx context.Context, snap *model.Snapshot, in CreateUserInput) error {
	if !pathutil.ValidSlug(in.Id) {
		return xerrors.Wrapf(ErrInvalid, "user id %q", in.Id)
	}
	if in.Email == "" {
		return xerrors.Wrap(ErrInvalid, "email is required")
	}
	if snap != nil {
		if snap.User(in.Id) != nil {
			return xerrors.Wrapf(ErrExists, "user %q", in.Id)
		}
		if snap.UserByEmail(in.Email) != nil {
			return xerrors.Wrapf(ErrExists, "email %q", in.Email)
		}
	}

	dir := filepath.Join(s.root, "users", in.Id)
	if _, err := os.Stat(dir); err == nil {
		return xerrors.Wrapf(ErrExists, "user %q", in.Id)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return xerrors.Wrapf(err, "creating user directory %q", in.Id)
	}

	content := contentfile.New()
	fields := map[string]string{
		"email": in.Email,
		"name":  in.Name,
		"role":  in.Role,
	}
	if in.PasswordHash != "" {
		fields["password"] = in.PasswordHash
	}
	if err := applyFields(content, fields); err != nil {
		return err
	}
	ensureUUID(content)
	if err := writeContent(filepath.Join(dir, "user.txt"), content); err != nil {
		return err
	}

	s.logger.Info(ctx, "user created", "id", in.Id, "role", in.Role)
	return nil
}

// UpdateUser sets fields on a user's content file. Callers hash
// passwords before putting them in fields.
func (s *Store) UpdateUser(ctx context.Context, snap *model.Snapshot, id string, fields map[string]string) error {
	u := snap.User(id)
	if u == nil {
		return xerrors.Wrapf(ErrNotFound, "user %q", id)
	}
	if email, ok := fields["email"]; ok {
		if other := snap.UserByEmail(email); other != nil && other.Id() != id {
			return xerrors.Wrapf(ErrExists, "email %q", email)
		}
	}
	if role, ok := fields["role"]; ok {
		if u.IsAdmin() && role != model.RoleAdmin && countAdmins(snap) <= 1 {
			return xerrors.Wrap(ErrInvalid, "cannot demote the last admin")
		}
	}
	path := s.abs(u.ContentPath())
	content, err := readContentFile(path)
	if err != nil {
		return err
	}
	if err := applyFields(content, fields); err != nil {
		return err
	}
	if err := writeContent(path, content); err != nil {
		return err
	}
	s.logger.Info(ctx, "user updated", "id", id, "fields", len(fields))
	return nil
}

// DeleteUser removes an account. The last admin cannot be deleted.
func (s *Store) DeleteUser(ctx context.Context, snap *model.Snapshot, id string) error {
	u := snap.User(id)
	if u == nil {
		return xerrors.Wrapf(ErrNotFound, "user %q", id)
	}
	if u.IsAdmin() && countAdmins(snap) <= 1 {
		return xerrors.Wrap(ErrInvalid, "cannot delete the last admin")
	}
	if err := os.RemoveAll(filepath.Join(s.root, "users", id)); err != nil {
		return xerrors.Wrapf(err, "deleting user %q", id)
	}
	s.logger.Info(ctx, "user deleted", "id", id)
	return nil
}

func countAdmins(snap *model.Snapshot) int {
	n := 0
	for _, u := range snap.Users {
		if u.IsAdmin() {
			n++
		}
	}
	return n
}
