// Package store performs all content mutations. It writes straight to
// the project directory; the filesystem watcher picks the change up and
// loads a fresh snapshot, so snapshots themselves stay immutable.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/keithlinneman/quarry/internal/contentfile"
	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

// Sentinel errors the API layer maps to status codes.
var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
	ErrInvalid  = errors.New("invalid input")
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store mutates a project directory on disk.
type Store struct {
	root   string // absolute project root
	logger log.Logger
}

func New(root string, logger log.Logger) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, xerrors.Wrap(err, "resolving project root")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, xerrors.Wrapf(err, "project root %s", abs)
	}
	if !info.IsDir() {
		return nil, xerrors.Newf("project root %s is not a directory", abs)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute project root.
func (s *Store) Root() string { return s.root }

// abs joins a slash path from a snapshot onto the project root.
func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// writeFileAtomic writes via a temp file in the target directory plus
// rename, so the watcher never sees a half-written content file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".quarry-*.tmp")
	if err != nil {
		return xerrors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return xerrors.Wrapf(err, "writing %s", tmpName)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return xerrors.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return xerrors.Wrapf(err, "renaming into %s", path)
	}
	return nil
}

// writeContent marshals and atomically writes a content file.
func writeContent(path string, c *contentfile.Content) error {
	return writeFileAtomic(path, c.Marshal())
}

// applyFields sets the given fields on a content record, keeping the
// existing key order for keys already present.
func applyFields(c *contentfile.Content, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// title first, matching how content files are conventionally laid out
	sort.SliceStable(keys, func(i, j int) bool { return keys[i] == "title" && keys[j] != "title" })
	for _, k := range keys {
		if err := c.Set(k, fields[k]); err != nil {
			return xerrors.Wrapf(ErrInvalid, "field %q: %v", k, err)
		}
	}
	return nil
}

// ensureUUID assigns a fresh uuid field when none is present.
func ensureUUID(c *contentfile.Content) {
	if !c.Has("uuid") {
		_ = c.Set("uuid", uuid.NewString())
	}
}

// readContentFile loads and parses an existing content file.
func readContentFile(path string) (*contentfile.Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return contentfile.New(), nil
		}
		return nil, xerrors.Wrapf(err, "reading %s", path)
	}
	c, err := contentfile.Unmarshal(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "parsing %s", path)
	}
	return c, nil
}
