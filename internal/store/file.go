package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/keithlinneman/quarry/internal/contentfile"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/pathutil"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

// CreateFileInput describes an upload.
type CreateFileInput struct {
	// ParentId is the owning page id, or "" for a site file.
	ParentId string
	Filename string
	Fields   map[string]string
	// Template forces a file template; "" lets blueprint matching decide.
	Template string
}

// CreateFile stores an uploaded asset plus its sidecar content file
// and returns the new file id.
func (s *Store) CreateFile(ctx context.Context, snap *model.Snapshot, in CreateFileInput, r io.Reader) (string, error) {
	if err := pathutil.CheckFilename(in.Filename); err != nil {
		return "", xerrors.Wrapf(ErrInvalid, "filename %q: %v", in.Filename, err)
	}
	if strings.HasSuffix(in.Filename, ".txt") {
		return "", xerrors.Wrapf(ErrInvalid, "filename %q: .txt is reserved for content files", in.Filename)
	}

	dir := "content"
	id := in.Filename
	if in.ParentId != "" {
		page := snap.FindPage(in.ParentId)
		if page == nil {
			return "", xerrors.Wrapf(ErrNotFound, "page %q", in.ParentId)
		}
		if page.File(in.Filename) != nil {
			return "", xerrors.Wrapf(ErrExists, "file %q", page.Id()+"/"+in.Filename)
		}
		dir = page.Root()
		id = page.Id() + "/" + in.Filename
	} else if snap.FindFile(in.Filename) != nil {
		return "", xerrors.Wrapf(ErrExists, "file %q", in.Filename)
	}

	assetPath := s.abs(dir + "/" + in.Filename)
	if _, err := os.Stat(assetPath); err == nil {
		return "", xerrors.Wrapf(ErrExists, "file %s", dir+"/"+in.Filename)
	}
	if err := copyAtomic(assetPath, r); err != nil {
		return "", err
	}

	content := contentfile.New()
	if err := applyFields(content, in.Fields); err != nil {
		return "", err
	}
	if in.Template != "" {
		if err := content.Set("template", in.Template); err != nil {
			return "", xerrors.Wrapf(ErrInvalid, "template: %v", err)
		}
	}
	ensureUUID(content)
	if err := writeContent(assetPath+".txt", content); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "file created", "id", id)
	return id, nil
}

// UpdateFileContent sets fields on a file's sidecar content file.
func (s *Store) UpdateFileContent(ctx context.Context, snap *model.Snapshot, id string, fields map[string]string) error {
	f := snap.FindFile(id)
	if f == nil {
		return xerrors.Wrapf(ErrNotFound, "file %q", id)
	}
	path := s.abs(f.ContentPath())
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
	s.logger.Info(ctx, "file content updated", "id", id, "fields", len(fields))
	return nil
}

// RenameFile changes a file's basename, keeping the extension, and
// moves the sidecar with it. Returns the new file id.
func (s *Store) RenameFile(ctx context.Context, snap *model.Snapshot, id, newName string) (string, error) {
	f := snap.FindFile(id)
	if f == nil {
		return "", xerrors.Wrapf(ErrNotFound, "file %q", id)
	}
	newFilename := newName
	if ext := f.Extension(); ext != "" {
		newFilename = newName + "." + ext
	}
	if err := pathutil.CheckFilename(newFilename); err != nil {
		return "", xerrors.Wrapf(ErrInvalid, "filename %q: %v", newFilename, err)
	}
	if newFilename == f.Filename() {
		return id, nil
	}

	oldAsset := s.abs(f.AssetPath())
	newAsset := filepath.Join(filepath.Dir(oldAsset), newFilename)
	if _, err := os.Stat(newAsset); err == nil {
		return "", xerrors.Wrapf(ErrExists, "file %q", newFilename)
	}
	if err := os.Rename(oldAsset, newAsset); err != nil {
		return "", xerrors.Wrapf(err, "renaming file %q", id)
	}
	if _, err := os.Stat(oldAsset + ".txt"); err == nil {
		if err := os.Rename(oldAsset+".txt", newAsset+".txt"); err != nil {
			return "", xerrors.Wrapf(err, "renaming sidecar of %q", id)
		}
	}

	newID := newFilename
	if pid := f.ParentId(); pid != "" {
		newID = pid + "/" + newFilename
	}
	s.logger.Info(ctx, "file renamed", "id", id, "new_id", newID)
	return newID, nil
}

// DeleteFile removes an asset and its sidecar.
func (s *Store) DeleteFile(ctx context.Context, snap *model.Snapshot, id string) error {
	f := snap.FindFile(id)
	if f == nil {
		return xerrors.Wrapf(ErrNotFound, "file %q", id)
	}
	assetPath := s.abs(f.AssetPath())
	if err := os.Remove(assetPath); err != nil && !os.IsNotExist(err) {
		return xerrors.Wrapf(err, "deleting %q", id)
	}
	if err := os.Remove(assetPath + ".txt"); err != nil && !os.IsNotExist(err) {
		return xerrors.Wrapf(err, "deleting sidecar of %q", id)
	}
	s.logger.Info(ctx, "file deleted", "id", id)
	return nil
}

// copyAtomic streams r into path via a temp file plus rename.
func copyAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".quarry-*.tmp")
	if err != nil {
		return xerrors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return xerrors.Wrap(err, "writing upload")
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
