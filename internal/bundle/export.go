package bundle

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// Export writes a bundle of the project to w and returns the manifest
// plus the SHA-256 of the compressed stream. That outer hash is the
// bundle's published identity.
func Export(fsys fs.FS, version string, w io.Writer) (*Manifest, string, error) {
	m, err := BuildManifest(fsys, version)
	if err != nil {
		return nil, "", err
	}

	h := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(w, h))
	tw := tar.NewWriter(gz)

	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, "", xerrors.Wrap(err, "marshal manifest")
	}
	if err := writeTarFile(tw, ManifestPath, manifestJSON, m.CreatedAt); err != nil {
		return nil, "", err
	}

	for _, f := range m.Files {
		data, err := fs.ReadFile(fsys, f.Path)
		if err != nil {
			return nil, "", xerrors.Wrapf(err, "read %s", f.Path)
		}
		if err := writeTarFile(tw, f.Path, data, m.CreatedAt); err != nil {
			return nil, "", err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, "", xerrors.Wrap(err, "close tar")
	}
	if err := gz.Close(); err != nil {
		return nil, "", xerrors.Wrap(err, "close gzip")
	}

	return m, hex.EncodeToString(h.Sum(nil)), nil
}

// ExportFile writes a bundle to path via a temp file so a failed
// export never leaves a partial bundle behind.
func ExportFile(fsys fs.FS, version, path string) (*Manifest, string, error) {
	tmp, err := os.CreateTemp("", "quarry-bundle-*.tar.gz")
	if err != nil {
		return nil, "", xerrors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	m, hash, err := Export(fsys, version, tmp)
	if err != nil {
		tmp.Close()
		return nil, "", err
	}
	if err := tmp.Close(); err != nil {
		return nil, "", xerrors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, "", xerrors.Wrapf(err, "rename bundle into %s", path)
	}
	return m, hash, nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return xerrors.Wrapf(err, "tar header %s", name)
	}
	if _, err := tw.Write(data); err != nil {
		return xerrors.Wrapf(err, "tar write %s", name)
	}
	return nil
}
