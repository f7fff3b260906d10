// Package bundle packages a project directory into a signed,
// content-addressed .tar.gz for publishing, and pulls published
// bundles back down for serving. A bundle carries a manifest.json with
// a per-file digest so an extracted tree can be verified offline.
package bundle

import (
	"encoding/json"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/keithlinneman/quarry/internal/cryptoutil"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

// ManifestPath is the location of the manifest inside a bundle.
const ManifestPath = "manifest.json"

// ManifestSchema identifies the manifest layout.
const ManifestSchema = "quarry/bundle/v1"

// bundleRoots are the project paths that go into a bundle. Anything
// else in the project directory (caches, editor droppings) stays out.
var bundleRoots = []string{"content", "users", "blueprints", "quarry.toml"}

type Manifest struct {
	Schema    string    `json:"schema"`
	Version   string    `json:"version,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Summary   Summary   `json:"summary"`
	Files     []File    `json:"files"`
}

type Summary struct {
	TotalFiles int   `json:"total_files"`
	TotalSize  int64 `json:"total_size"`
}

// File is one manifest entry.
type File struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// BuildManifest walks the project roots and digests every regular
// file. Dotfiles are skipped the same way the content loader skips
// them.
func BuildManifest(fsys fs.FS, version string) (*Manifest, error) {
	m := &Manifest{
		Schema:    ManifestSchema,
		Version:   version,
		CreatedAt: time.Now().UTC(),
	}

	for _, root := range bundleRoots {
		info, err := fs.Stat(fsys, root)
		if err != nil {
			// users/, blueprints/ and quarry.toml are all optional
			continue
		}
		if !info.IsDir() {
			if err := m.addFile(fsys, root); err != nil {
				return nil, err
			}
			continue
		}
		err = fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") && path != root {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			return m.addFile(fsys, path)
		})
		if err != nil {
			return nil, xerrors.Wrapf(err, "walking %s", root)
		}
	}

	if len(m.Files) == 0 {
		return nil, xerrors.New("nothing to bundle: no content found")
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
	return m, nil
}

func (m *Manifest) addFile(fsys fs.FS, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		return xerrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	hash, size, err := cryptoutil.SHA256HexReader(f)
	if err != nil {
		return xerrors.Wrapf(err, "hash %s", path)
	}

	m.Files = append(m.Files, File{Path: path, SHA256: hash, Size: size})
	m.Summary.TotalFiles++
	m.Summary.TotalSize += size
	return nil
}

// LoadManifest reads and parses manifest.json from an extracted bundle.
func LoadManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestPath)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", ManifestPath)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, xerrors.Wrapf(err, "parse %s", ManifestPath)
	}
	if m.Schema != ManifestSchema {
		return nil, xerrors.Newf("unsupported manifest schema %q", m.Schema)
	}
	return &m, nil
}

// Verify checks an extracted tree against the manifest: every listed
// file must exist with a matching digest, and the tree must not carry
// files the manifest does not list.
func (m *Manifest) Verify(fsys fs.FS) error {
	listed := make(map[string]File, len(m.Files))
	for _, f := range m.Files {
		listed[f.Path] = f
	}

	for _, f := range m.Files {
		src, err := fsys.Open(f.Path)
		if err != nil {
			return xerrors.Wrapf(err, "manifest lists %s", f.Path)
		}
		hash, size, err := cryptoutil.SHA256HexReader(src)
		src.Close()
		if err != nil {
			return xerrors.Wrapf(err, "hash %s", f.Path)
		}
		if size != f.Size {
			return xerrors.Newf("size mismatch for %s: manifest %d, tree %d", f.Path, f.Size, size)
		}
		if !cryptoutil.HashEqual(hash, f.SHA256) {
			return xerrors.Newf("digest mismatch for %s", f.Path)
		}
	}

	// reject unlisted files so a tampered tree cannot smuggle content
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == ManifestPath {
			return nil
		}
		if _, ok := listed[path]; !ok {
			return xerrors.Newf("unlisted file in bundle: %s", path)
		}
		return nil
	})
	return err
}
