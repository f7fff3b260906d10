// Package blueprint loads the YAML schemas that describe content types:
// which fields a template carries, which files a page accepts, and how
// the panel should present them.
package blueprint

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// Blueprint is one parsed schema file.
type Blueprint struct {
	// Name is the blueprint name derived from the filename, not the YAML.
	Name string `yaml:"-"`

	Title  string           `yaml:"title"`
	Icon   string           `yaml:"icon"`
	Fields map[string]Field `yaml:"fields"`

	// Accept constrains the files a page or file template takes.
	Accept *Accept `yaml:"accept"`

	// Image controls the panel preview for file blueprints.
	Image *ImageSettings `yaml:"image"`

	Options map[string]bool `yaml:"options"`
}

type Field struct {
	Type     string `yaml:"type"`
	Label    string `yaml:"label"`
	Required bool   `yaml:"required"`
	Default  string `yaml:"default"`
}

// Accept rules. Extension and MIME entries are exact (case-insensitive)
// matches; Match entries are doublestar globs against the filename.
type Accept struct {
	Extension []string `yaml:"extension"`
	MIME      []string `yaml:"mime"`
	Match     []string `yaml:"match"`
	MaxSize   int64    `yaml:"maxsize"`
}

type ImageSettings struct {
	Ratio string `yaml:"ratio"`
	Back  string `yaml:"back"`
	Cover bool   `yaml:"cover"`
}

// Matches reports whether a file with the given name, mime type and
// size satisfies the accept rules. A nil Accept accepts everything.
func (a *Accept) Matches(filename, mimeType string, size int64) bool {
	if a == nil {
		return true
	}
	if a.MaxSize > 0 && size > a.MaxSize {
		return false
	}
	if len(a.Extension) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
		if !containsFold(a.Extension, ext) {
			return false
		}
	}
	if len(a.MIME) > 0 && !containsFold(a.MIME, mimeType) {
		return false
	}
	if len(a.Match) > 0 {
		hit := false
		for _, pattern := range a.Match {
			if ok, err := doublestar.Match(pattern, filename); err == nil && ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, e := range list {
		if strings.EqualFold(e, v) {
			return true
		}
	}
	return false
}

// Registry holds all blueprints of a project, grouped by kind.
type Registry struct {
	pages map[string]*Blueprint
	files map[string]*Blueprint
	users map[string]*Blueprint

	// fileOrder preserves name order for deterministic MatchFile results
	fileOrder []string
}

// Load reads blueprints/{pages,files,users}/*.yml from the project fs.
// A project without a blueprints directory yields an empty registry.
func Load(fsys fs.FS) (*Registry, error) {
	r := &Registry{
		pages: make(map[string]*Blueprint),
		files: make(map[string]*Blueprint),
		users: make(map[string]*Blueprint),
	}

	kinds := []struct {
		dir  string
		dst  map[string]*Blueprint
		keep *[]string
	}{
		{"blueprints/pages", r.pages, nil},
		{"blueprints/files", r.files, &r.fileOrder},
		{"blueprints/users", r.users, nil},
	}

	for _, kind := range kinds {
		entries, err := fs.ReadDir(fsys, kind.dir)
		if err != nil {
			// the whole group is optional
			continue
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".yml") {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			data, err := fs.ReadFile(fsys, path.Join(kind.dir, name))
			if err != nil {
				return nil, xerrors.Wrapf(err, "read blueprint %s/%s", kind.dir, name)
			}
			bp := &Blueprint{Name: strings.TrimSuffix(name, ".yml")}
			if err := yaml.Unmarshal(data, bp); err != nil {
				return nil, xerrors.Wrapf(err, "parse blueprint %s/%s", kind.dir, name)
			}
			kind.dst[bp.Name] = bp
			if kind.keep != nil {
				*kind.keep = append(*kind.keep, bp.Name)
			}
		}
	}
	return r, nil
}

// lookup falls back to "default", then to a synthesized empty blueprint.
// Blueprint resolution never fails; a missing schema just means no
// constraints and a generic panel presentation.
func lookup(m map[string]*Blueprint, name string) *Blueprint {
	if bp, ok := m[name]; ok {
		return bp
	}
	if bp, ok := m["default"]; ok {
		return bp
	}
	return &Blueprint{Name: name}
}

func (r *Registry) Page(name string) *Blueprint { return lookup(r.pages, name) }
func (r *Registry) File(name string) *Blueprint { return lookup(r.files, name) }
func (r *Registry) User(role string) *Blueprint { return lookup(r.users, role) }

// HasPage reports whether a page blueprint with this exact name exists.
func (r *Registry) HasPage(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// PageNames lists defined page blueprint names, sorted.
func (r *Registry) PageNames() []string {
	out := make([]string, 0, len(r.pages))
	for name := range r.pages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MatchFile returns the first file blueprint whose accept rules match,
// or the default file blueprint when none do. Used to derive a file's
// template when its sidecar content does not name one.
func (r *Registry) MatchFile(filename, mimeType string, size int64) *Blueprint {
	for _, name := range r.fileOrder {
		if name == "default" {
			continue
		}
		bp := r.files[name]
		if bp.Accept != nil && bp.Accept.Matches(filename, mimeType, size) {
			return bp
		}
	}
	return lookup(r.files, "default")
}
