package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/keithlinneman/quarry/internal/asset"
	"github.com/keithlinneman/quarry/internal/blueprint"
	"github.com/keithlinneman/quarry/internal/contentfile"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

const (
	contentDirname    = "content"
	usersDirname      = "users"
	blueprintsDirname = "blueprints"
	siteContentFile   = "site.txt"
	userContentFile   = "user.txt"
)

// LoadOptions configure a project load.
type LoadOptions struct {
	// BaseURL is the site's public base URL without a trailing slash.
	BaseURL string
	// Source labels where the project bytes came from ("disk",
	// "bundle").
	Source string
	// Version is an optional content version string.
	Version string
}

// Loader builds immutable snapshots from a project filesystem laid out
// as content/, users/ and blueprints/ under a single root.
type Loader struct {
	fsys fs.FS
	opts LoadOptions
}

func NewLoader(fsys fs.FS, opts LoadOptions) *Loader {
	if opts.Source == "" {
		opts.Source = "disk"
	}
	return &Loader{fsys: fsys, opts: opts}
}

// Load reads the whole project and returns a snapshot. The returned
// snapshot shares nothing with previous loads; a failed load leaves any
// currently-active snapshot untouched.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	registry, err := blueprint.Load(l.fsys)
	if err != nil {
		return nil, xerrors.Wrap(err, "loading blueprints")
	}

	site := &Site{
		baseURL:    strings.TrimRight(l.opts.BaseURL, "/"),
		content:    contentfile.New(),
		blueprints: registry,
	}

	if err := l.loadContentRoot(ctx, site); err != nil {
		return nil, err
	}

	users, err := l.loadUsers(site)
	if err != nil {
		return nil, err
	}

	hash, err := l.hashProject()
	if err != nil {
		return nil, xerrors.Wrap(err, "hashing project")
	}

	return &Snapshot{
		Site:       site,
		Users:      users,
		Blueprints: registry,
		Meta: Meta{
			Source:  l.opts.Source,
			Hash:    hash,
			Version: l.opts.Version,
		},
		LoadedAt: time.Now(),
	}, nil
}

func (l *Loader) loadContentRoot(ctx context.Context, site *Site) error {
	entries, err := fs.ReadDir(l.fsys, contentDirname)
	if err != nil {
		return xerrors.Wrap(err, "reading content directory")
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if name == siteContentFile {
			content, err := l.readContent(contentDirname + "/" + name)
			if err != nil {
				return err
			}
			site.content = content
		}
	}

	children, drafts, files, err := l.loadDirEntries(ctx, site, nil, contentDirname, entries, false)
	if err != nil {
		return err
	}
	site.children, site.drafts, site.files = children, drafts, files
	return nil
}

// loadDir loads one page directory and everything below it.
func (l *Loader) loadDir(ctx context.Context, site *Site, parent *Page, relDir, dirname string, isDraft bool) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	num, slug := SplitDirname(dirname)
	if isDraft {
		num = nil
	}
	page := &Page{
		site:    site,
		parent:  parent,
		dirname: dirname,
		relDir:  relDir,
		slug:    slug,
		num:     num,
		isDraft: isDraft,
		content: contentfile.New(),
	}

	entries, err := fs.ReadDir(l.fsys, relDir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "reading page directory %s", relDir)
	}

	template, content, err := l.pickPageContent(site, relDir, entries)
	if err != nil {
		return nil, err
	}
	page.template = template
	if content != nil {
		page.content = content
	}

	children, drafts, files, err := l.loadDirEntries(ctx, site, page, relDir, entries, isDraft)
	if err != nil {
		return nil, err
	}
	page.children, page.drafts, page.files = children, drafts, files
	return page, nil
}

// loadDirEntries walks one directory's entries and loads child pages,
// drafts and files. Used for both page directories and the content
// root (where parent is nil).
func (l *Loader) loadDirEntries(ctx context.Context, site *Site, parent *Page, relDir string, entries []fs.DirEntry, isDraft bool) (children, drafts []*Page, files []*File, err error) {
	sidecars := map[string]*contentfile.Content{}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if entry.IsDir() {
			if name == DraftsDirname {
				drafts, err = l.loadDrafts(ctx, site, parent, relDir+"/"+name)
				if err != nil {
					return nil, nil, nil, err
				}
				continue
			}
			if strings.HasPrefix(name, "_") {
				continue
			}
			child, err := l.loadDir(ctx, site, parent, relDir+"/"+name, name, isDraft)
			if err != nil {
				return nil, nil, nil, err
			}
			children = append(children, child)
			continue
		}

		if strings.HasSuffix(name, ".txt") {
			trimmed := strings.TrimSuffix(name, ".txt")
			if strings.Contains(trimmed, ".") {
				content, err := l.readContent(relDir + "/" + name)
				if err != nil {
					return nil, nil, nil, err
				}
				sidecars[trimmed] = content
			}
			continue
		}

		files = append(files, &File{
			site:     site,
			page:     parent,
			filename: name,
			asset:    asset.New(l.fsys, relDir+"/"+name),
			content:  contentfile.New(),
		})
	}

	for _, f := range files {
		if c, ok := sidecars[f.filename]; ok {
			f.content = c
		}
	}

	sortPages(children)
	sortPages(drafts)
	sort.Slice(files, func(i, j int) bool { return files[i].filename < files[j].filename })
	return children, drafts, files, nil
}

func (l *Loader) loadDrafts(ctx context.Context, site *Site, parent *Page, draftsDir string) ([]*Page, error) {
	entries, err := fs.ReadDir(l.fsys, draftsDir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "reading drafts directory %s", draftsDir)
	}
	var drafts []*Page
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		draft, err := l.loadDir(ctx, site, parent, draftsDir+"/"+name, name, true)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// pickPageContent chooses the page's content file among the .txt
// entries whose basename has no extension left after trimming ".txt"
// (those are sidecars). When several qualify, a name with a matching
// page blueprint wins, then alphabetical order.
func (l *Loader) pickPageContent(site *Site, relDir string, entries []fs.DirEntry) (template string, content *contentfile.Content, err error) {
	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		trimmed := strings.TrimSuffix(name, ".txt")
		if trimmed == "" || strings.Contains(trimmed, ".") {
			continue
		}
		candidates = append(candidates, trimmed)
	}
	if len(candidates) == 0 {
		return "", nil, nil
	}
	sort.Strings(candidates)
	pick := candidates[0]
	for _, c := range candidates {
		if site.blueprints.HasPage(c) {
			pick = c
			break
		}
	}
	content, err = l.readContent(relDir + "/" + pick + ".txt")
	if err != nil {
		return "", nil, err
	}
	return pick, content, nil
}

func (l *Loader) loadUsers(site *Site) ([]*User, error) {
	entries, err := fs.ReadDir(l.fsys, usersDirname)
	if err != nil {
		// A project without panel accounts is valid.
		return nil, nil
	}
	var users []*User
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		content, err := l.readContent(usersDirname + "/" + name + "/" + userContentFile)
		if err != nil {
			return nil, err
		}
		users = append(users, &User{site: site, id: name, content: content})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].id < users[j].id })
	return users, nil
}

func (l *Loader) readContent(path string) (*contentfile.Content, error) {
	data, err := fs.ReadFile(l.fsys, path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "reading %s", path)
	}
	content, err := contentfile.Unmarshal(data)
	if err != nil {
		return nil, xerrors.Wrapf(err, "parsing %s", path)
	}
	return content, nil
}

// hashProject fingerprints every file under the project's three top
// directories by path, size and mtime. Cheaper than hashing contents
// and still changes whenever anything changes.
func (l *Loader) hashProject() (string, error) {
	h := sha256.New()
	for _, root := range []string{contentDirname, usersDirname, blueprintsDirname} {
		err := fs.WalkDir(l.fsys, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "%s\x00%d\x00%d\n", path, info.Size(), info.ModTime().UnixNano())
			return nil
		})
		if err != nil {
			if root != contentDirname {
				continue // users/ and blueprints/ are optional
			}
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sortPages orders listed pages first by sorting number, then unlisted
// pages alphabetically by slug.
func sortPages(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		switch {
		case a.num != nil && b.num != nil:
			if *a.num != *b.num {
				return *a.num < *b.num
			}
			return a.slug < b.slug
		case a.num != nil:
			return true
		case b.num != nil:
			return false
		default:
			return a.slug < b.slug
		}
	})
}
