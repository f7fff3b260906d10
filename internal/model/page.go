package model

import (
	"path/filepath"
	"sync"

	"github.com/keithlinneman/quarry/internal/blueprint"
	"github.com/keithlinneman/quarry/internal/contentfile"
)

// Page is a single node in the content tree. All fields are set by the
// loader; everything derived (id, url, blueprint) is memoized lazily
// because a snapshot never changes after it is built.
type Page struct {
	site   *Site
	parent *Page

	dirname  string // "2_about", "error", "2024-trip"
	relDir   string // slash path under the project root, e.g. "content/2_about"
	slug     string
	num      *int
	template string
	isDraft  bool

	content  *contentfile.Content
	children []*Page
	drafts   []*Page
	files    []*File

	idOnce sync.Once
	id     string

	urlOnce sync.Once
	url     string

	bpOnce sync.Once
	bp     *blueprint.Blueprint
}

func (p *Page) Site() *Site    { return p.site }
func (p *Page) Parent() *Page  { return p.parent }
func (p *Page) Slug() string   { return p.slug }
func (p *Page) Dirname() string { return p.dirname }

// Num returns the page's sorting number, or nil for unlisted pages and
// drafts.
func (p *Page) Num() *int { return p.num }

func (p *Page) Status() Status {
	switch {
	case p.isDraft:
		return StatusDraft
	case p.num != nil:
		return StatusListed
	default:
		return StatusUnlisted
	}
}

func (p *Page) IsDraft() bool { return p.isDraft }

// Id is the slash-joined slug path from the root, e.g.
// "photography/trip". Draft directories never appear in the id.
func (p *Page) Id() string {
	p.idOnce.Do(func() {
		if p.parent == nil {
			p.id = p.slug
			return
		}
		p.id = p.parent.Id() + "/" + p.slug
	})
	return p.id
}

// URL is the page's public URL: the site base URL followed by the id.
func (p *Page) URL() string {
	p.urlOnce.Do(func() {
		p.url = p.site.BaseURL() + "/" + p.Id()
	})
	return p.url
}

// Template is the page's content type, taken from the content file's
// basename ("album.txt" → "album"). Defaults to "default" when the page
// has no content file.
func (p *Page) Template() string {
	if p.template == "" {
		return "default"
	}
	return p.template
}

func (p *Page) Content() *contentfile.Content { return p.content }

func (p *Page) Field(key string) contentfile.Field { return p.content.Get(key) }

func (p *Page) Title() string {
	if t := p.content.Get("title").String(); t != "" {
		return t
	}
	return p.slug
}

// UUID returns the page's stable identifier from its content file, or
// "" when none is recorded.
func (p *Page) UUID() string { return p.content.Get("uuid").String() }

// Blueprint resolves the page's blueprint by template name, falling
// back to the default page blueprint.
func (p *Page) Blueprint() *blueprint.Blueprint {
	p.bpOnce.Do(func() {
		p.bp = p.site.blueprints.Page(p.Template())
	})
	return p.bp
}

// Parents returns the chain of ancestors, closest first.
func (p *Page) Parents() []*Page {
	var out []*Page
	for cur := p.parent; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	return out
}

// Depth is 1 for top-level pages.
func (p *Page) Depth() int { return len(p.Parents()) + 1 }

// IsAncestorOf reports whether p sits anywhere on other's parent chain.
func (p *Page) IsAncestorOf(other *Page) bool {
	if other == nil {
		return false
	}
	for cur := other.parent; cur != nil; cur = cur.parent {
		if cur == p {
			return true
		}
	}
	return false
}

func (p *Page) Children() []*Page { return p.children }
func (p *Page) Drafts() []*Page   { return p.drafts }
func (p *Page) Files() []*File    { return p.files }

// Find resolves a descendant by relative id ("trip/day-1").
func (p *Page) Find(id string) *Page {
	return p.site.Find(p.Id() + "/" + id)
}

// File returns the page file with the given filename, or nil.
func (p *Page) File(filename string) *File { return findFile(p.files, filename) }

// HasChildren reports whether the page has published children.
func (p *Page) HasChildren() bool { return len(p.children) > 0 }

// ContentPath is the slash path of the page's content file under the
// project root, e.g. "content/2_about/default.txt".
func (p *Page) ContentPath() string {
	return p.relDir + "/" + p.Template() + ".txt"
}

// Root is the slash path of the page's directory under the project
// root.
func (p *Page) Root() string { return p.relDir }

// DiskDir joins the page directory onto an absolute project root.
func (p *Page) DiskDir(projectRoot string) string {
	return filepath.Join(projectRoot, filepath.FromSlash(p.relDir))
}
