package model

import (
	"strings"
	"sync"

	"github.com/keithlinneman/quarry/internal/blueprint"
	"github.com/keithlinneman/quarry/internal/contentfile"
)

// Site is the root of the content tree. Like every node in a snapshot
// it is immutable after loading; mutations go through the store, which
// rewrites disk and triggers a reload into a fresh snapshot.
type Site struct {
	baseURL    string
	content    *contentfile.Content
	blueprints *blueprint.Registry

	children []*Page
	drafts   []*Page
	files    []*File

	indexOnce sync.Once
	index     []*Page
}

func (s *Site) Title() string {
	if t := s.content.Get("title").String(); t != "" {
		return t
	}
	return "Site"
}

func (s *Site) Content() *contentfile.Content { return s.content }

func (s *Site) Field(key string) contentfile.Field { return s.content.Get(key) }

func (s *Site) Blueprints() *blueprint.Registry { return s.blueprints }

// URL returns the site root URL: the configured base URL, or "/" when
// none is set.
func (s *Site) URL() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL
}

// BaseURL returns the configured base URL without a trailing slash.
// Empty when the site is served relative to its host.
func (s *Site) BaseURL() string { return s.baseURL }

// Children returns the top-level published pages, listed pages first in
// sorting order.
func (s *Site) Children() []*Page { return s.children }

// Drafts returns the top-level draft pages.
func (s *Site) Drafts() []*Page { return s.drafts }

// Files returns files stored directly under the content root.
func (s *Site) Files() []*File { return s.files }

// Find resolves a page id ("photography/trip") to a page, searching
// published pages and drafts at every level. Returns nil when no page
// matches.
func (s *Site) Find(id string) *Page {
	id = strings.Trim(id, "/")
	if id == "" {
		return nil
	}
	segments := strings.Split(id, "/")
	var page *Page
	children, drafts := s.children, s.drafts
	for _, slug := range segments {
		page = findBySlug(children, drafts, slug)
		if page == nil {
			return nil
		}
		children, drafts = page.children, page.drafts
	}
	return page
}

// File resolves a file id ("photography/sunset.jpg" or "logo.svg" for a
// site file) to a file. Returns nil when no file matches.
func (s *Site) File(id string) *File {
	id = strings.Trim(id, "/")
	if id == "" {
		return nil
	}
	idx := strings.LastIndex(id, "/")
	if idx < 0 {
		return findFile(s.files, id)
	}
	page := s.Find(id[:idx])
	if page == nil {
		return nil
	}
	return findFile(page.files, id[idx+1:])
}

// Index returns every page in the tree, drafts included, in depth-first
// order. The slice is computed once and shared; callers must not modify
// it.
func (s *Site) Index() []*Page {
	s.indexOnce.Do(func() {
		var walk func(pages []*Page)
		walk = func(pages []*Page) {
			for _, p := range pages {
				s.index = append(s.index, p)
				walk(p.children)
				walk(p.drafts)
			}
		}
		walk(s.children)
		walk(s.drafts)
	})
	return s.index
}

func findBySlug(children, drafts []*Page, slug string) *Page {
	for _, p := range children {
		if p.slug == slug {
			return p
		}
	}
	for _, p := range drafts {
		if p.slug == slug {
			return p
		}
	}
	return nil
}

func findFile(files []*File, filename string) *File {
	for _, f := range files {
		if f.filename == filename {
			return f
		}
	}
	return nil
}
