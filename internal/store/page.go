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

// CreatePageInput describes a new page. New pages always start as
// drafts unless Publish is set; the panel publishes via ChangeStatus.
type CreatePageInput struct {
	// ParentId is the id of the parent page, or "" for a top-level page.
	ParentId string
	Slug     string
	Template string
	Fields   map[string]string
	// Publish creates the page as unlisted instead of as a draft.
	Publish bool
}

// CreatePage creates a page directory with its content file and
// returns the new page id.
func (s *Store) CreatePage(ctx context.Context, snap *model.Snapshot, in CreatePageInput) (string, error) {
	if !pathutil.ValidSlug(in.Slug) {
		return "", xerrors.Wrapf(ErrInvalid, "slug %q", in.Slug)
	}
	template := in.Template
	if template == "" {
		template = "default"
	}
	if !pathutil.ValidSlug(template) {
		return "", xerrors.Wrapf(ErrInvalid, "template %q", template)
	}

	parentDir := "content"
	id := in.Slug
	if in.ParentId != "" {
		parent := snap.FindPage(in.ParentId)
		if parent == nil {
			return "", xerrors.Wrapf(ErrNotFound, "parent page %q", in.ParentId)
		}
		if siblingExists(parent.Children(), parent.Drafts(), in.Slug) {
			return "", xerrors.Wrapf(ErrExists, "page %q", parent.Id()+"/"+in.Slug)
		}
		parentDir = parent.Root()
		id = parent.Id() + "/" + in.Slug
	} else if siblingExists(snap.Site.Children(), snap.Site.Drafts(), in.Slug) {
		return "", xerrors.Wrapf(ErrExists, "page %q", in.Slug)
	}

	rel := parentDir + "/" + in.Slug
	if !in.Publish {
		rel = parentDir + "/" + model.DraftsDirname + "/" + in.Slug
	}
	dir := s.abs(rel)
	if _, err := os.Stat(dir); err == nil {
		return "", xerrors.Wrapf(ErrExists, "directory %s", rel)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", xerrors.Wrapf(err, "creating %s", rel)
	}

	content := contentfile.New()
	if err := applyFields(content, in.Fields); err != nil {
		return "", err
	}
	ensureUUID(content)
	if err := writeContent(filepath.Join(dir, template+".txt"), content); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "page created", "id", id, "template", template, "draft", !in.Publish)
	return id, nil
}

// UpdatePageContent sets fields on a page's content file.
func (s *Store) UpdatePageContent(ctx context.Context, snap *model.Snapshot, id string, fields map[string]string) error {
	page := snap.FindPage(id)
	if page == nil {
		return xerrors.Wrapf(ErrNotFound, "page %q", id)
	}
	path := s.abs(page.ContentPath())
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
	s.logger.Info(ctx, "page content updated", "id", id, "fields", len(fields))
	return nil
}

// DeletePage removes a page directory. Pages with published children
// are refused unless force is set.
func (s *Store) DeletePage(ctx context.Context, snap *model.Snapshot, id string, force bool) error {
	page := snap.FindPage(id)
	if page == nil {
		return xerrors.Wrapf(ErrNotFound, "page %q", id)
	}
	if page.HasChildren() && !force {
		return xerrors.Wrapf(ErrInvalid, "page %q has children", id)
	}
	if err := os.RemoveAll(s.abs(page.Root())); err != nil {
		return xerrors.Wrapf(err, "deleting %s", page.Root())
	}
	s.logger.Info(ctx, "page deleted", "id", id, "force", force)
	return nil
}

// ChangeSlug renames a page directory, keeping its sorting number and
// status. The page's id and URL change with it.
func (s *Store) ChangeSlug(ctx context.Context, snap *model.Snapshot, id, newSlug string) (string, error) {
	if !pathutil.ValidSlug(newSlug) {
		return "", xerrors.Wrapf(ErrInvalid, "slug %q", newSlug)
	}
	page := snap.FindPage(id)
	if page == nil {
		return "", xerrors.Wrapf(ErrNotFound, "page %q", id)
	}
	if newSlug == page.Slug() {
		return id, nil
	}
	children, drafts := siblings(snap, page)
	if siblingExists(children, drafts, newSlug) {
		return "", xerrors.Wrapf(ErrExists, "sibling %q", newSlug)
	}

	oldDir := s.abs(page.Root())
	newDirname := model.JoinDirname(page.Num(), newSlug)
	newDir := filepath.Join(filepath.Dir(oldDir), newDirname)
	if err := os.Rename(oldDir, newDir); err != nil {
		return "", xerrors.Wrapf(err, "renaming page %q", id)
	}

	newID := newSlug
	if parent := page.Parent(); parent != nil {
		newID = parent.Id() + "/" + newSlug
	}
	s.logger.Info(ctx, "page slug changed", "id", id, "new_id", newID)
	return newID, nil
}

// ChangeStatus moves a page between draft, unlisted and listed.
// Listing assigns a sorting number: position when given, otherwise one
// past the highest sibling number.
func (s *Store) ChangeStatus(ctx context.Context, snap *model.Snapshot, id string, status model.Status, position *int) error {
	page := snap.FindPage(id)
	if page == nil {
		return xerrors.Wrapf(ErrNotFound, "page %q", id)
	}
	if page.Status() == status && status != model.StatusListed {
		return nil
	}

	var parentDir string
	var publishedSiblings []*model.Page
	if parent := page.Parent(); parent != nil {
		parentDir = s.abs(parent.Root())
		publishedSiblings = parent.Children()
	} else {
		parentDir = s.abs("content")
		publishedSiblings = snap.Site.Children()
	}

	var newDir string
	switch status {
	case model.StatusDraft:
		draftsDir := filepath.Join(parentDir, model.DraftsDirname)
		if err := os.MkdirAll(draftsDir, dirPerm); err != nil {
			return xerrors.Wrap(err, "creating drafts directory")
		}
		newDir = filepath.Join(draftsDir, page.Slug())

	case model.StatusUnlisted:
		newDir = filepath.Join(parentDir, page.Slug())

	case model.StatusListed:
		num := 0
		for _, sib := range publishedSiblings {
			if sib.Num() != nil && *sib.Num() > num {
				num = *sib.Num()
			}
		}
		num++
		if position != nil {
			if *position < 1 {
				return xerrors.Wrapf(ErrInvalid, "position %d", *position)
			}
			num = *position
		}
		newDir = filepath.Join(parentDir, model.JoinDirname(&num, page.Slug()))

	default:
		return xerrors.Wrapf(ErrInvalid, "status %q", status)
	}

	oldDir := s.abs(page.Root())
	if oldDir == newDir {
		return nil
	}
	if _, err := os.Stat(newDir); err == nil {
		return xerrors.Wrapf(ErrExists, "directory %s", newDir)
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return xerrors.Wrapf(err, "moving page %q", id)
	}
	s.logger.Info(ctx, "page status changed", "id", id, "status", string(status))
	return nil
}

// SortPages renumbers the listed children of a parent to match the
// given slug order. Slugs not mentioned keep their relative order after
// the mentioned ones.
func (s *Store) SortPages(ctx context.Context, snap *model.Snapshot, parentID string, order []string) error {
	var listed []*model.Page
	var parentDir string
	if parentID == "" {
		listed = listedOnly(snap.Site.Children())
		parentDir = s.abs("content")
	} else {
		parent := snap.FindPage(parentID)
		if parent == nil {
			return xerrors.Wrapf(ErrNotFound, "page %q", parentID)
		}
		listed = listedOnly(parent.Children())
		parentDir = s.abs(parent.Root())
	}

	rank := make(map[string]int, len(order))
	for i, slug := range order {
		rank[slug] = i
	}
	for _, p := range listed {
		if _, ok := rank[p.Slug()]; !ok {
			rank[p.Slug()] = len(order) + *p.Num()
		}
	}
	sorted := append([]*model.Page(nil), listed...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && rank[sorted[j].Slug()] < rank[sorted[j-1].Slug()]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	// two-phase rename so swapped numbers never collide mid-sort
	tmp := make([]string, len(sorted))
	for i, p := range sorted {
		tmp[i] = filepath.Join(parentDir, ".qsort-"+p.Slug())
		if err := os.Rename(s.abs(p.Root()), tmp[i]); err != nil {
			return xerrors.Wrapf(err, "staging page %q", p.Id())
		}
	}
	for i, p := range sorted {
		num := i + 1
		final := filepath.Join(parentDir, model.JoinDirname(&num, p.Slug()))
		if err := os.Rename(tmp[i], final); err != nil {
			return xerrors.Wrapf(err, "renumbering page %q", p.Id())
		}
	}
	s.logger.Info(ctx, "pages sorted", "parent", parentID, "count", len(sorted))
	return nil
}

func siblings(snap *model.Snapshot, page *model.Page) (children, drafts []*model.Page) {
	if parent := page.Parent(); parent != nil {
		return parent.Children(), parent.Drafts()
	}
	return snap.Site.Children(), snap.Site.Drafts()
}

func siblingExists(children, drafts []*model.Page, slug string) bool {
	for _, p := range children {
		if p.Slug() == slug {
			return true
		}
	}
	for _, p := range drafts {
		if p.Slug() == slug {
			return true
		}
	}
	return false
}

func listedOnly(pages []*model.Page) []*model.Page {
	var out []*model.Page
	for _, p := range pages {
		if p.Num() != nil {
			out = append(out, p)
		}
	}
	return out
}
