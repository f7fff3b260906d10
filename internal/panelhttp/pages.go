package panelhttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/panel"
	"github.com/keithlinneman/quarry/internal/store"
)

// pageParam resolves the {id} route segment ("+" separated) against a
// snapshot. Writes a 404 and returns nil when the page does not exist.
func (h *Handler) pageParam(w http.ResponseWriter, r *http.Request, snap *model.Snapshot) *model.Page {
	id := panel.PathFromAPI(chi.URLParam(r, "id"))
	page := snap.FindPage(id)
	if page == nil {
		h.fail(w, http.StatusNotFound, "page not found: "+id)
		return nil
	}
	return page
}

// pageDetail is PageInfo plus content and child listings.
type pageDetail struct {
	panel.PageInfo
	Content  map[string]string `json:"content"`
	Children []panel.PageInfo  `json:"children"`
	Drafts   []panel.PageInfo  `json:"drafts"`
	Files    []panel.FileInfo  `json:"files"`
}

func pageDetailOf(p *model.Page) pageDetail {
	return pageDetail{
		PageInfo: panel.NewPageInfo(p),
		Content:  p.Content().Map(),
		Children: pageInfos(p.Children()),
		Drafts:   pageInfos(p.Drafts()),
		Files:    fileInfos(p.Files()),
	}
}

func pageInfos(pages []*model.Page) []panel.PageInfo {
	out := make([]panel.PageInfo, 0, len(pages))
	for _, p := range pages {
		out = append(out, panel.NewPageInfo(p))
	}
	return out
}

func fileInfos(files []*model.File) []panel.FileInfo {
	out := make([]panel.FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, panel.NewFileInfo(f))
	}
	return out
}

type siteDetail struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  map[string]string `json:"content"`
	Children []panel.PageInfo  `json:"children"`
	Drafts   []panel.PageInfo  `json:"drafts"`
	Files    []panel.FileInfo  `json:"files"`
}

func (h *Handler) getSite(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, siteDetail{
		Title:    snap.Site.Title(),
		URL:      snap.Site.URL(),
		Content:  snap.Site.Content().Map(),
		Children: pageInfos(snap.Site.Children()),
		Drafts:   pageInfos(snap.Site.Drafts()),
		Files:    fileInfos(snap.Site.Files()),
	})
}

type systemInfo struct {
	Source      string `json:"source"`
	ContentHash string `json:"contentHash"`
	Version     string `json:"version,omitempty"`
	LoadedAt    string `json:"loadedAt"`
	Pages       int    `json:"pages"`
	Users       int    `json:"users"`
}

func (h *Handler) system(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, systemInfo{
		Source:      snap.Meta.Source,
		ContentHash: snap.Meta.Hash,
		Version:     snap.Meta.Version,
		LoadedAt:    snap.LoadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Pages:       snap.PageCount(),
		Users:       len(snap.Users),
	})
}

func (h *Handler) getPage(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	h.respond(w, http.StatusOK, pageDetailOf(page))
}

type createPageRequest struct {
	Parent   string            `json:"parent"`
	Slug     string            `json:"slug"`
	Template string            `json:"template"`
	Content  map[string]string `json:"content"`
	Publish  bool              `json:"publish"`
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	id, err := h.opts.Store.CreatePage(r.Context(), snap, store.CreatePageInput{
		ParentId: panel.PathFromAPI(req.Parent),
		Slug:     req.Slug,
		Template: req.Template,
		Fields:   req.Content,
		Publish:  req.Publish,
	})
	if err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	page := snap.FindPage(id)
	if page == nil {
		h.fail(w, http.StatusInternalServerError, "created page missing after reload")
		return
	}
	h.respond(w, http.StatusCreated, pageDetailOf(page))
}

type updateContentRequest struct {
	Content map[string]string `json:"content"`
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	var req updateContentRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	if err := h.opts.Store.UpdatePageContent(r.Context(), snap, page.Id(), req.Content); err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, pageDetailOf(snap.FindPage(page.Id())))
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	force := r.URL.Query().Get("force") == "true"
	if err := h.opts.Store.DeletePage(r.Context(), snap, page.Id(), force); err != nil {
		h.storeError(w, err)
		return
	}
	if _, ok := h.reload(w, r); !ok {
		return
	}
	h.respond(w, http.StatusOK, nil)
}

type changeSlugRequest struct {
	Slug string `json:"slug"`
}

func (h *Handler) changeSlug(w http.ResponseWriter, r *http.Request) {
	var req changeSlugRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	newID, err := h.opts.Store.ChangeSlug(r.Context(), snap, page.Id(), req.Slug)
	if err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, pageDetailOf(snap.FindPage(newID)))
}

type changeStatusRequest struct {
	Status   string `json:"status"`
	Position *int   `json:"position,omitempty"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	if err := h.opts.Store.ChangeStatus(r.Context(), snap, page.Id(), status, req.Position); err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, pageDetailOf(snap.FindPage(page.Id())))
}

func (h *Handler) listChildren(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	h.respond(w, http.StatusOK, struct {
		Children []panel.PageInfo `json:"children"`
		Drafts   []panel.PageInfo `json:"drafts"`
	}{pageInfos(page.Children()), pageInfos(page.Drafts())})
}

func (h *Handler) listSiteChildren(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, struct {
		Children []panel.PageInfo `json:"children"`
		Drafts   []panel.PageInfo `json:"drafts"`
	}{pageInfos(snap.Site.Children()), pageInfos(snap.Site.Drafts())})
}

type sortRequest struct {
	Order []string `json:"order"`
}

func (h *Handler) sortChildren(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	h.sortPages(w, r, snap, page.Id())
}

func (h *Handler) sortSiteChildren(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	h.sortPages(w, r, snap, "")
}

func (h *Handler) sortPages(w http.ResponseWriter, r *http.Request, snap *model.Snapshot, parentID string) {
	var req sortRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.opts.Store.SortPages(r.Context(), snap, parentID, req.Order); err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok := h.reload(w, r)
	if !ok {
		return
	}
	children := snap.Site.Children()
	if parentID != "" {
		children = snap.FindPage(parentID).Children()
	}
	h.respond(w, http.StatusOK, struct {
		Children []panel.PageInfo `json:"children"`
	}{pageInfos(children)})
}
