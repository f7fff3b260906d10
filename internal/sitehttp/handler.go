// Package sitehttp serves the public read-only surface: page
// representations as JSON and uploaded files under content-addressed
// media URLs. Everything is resolved against the active snapshot, so a
// request sees one consistent content state end to end.
package sitehttp

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/pathutil"
)

type Handler struct {
	opts Options
}

func New(opts *Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: *opts}, nil
}

// RegisterRoutes mounts the site surface. It should be registered LAST
// so it becomes the fallback behind panel and ops routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/media/*", h.serveMedia)
	r.Head("/media/*", h.serveMedia)
	r.NotFound(h.servePage)
	r.MethodNotAllowed(h.serveMethodNotAllowed)
}

func (h *Handler) serveMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, HEAD")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.serveMethodNotAllowed(w, r)
		return
	}

	snap := h.opts.Manager.Current()
	if snap == nil {
		h.serveMaintenance(w, r)
		return
	}

	id, redirectTo, ok := resolvePagePath(r.URL.Path)
	if redirectTo != "" {
		http.Redirect(w, r, redirectTo, http.StatusPermanentRedirect)
		return
	}
	if !ok {
		h.serveNotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", h.opts.PageCacheControl)
	if id == "" {
		h.writeJSON(w, r, http.StatusOK, siteRepresentation(snap.Site))
		return
	}

	page := snap.FindPage(id)
	if page == nil || page.IsDraft() {
		// drafts are panel-only
		h.serveNotFound(w, r)
		return
	}
	h.writeJSON(w, r, http.StatusOK, pageRepresentation(page))
}

// resolvePagePath maps a URL path to a page id.
//
// Returns the id ("" for the site root), a canonical redirect target
// when the path carries a trailing slash, and whether the path is
// valid at all.
func resolvePagePath(urlPath string) (id string, redirectTo string, ok bool) {
	p := urlPath
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.Contains(p, "\x00") || strings.Contains(p, "\\") {
		return "", "", false
	}
	if pathutil.HasDotSegments(p) {
		return "", "", false
	}

	trailingSlash := strings.HasSuffix(p, "/")
	clean := path.Clean(p)
	if clean == "/" {
		return "", "", true
	}
	if trailingSlash {
		// canonical URLs carry no trailing slash
		return "", clean, true
	}

	id = strings.TrimPrefix(clean, "/")
	for _, segment := range strings.Split(id, "/") {
		if !pathutil.ValidSlug(segment) {
			return "", "", false
		}
	}
	return id, "", true
}

func (h *Handler) serveMaintenance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "60")
	serveFileWithStatus(w, r, http.StatusServiceUnavailable, h.opts.FallbackFS, h.opts.MaintenanceFile)
}

func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if existsFile(h.opts.FallbackFS, h.opts.NotFoundFile) {
		serveFileWithStatus(w, r, http.StatusNotFound, h.opts.FallbackFS, h.opts.NotFoundFile)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("404 page not found"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.opts.Logger.Warn(r.Context(), "writing response", "error", err.Error())
	}
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// statusOverrideWriter forces a status code on the first WriteHeader,
// because http.ServeFileFS writes its own.
type statusOverrideWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusOverrideWriter) WriteHeader(code int) {
	if w.wroteHeader {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(w.status)
}

func serveFileWithStatus(w http.ResponseWriter, r *http.Request, status int, fsys fs.FS, name string) {
	sw := &statusOverrideWriter{ResponseWriter: w, status: status}
	http.ServeFileFS(sw, r, fsys, name)
}

// pageJSON is the public page representation.
type pageJSON struct {
	Id       string            `json:"id"`
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Template string            `json:"template"`
	Status   string            `json:"status"`
	Content  map[string]string `json:"content"`
	Parent   string            `json:"parent,omitempty"`
	Children []pageLinkJSON    `json:"children"`
	Files    []fileJSON        `json:"files"`
}

type pageLinkJSON struct {
	Id    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type fileJSON struct {
	Filename string            `json:"filename"`
	URL      string            `json:"url"`
	MIME     string            `json:"mime"`
	Type     string            `json:"type"`
	Size     int64             `json:"size"`
	Content  map[string]string `json:"content"`
}

type siteJSON struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  map[string]string `json:"content"`
	Children []pageLinkJSON    `json:"children"`
	Files    []fileJSON        `json:"files"`
}

func pageRepresentation(p *model.Page) pageJSON {
	out := pageJSON{
		Id:       p.Id(),
		Title:    p.Title(),
		URL:      p.URL(),
		Template: p.Template(),
		Status:   string(p.Status()),
		Content:  p.Content().Map(),
		Children: pageLinks(p.Children()),
		Files:    fileList(p.Files()),
	}
	if parent := p.Parent(); parent != nil {
		out.Parent = parent.Id()
	}
	return out
}

func siteRepresentation(s *model.Site) siteJSON {
	return siteJSON{
		Title:    s.Title(),
		URL:      s.URL(),
		Content:  s.Content().Map(),
		Children: pageLinks(s.Children()),
		Files:    fileList(s.Files()),
	}
}

func pageLinks(pages []*model.Page) []pageLinkJSON {
	out := make([]pageLinkJSON, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageLinkJSON{Id: p.Id(), Title: p.Title(), URL: p.URL()})
	}
	return out
}

func fileList(files []*model.File) []fileJSON {
	out := make([]fileJSON, 0, len(files))
	for _, f := range files {
		out = append(out, fileJSON{
			Filename: f.Filename(),
			URL:      f.MediaURL(),
			MIME:     f.Asset().MIME(),
			Type:     string(f.Asset().Type()),
			Size:     f.Asset().Size(),
			Content:  f.Content().Map(),
		})
	}
	return out
}
