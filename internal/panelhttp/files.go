package panelhttp

import (
	"mime"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/panel"
	"github.com/keithlinneman/quarry/internal/store"
)

func (h *Handler) fileParam(w http.ResponseWriter, r *http.Request, snap *model.Snapshot) *model.File {
	id := panel.PathFromAPI(chi.URLParam(r, "id"))
	f := snap.FindFile(id)
	if f == nil {
		h.fail(w, http.StatusNotFound, "file not found: "+id)
		return nil
	}
	return f
}

type fileDetail struct {
	panel.FileInfo
	Content map[string]string `json:"content"`
}

func fileDetailOf(f *model.File) fileDetail {
	return fileDetail{FileInfo: panel.NewFileInfo(f), Content: f.Content().Map()}
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	f := h.fileParam(w, r, snap)
	if f == nil {
		return
	}
	h.respond(w, http.StatusOK, fileDetailOf(f))
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	h.respond(w, http.StatusOK, struct {
		Files []panel.FileInfo `json:"files"`
	}{fileInfos(page.Files())})
}

func (h *Handler) listSiteFiles(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, struct {
		Files []panel.FileInfo `json:"files"`
	}{fileInfos(snap.Site.Files())})
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	page := h.pageParam(w, r, snap)
	if page == nil {
		return
	}
	h.upload(w, r, snap, page.Id())
}

func (h *Handler) uploadSiteFile(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	h.upload(w, r, snap, "")
}

// upload handles a multipart POST with a "file" part and an optional
// "template" form value. The upload is validated against the target
// blueprint's accept rules before anything is written.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request, snap *model.Snapshot, parentID string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.fail(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	part, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, http.StatusBadRequest, `missing "file" part`)
		return
	}
	defer part.Close()

	filename := path.Base(header.Filename)
	template := r.FormValue("template")
	if msg, ok := h.acceptUpload(snap, filename, header, template); !ok {
		h.fail(w, http.StatusUnprocessableEntity, msg)
		return
	}

	id, err := h.opts.Store.CreateFile(r.Context(), snap, store.CreateFileInput{
		ParentId: parentID,
		Filename: filename,
		Template: template,
	}, part)
	if err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok := h.reload(w, r)
	if !ok {
		return
	}
	f := snap.FindFile(id)
	if f == nil {
		h.fail(w, http.StatusInternalServerError, "uploaded file missing after reload")
		return
	}
	h.respond(w, http.StatusCreated, fileDetailOf(f))
}

// acceptUpload checks the upload against the forced template's accept
// rules, or requires that some file blueprint accepts it when matching
// is left to the registry.
func (h *Handler) acceptUpload(snap *model.Snapshot, filename string, header *multipart.FileHeader, template string) (string, bool) {
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(path.Ext(filename))
	}

	if template != "" {
		bp := snap.Blueprints.File(template)
		if bp.Accept != nil && !bp.Accept.Matches(filename, mimeType, header.Size) {
			return "file not accepted by template " + template, false
		}
		return "", true
	}

	bp := snap.Blueprints.MatchFile(filename, mimeType, header.Size)
	if bp.Accept != nil && !bp.Accept.Matches(filename, mimeType, header.Size) {
		return "file type not accepted", false
	}
	return "", true
}

func (h *Handler) updateFile(w http.ResponseWriter, r *http.Request) {
	var req updateContentRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	f := h.fileParam(w, r, snap)
	if f == nil {
		return
	}
	if err := h.opts.Store.UpdateFileContent(r.Context(), snap, f.Id(), req.Content); err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, fileDetailOf(snap.FindFile(f.Id())))
}

type renameFileRequest struct {
	Name string `json:"name"`
}

func (h *Handler) renameFile(w http.ResponseWriter, r *http.Request) {
	var req renameFileRequest
	if !h.decode(w, r, &req) {
		return
	}
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	f := h.fileParam(w, r, snap)
	if f == nil {
		return
	}
	newID, err := h.opts.Store.RenameFile(r.Context(), snap, f.Id(), req.Name)
	if err != nil {
		h.storeError(w, err)
		return
	}
	snap, ok = h.reload(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, fileDetailOf(snap.FindFile(newID)))
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w)
	if !ok {
		return
	}
	f := h.fileParam(w, r, snap)
	if f == nil {
		return
	}
	if err := h.opts.Store.DeleteFile(r.Context(), snap, f.Id()); err != nil {
		h.storeError(w, err)
		return
	}
	if _, ok := h.reload(w, r); !ok {
		return
	}
	h.respond(w, http.StatusOK, nil)
}
