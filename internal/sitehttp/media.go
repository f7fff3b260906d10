package sitehttp

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/quarry/internal/cryptoutil"
	"github.com/keithlinneman/quarry/internal/model"
)

// serveMedia resolves /media/pages/<page-id>/<hash>/<filename> and
// /media/site/<hash>/<filename>. The hash segment must match the
// file's current media hash: stale URLs 404 instead of serving bytes
// the URL was not minted for, which is what makes the immutable cache
// policy safe.
func (h *Handler) serveMedia(w http.ResponseWriter, r *http.Request) {
	snap := h.opts.Manager.Current()
	if snap == nil {
		h.serveMaintenance(w, r)
		return
	}

	rest := chi.URLParam(r, "*")
	f := resolveMedia(snap, rest)
	if f == nil {
		h.serveNotFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", h.opts.MediaCacheControl)
	http.ServeFileFS(w, r, h.opts.ProjectFS, f.AssetPath())
}

func resolveMedia(snap *model.Snapshot, rest string) *model.File {
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	// shortest valid form: site/<hash>/<filename>
	if len(segments) < 3 {
		return nil
	}

	filename := segments[len(segments)-1]
	hash := segments[len(segments)-2]

	var f *model.File
	switch segments[0] {
	case "site":
		if len(segments) != 3 {
			return nil
		}
		f = snap.FindFile(filename)
		if f != nil && f.Page() != nil {
			return nil
		}
	case "pages":
		pageID := strings.Join(segments[1:len(segments)-2], "/")
		if pageID == "" {
			return nil
		}
		page := snap.FindPage(pageID)
		if page == nil || page.IsDraft() {
			return nil
		}
		f = page.File(filename)
	default:
		return nil
	}

	if f == nil {
		return nil
	}
	if !cryptoutil.HashEqual(hash, f.MediaHash()) {
		return nil
	}
	return f
}
