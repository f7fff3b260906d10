package sitehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/webassets"
)

func testProject() fstest.MapFS {
	mod := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	file := func(data string) *fstest.MapFile {
		return &fstest.MapFile{Data: []byte(data), ModTime: mod}
	}
	return fstest.MapFS{
		"content/site.txt":                     file("Title: Test Site\n"),
		"content/1_photography/album.txt":      file("Title: Photography\n"),
		"content/1_photography/sunset.jpg":     file("jpegbytes"),
		"content/1_photography/sunset.jpg.txt": file("Alt: Sunset\n"),
		"content/_drafts/secret/default.txt":   file("Title: Secret\n"),
	}
}

func newTestHandler(t *testing.T, loaded bool) (*Handler, *model.Snapshot) {
	t.Helper()
	fsys := testProject()
	mgr := model.NewManager()
	var snap *model.Snapshot
	if loaded {
		var err error
		snap, err = model.NewLoader(fsys, model.LoadOptions{}).Load(context.Background())
		require.NoError(t, err)
		mgr.Swap(snap)
	}
	h, err := New(&Options{
		Manager:    mgr,
		ProjectFS:  fsys,
		FallbackFS: webassets.FallbackFS(),
	})
	require.NoError(t, err)
	return h, snap
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, http.NoBody))
	return rec
}

func TestServeSiteRoot(t *testing.T) {
	h, _ := newTestHandler(t, true)
	rec := serve(h, http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	var body siteJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Test Site", body.Title)
	require.Len(t, body.Children, 1)
	assert.Equal(t, "photography", body.Children[0].Id)
}

func TestServePage(t *testing.T) {
	h, _ := newTestHandler(t, true)
	rec := serve(h, http.MethodGet, "/photography")

	require.Equal(t, http.StatusOK, rec.Code)
	var body pageJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "photography", body.Id)
	assert.Equal(t, "album", body.Template)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "sunset.jpg", body.Files[0].Filename)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestTrailingSlashRedirects(t *testing.T) {
	h, _ := newTestHandler(t, true)
	rec := serve(h, http.MethodGet, "/photography/")

	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/photography", rec.Header().Get("Location"))
}

func TestDraftsAreNotServed(t *testing.T) {
	h, _ := newTestHandler(t, true)
	rec := serve(h, http.MethodGet, "/secret")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownPage404(t *testing.T) {
	h, _ := newTestHandler(t, true)
	rec := serve(h, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestMaintenanceWithoutSnapshot(t *testing.T) {
	h, _ := newTestHandler(t, false)
	rec := serve(h, http.MethodGet, "/photography")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestServeMedia(t *testing.T) {
	h, snap := newTestHandler(t, true)
	f := snap.FindFile("photography/sunset.jpg")
	require.NotNil(t, f)

	rec := serve(h, http.MethodGet, "/media/pages/photography/"+f.MediaHash()+"/sunset.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpegbytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
}

func TestServeMediaWrongHash404(t *testing.T) {
	h, _ := newTestHandler(t, true)
	rec := serve(h, http.MethodGet, "/media/pages/photography/0000000000000000/sunset.jpg")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, true)
	rec := serve(h, http.MethodPost, "/photography")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestResolvePagePath(t *testing.T) {
	cases := []struct {
		in       string
		id       string
		redirect string
		ok       bool
	}{
		{"/", "", "", true},
		{"/about", "about", "", true},
		{"/photography/trip", "photography/trip", "", true},
		{"/about/", "", "/about", true},
		{"/../etc/passwd", "", "", false},
		{"/With Spaces", "", "", false},
	}
	for _, tc := range cases {
		id, redirect, ok := resolvePagePath(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.id, id, tc.in)
		assert.Equal(t, tc.redirect, redirect, tc.in)
	}
}
