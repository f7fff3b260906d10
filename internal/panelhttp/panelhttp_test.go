package panelhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/quarry/internal/auth"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/store"
)

type testEnv struct {
	router   *chi.Mux
	manager  *model.Manager
	sessions *auth.Sessions
	root     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	adminHash, err := auth.HashPassword("admin-password")
	require.NoError(t, err)
	editorHash, err := auth.HashPassword("editor-password")
	require.NoError(t, err)

	files := map[string]string{
		"content/site.txt":                 "Title: Test Site\n",
		"content/1_photography/album.txt":  "Title: Photography\n",
		"content/1_photography/sunset.jpg": "jpegbytes",
		"content/2_notes/default.txt":      "Title: Notes\n",
		"users/admin/user.txt":             fmt.Sprintf("Email: admin@example.com\n\n----\n\nRole: admin\n\n----\n\nPassword: %s\n", adminHash),
		"users/editor/user.txt":            fmt.Sprintf("Email: editor@example.com\n\n----\n\nRole: editor\n\n----\n\nPassword: %s\n", editorHash),
	}
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}

	loader := model.NewLoader(os.DirFS(root), model.LoadOptions{})
	manager := model.NewManager()
	reload := func(ctx context.Context) error {
		snap, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		manager.Swap(snap)
		return nil
	}
	require.NoError(t, reload(context.Background()))

	st, err := store.New(root, nil)
	require.NoError(t, err)
	sessions := auth.NewSessions(time.Hour)

	h, err := New(&Options{
		Manager:  manager,
		Store:    st,
		Sessions: sessions,
		Reload:   reload,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return &testEnv{router: r, manager: manager, sessions: sessions, root: root}
}

func (e *testEnv) do(t *testing.T, method, target, cookie string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "quarry_session", Value: cookie})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "quarry_session" {
			return c.Value
		}
	}
	t.Fatal("no session cookie in login response")
	return ""
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "ok", env.Status)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	token := e.login(t, "Admin@Example.com", "admin-password")
	assert.NotEmpty(t, token)

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionRequired(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/site", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/site", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "admin@example.com", "admin-password")

	// scripted clients send the session token as a bearer header
	req := httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/auth/whoami", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWhoamiAndLogout(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "admin@example.com", "admin-password")

	rec := e.do(t, http.MethodGet, "/api/auth/whoami", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var who struct {
		Id   string `json:"id"`
		Role string `json:"role"`
	}
	decodeData(t, rec, &who)
	assert.Equal(t, "admin", who.Id)
	assert.Equal(t, "admin", who.Role)

	rec = e.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/auth/whoami", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSiteAndPage(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "admin@example.com", "admin-password")

	rec := e.do(t, http.MethodGet, "/api/site", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var site struct {
		Title    string `json:"title"`
		Children []struct {
			Id string `json:"id"`
		} `json:"children"`
	}
	decodeData(t, rec, &site)
	assert.Equal(t, "Test Site", site.Title)
	require.Len(t, site.Children, 2)

	rec = e.do(t, http.MethodGet, "/api/pages/photography", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Id      string `json:"id"`
		ApiPath string `json:"apiPath"`
		Files   []struct {
			Filename string `json:"filename"`
		} `json:"files"`
	}
	decodeData(t, rec, &page)
	assert.Equal(t, "photography", page.Id)
	require.Len(t, page.Files, 1)

	rec = e.do(t, http.MethodGet, "/api/pages/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPageLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "admin@example.com", "admin-password")

	rec := e.do(t, http.MethodPost, "/api/pages", token, map[string]any{
		"parent":  "photography",
		"slug":    "trip",
		"content": map[string]string{"title": "Trip"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Id     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, rec, &created)
	assert.Equal(t, "photography/trip", created.Id)
	assert.Equal(t, "draft", created.Status)

	// nested ids use "+" in route segments
	rec = e.do(t, http.MethodPatch, "/api/pages/photography+trip", token, map[string]any{
		"content": map[string]string{"intro": "Hello"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPatch, "/api/pages/photography+trip/status", token, map[string]any{
		"status": "listed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Status string `json:"status"`
	}
	decodeData(t, rec, &updated)
	assert.Equal(t, "listed", updated.Status)

	rec = e.do(t, http.MethodPatch, "/api/pages/photography+trip/slug", token, map[string]any{
		"slug": "journey",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodDelete, "/api/pages/photography+journey", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodGet, "/api/pages/photography+journey", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePageConflict(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "admin@example.com", "admin-password")

	rec := e.do(t, http.MethodPost, "/api/pages", token, map[string]any{
		"slug": "notes",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/pages", token, map[string]any{
		"slug": "Not A Slug",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileUploadAndDelete(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "admin@example.com", "admin-password")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "beach.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("more jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/pages/photography/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "quarry_session", Value: token})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var file struct {
		Id       string `json:"id"`
		Filename string `json:"filename"`
	}
	decodeData(t, rec, &file)
	assert.Equal(t, "photography/beach.jpg", file.Id)

	rec = e.do(t, http.MethodPatch, "/api/files/photography+beach.jpg", token, map[string]any{
		"content": map[string]string{"alt": "Beach"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodDelete, "/api/files/photography+beach.jpg", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodGet, "/api/files/photography+beach.jpg", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserPermissions(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login(t, "admin@example.com", "admin-password")
	editor := e.login(t, "editor@example.com", "editor-password")

	// editors cannot manage accounts
	rec := e.do(t, http.MethodPost, "/api/users", editor, map[string]string{
		"id": "x", "email": "x@example.com", "password": "long-enough",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/users/admin", editor, map[string]any{
		"content": map[string]string{"name": "Hacked"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPatch, "/api/users/editor", editor, map[string]any{
		"content": map[string]string{"role": "admin"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// editors may edit their own profile
	rec = e.do(t, http.MethodPatch, "/api/users/editor", editor, map[string]any{
		"content": map[string]string{"name": "Eddie"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info struct {
		Name string `json:"name"`
	}
	decodeData(t, rec, &info)
	assert.Equal(t, "Eddie", info.Name)

	// admins can create and delete users
	rec = e.do(t, http.MethodPost, "/api/users", admin, map[string]string{
		"id": "writer", "email": "writer@example.com", "password": "long-enough",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodDelete, "/api/users/writer", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the last admin cannot be removed
	rec = e.do(t, http.MethodDelete, "/api/users/admin", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	e := newTestEnv(t)
	admin := e.login(t, "admin@example.com", "admin-password")
	editor := e.login(t, "editor@example.com", "editor-password")

	rec := e.do(t, http.MethodPatch, "/api/users/editor/password", admin, map[string]string{
		"password": "a-new-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/auth/whoami", editor, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	e.login(t, "editor@example.com", "a-new-password")
}
