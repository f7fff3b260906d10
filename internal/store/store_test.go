package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/quarry/internal/model"
)

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"content/site.txt":                 "Title: Test\n",
		"content/1_photography/album.txt":  "Title: Photography\n",
		"content/1_photography/sunset.jpg": "jpegbytes",
		"content/2_notes/default.txt":      "Title: Notes\n",
		"content/error/default.txt":        "Title: Not found\n",
		"users/admin/user.txt":             "Email: admin@example.com\n\n----\n\nRole: admin\n",
	}
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
	return root
}

func load(t *testing.T, root string) *model.Snapshot {
	t.Helper()
	snap, err := model.NewLoader(os.DirFS(root), model.LoadOptions{}).Load(context.Background())
	require.NoError(t, err)
	return snap
}

func newStore(t *testing.T, root string) *Store {
	t.Helper()
	s, err := New(root, nil)
	require.NoError(t, err)
	return s
}

func TestCreatePage(t *testing.T) {
	root := writeProject(t)
	s := newStore(t, root)
	ctx := context.Background()

	id, err := s.CreatePage(ctx, load(t, root), CreatePageInput{
		ParentId: "photography",
		Slug:     "trip",
		Template: "album",
		Fields:   map[string]string{"title": "Trip"},
	})
	require.NoError(t, err)
	assert.Equal(t, "photography/trip", id)

	snap := load(t, root)
	trip := snap.FindPage("photography/trip")
	require.NotNil(t, trip)
	assert.Equal(t, model.StatusDraft, trip.Status())
	assert.Equal(t, "Trip", trip.Title())
	assert.NotEmpty(t, trip.UUID())

	// duplicate slug is rejected
	_, err = s.CreatePage(ctx, snap, CreatePageInput{ParentId: "photography", Slug: "trip"})
	require.ErrorIs(t, err, ErrExists)

	// invalid slug is rejected
	_, err = s.CreatePage(ctx, snap, CreatePageInput{Slug: "Bad Slug"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestUpdatePageContent(t *testing.T) {
	root := writeProject(t)
	s := newStore(t, root)
	ctx := context.Background()

	snap := load(t, root)
	require.NoError(t, s.UpdatePageContent(ctx, snap, "notes", map[string]string{
		"title": "All Notes",
		"intro": "Hello\nthere",
	}))

	updated := load(t, root).FindPage("notes")
	assert.Equal(t, "All Notes", updated.Title())
	assert.Equal(t, "Hello\nthere", updated.Field("intro").String())

	require.ErrorIs(t, s.UpdatePageContent(ctx, snap, "missing", nil), ErrNotFound)
}

func TestChangeSlugAndStatus(t *testing.T) {
	root := writeProject(t)
	s := newStore(t, root)
	ctx := context.Background()

	newID, err := s.ChangeSlug(ctx, load(t, root), "notes", "journal")
	require.NoError(t, err)
	assert.Equal(t, "journal", newID)

	snap := load(t, root)
	journal := snap.FindPage("journal")
	require.NotNil(t, journal)
	// sorting number survives the rename
	assert.Equal(t, model.StatusListed, journal.Status())

	// unlist: the numeric prefix goes away
	require.NoError(t, s.ChangeStatus(ctx, snap, "journal", model.StatusUnlisted, nil))
	snap = load(t, root)
	assert.Equal(t, model.StatusUnlisted, snap.FindPage("journal").Status())

	// relist at an explicit position
	pos := 5
	require.NoError(t, s.ChangeStatus(ctx, snap, "journal", model.StatusListed, &pos))
	snap = load(t, root)
	journal = snap.FindPage("journal")
	require.NotNil(t, journal.Num())
	assert.Equal(t, 5, *journal.Num())

	// back to draft
	require.NoError(t, s.ChangeStatus(ctx, snap, "journal", model.StatusDraft, nil))
	snap = load(t, root)
	assert.Equal(t, model.StatusDraft, snap.FindPage("journal").Status())
	assert.DirExists(t, filepath.Join(root, "content", "_drafts", "journal"))
}

func TestSortPages(t *testing.T) {
	root := writeProject(t)
	s := newStore(t, root)
	ctx := context.Background()

	require.NoError(t, s.SortPages(ctx, load(t, root), "", []string{"notes", "photography"}))

	snap := load(t, root)
	children := snap.Site.Children()
	require.Len(t, children, 3)
	assert.Equal(t, "notes", children[0].Slug())
	assert.Equal(t, 1, *children[0].Num())
	assert.Equal(t, "photography", children[1].Slug())
	assert.Equal(t, 2, *children[1].Num())
}

func TestDeletePage(t *testing.T) {
	root := writeProject(t)
	s := newStore(t, root)
	ctx := context.Background()

	snap := load(t, root)
	_, err := s.CreatePage(ctx, snap, CreatePageInput{ParentId: "photography", Slug: "trip", Publish: true})
	require.NoError(t, err)

	snap = load(t, root)
	require.ErrorIs(t, s.DeletePage(ctx, snap, "photography", false), ErrInvalid)
	require.NoError(t, s.DeletePage(ctx, snap, "photography", true))

	snap = load(t, root)
	assert.Nil(t, snap.FindPage("photography"))
}

func TestFileLifecycle(t *testing.T) {
	root := writeProject(t)
	s := newStore(t, root)
	ctx := context.Background()

	snap := load(t, root)
	id, err := s.CreateFile(ctx, snap, CreateFileInput{
		ParentId: "notes",
		Filename: "chart.png",
		Fields:   map[string]string{"alt": "A chart"},
	}, strings.NewReader("pngbytes"))
	require.NoError(t, err)
	assert.Equal(t, "notes/chart.png", id)

	snap = load(t, root)
	f := snap.FindFile("notes/chart.png")
	require.NotNil(t, f)
	assert.Equal(t, "A chart", f.Field("alt").String())
	assert.NotEmpty(t, f.UUID())

	// uploading over an existing file is rejected
	_, err = s.CreateFile(ctx, snap, CreateFileInput{ParentId: "notes", Filename: "chart.png"}, strings.NewReader("x"))
	require.ErrorIs(t, err, ErrExists)

	// .txt uploads would collide with content files
	_, err = s.CreateFile(ctx, snap, CreateFileInput{ParentId: "notes", Filename: "evil.txt"}, strings.NewReader("x"))
	require.ErrorIs(t, err, ErrInvalid)

	newID, err := s.RenameFile(ctx, snap, "notes/chart.png", "graph")
	require.NoError(t, err)
	assert.Equal(t, "notes/graph.png", newID)

	snap = load(t, root)
	renamed := snap.FindFile("notes/graph.png")
	require.NotNil(t, renamed)
	// sidecar moved with the asset
	assert.Equal(t, "A chart", renamed.Field("alt").String())

	require.NoError(t, s.DeleteFile(ctx, snap, "notes/graph.png"))
	snap = load(t, root)
	assert.Nil(t, snap.FindFile("notes/graph.png"))
	assert.NoFileExists(t, filepath.Join(root, "content", "2_notes", "graph.png.txt"))
}

func TestUserLifecycle(t *testing.T) {
	root := writeProject(t)
	s := newStore(t, root)
	ctx := context.Background()

	snap := load(t, root)
	require.NoError(t, s.CreateUser(ctx, snap, CreateUserInput{
		Id:           "bob",
		Email:        "bob@example.com",
		Name:         "Bob",
		Role:         "editor",
		PasswordHash: "$2a$10$hash",
	}))

	snap = load(t, root)
	bob := snap.User("bob")
	require.NotNil(t, bob)
	assert.Equal(t, "bob@example.com", bob.Email())
	assert.Equal(t, "$2a$10$hash", bob.PasswordHash())

	// duplicate email is rejected
	err := s.CreateUser(ctx, snap, CreateUserInput{Id: "bob2", Email: "bob@example.com"})
	require.ErrorIs(t, err, ErrExists)

	require.NoError(t, s.UpdateUser(ctx, snap, "bob", map[string]string{"name": "Robert"}))
	snap = load(t, root)
	assert.Equal(t, "Robert", snap.User("bob").Name())

	// the last admin can be neither deleted nor demoted
	require.ErrorIs(t, s.DeleteUser(ctx, snap, "admin"), ErrInvalid)
	require.ErrorIs(t, s.UpdateUser(ctx, snap, "admin", map[string]string{"role": "editor"}), ErrInvalid)
	require.NoError(t, s.DeleteUser(ctx, snap, "bob"))
	snap = load(t, root)
	assert.Nil(t, snap.User("bob"))
}
