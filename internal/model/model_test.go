package model

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectFS() fstest.MapFS {
	mod := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	file := func(data string) *fstest.MapFile {
		return &fstest.MapFile{Data: []byte(data), ModTime: mod}
	}
	return fstest.MapFS{
		"content/site.txt":  file("Title: Test Site\n\n----\n\nUuid: site-a1b2\n"),
		"content/logo.svg":  file("<svg/>"),
		"content/logo.svg.txt": file("Alt: The logo\n"),

		"content/1_photography/album.txt":      file("Title: Photography\n"),
		"content/1_photography/sunset.jpg":     file("jpegbytes"),
		"content/1_photography/sunset.jpg.txt": file("Caption: Dusk at the pier\n"),
		"content/1_photography/beach.jpg":      file("jpegbytes2"),

		"content/1_photography/1_trip/album.txt": file("Title: Trip\n"),

		"content/1_photography/_drafts/winter/album.txt": file("Title: Winter\n"),

		"content/2_notes/default.txt": file("Title: Notes\n"),
		"content/error/default.txt":   file("Title: Not found\n"),

		"users/admin/user.txt": file("Email: admin@example.com\n\n----\n\nName: Ada\n\n----\n\nRole: admin\n\n----\n\nPassword: $2a$10$hash\n\n----\n\nUuid: user-c3d4\n"),
		"users/bob/user.txt":   file("Email: bob@example.com\n"),

		"blueprints/pages/album.yml":   file("title: Album\n"),
		"blueprints/pages/default.yml": file("title: Page\n"),
		"blueprints/files/image.yml":   file("title: Image\naccept:\n  extension: [jpg, png]\n"),
	}
}

func loadSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	loader := NewLoader(projectFS(), LoadOptions{BaseURL: "https://example.com"})
	snap, err := loader.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func TestLoadTree(t *testing.T) {
	snap := loadSnapshot(t)

	assert.Equal(t, "Test Site", snap.Site.Title())
	require.Len(t, snap.Site.Children(), 3)

	// listed pages come first, in sorting order
	assert.Equal(t, "photography", snap.Site.Children()[0].Slug())
	assert.Equal(t, "notes", snap.Site.Children()[1].Slug())
	assert.Equal(t, "error", snap.Site.Children()[2].Slug())

	photo := snap.Site.Children()[0]
	assert.Equal(t, StatusListed, photo.Status())
	require.NotNil(t, photo.Num())
	assert.Equal(t, 1, *photo.Num())

	errPage := snap.Site.Children()[2]
	assert.Equal(t, StatusUnlisted, errPage.Status())
	assert.Nil(t, errPage.Num())
}

func TestIdentityAndTraversal(t *testing.T) {
	snap := loadSnapshot(t)

	trip := snap.FindPage("photography/trip")
	require.NotNil(t, trip)
	assert.Equal(t, "photography/trip", trip.Id())
	assert.Equal(t, "https://example.com/photography/trip", trip.URL())
	assert.Equal(t, "album", trip.Template())
	assert.Equal(t, 2, trip.Depth())

	parents := trip.Parents()
	require.Len(t, parents, 1)
	assert.Equal(t, "photography", parents[0].Slug())
	assert.Equal(t, trip.Parent(), parents[0])

	photo := snap.FindPage("photography")
	assert.True(t, photo.IsAncestorOf(trip))
	assert.False(t, trip.IsAncestorOf(photo))
	assert.False(t, trip.IsAncestorOf(trip))
	assert.False(t, photo.IsAncestorOf(nil))

	assert.Nil(t, snap.FindPage("photography/nope"))
	assert.Nil(t, snap.FindPage(""))
}

func TestDrafts(t *testing.T) {
	snap := loadSnapshot(t)

	winter := snap.FindPage("photography/winter")
	require.NotNil(t, winter)
	assert.Equal(t, StatusDraft, winter.Status())
	assert.True(t, winter.IsDraft())
	assert.Equal(t, "content/1_photography/_drafts/winter", winter.Root())

	photo := snap.FindPage("photography")
	require.Len(t, photo.Drafts(), 1)
	// drafts are not published children
	require.Len(t, photo.Children(), 1)
}

func TestFilesAndSidecars(t *testing.T) {
	snap := loadSnapshot(t)

	sunset := snap.FindFile("photography/sunset.jpg")
	require.NotNil(t, sunset)
	assert.Equal(t, "Dusk at the pier", sunset.Field("caption").String())
	assert.Equal(t, "image", sunset.Template())
	assert.Equal(t, "photography", sunset.ParentId())
	assert.Equal(t, "content/1_photography/sunset.jpg.txt", sunset.ContentPath())

	// sidecar-less files get empty content
	beach := snap.FindFile("photography/beach.jpg")
	require.NotNil(t, beach)
	assert.False(t, beach.Field("caption").Exists())

	// site files live at the content root
	logo := snap.FindFile("logo.svg")
	require.NotNil(t, logo)
	assert.Nil(t, logo.Page())
	assert.Equal(t, "The logo", logo.Field("alt").String())
}

func TestMediaURL(t *testing.T) {
	snap := loadSnapshot(t)

	sunset := snap.FindFile("photography/sunset.jpg")
	require.NotNil(t, sunset)
	hash := sunset.MediaHash()
	assert.Len(t, hash, mediaHashLen)
	assert.Equal(t, "https://example.com/media/pages/photography/"+hash+"/sunset.jpg", sunset.MediaURL())

	logo := snap.FindFile("logo.svg")
	assert.Equal(t, "https://example.com/media/site/"+logo.MediaHash()+"/logo.svg", logo.MediaURL())
}

func TestUsers(t *testing.T) {
	snap := loadSnapshot(t)

	admin := snap.User("admin")
	require.NotNil(t, admin)
	assert.Equal(t, "admin@example.com", admin.Email())
	assert.Equal(t, "Ada", admin.Name())
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "$2a$10$hash", admin.PasswordHash())

	bob := snap.UserByEmail("BOB@example.com")
	require.NotNil(t, bob)
	assert.Equal(t, "bob", bob.Name())
	assert.Equal(t, RoleEditor, bob.Role())

	assert.Nil(t, snap.UserByEmail("nobody@example.com"))
}

func TestIndexAndHash(t *testing.T) {
	snap := loadSnapshot(t)

	// 3 top-level + trip + winter draft
	assert.Equal(t, 5, snap.PageCount())
	assert.NotEmpty(t, snap.Meta.Hash)
	assert.Equal(t, "disk", snap.Meta.Source)

	again := loadSnapshot(t)
	assert.Equal(t, snap.Meta.Hash, again.Meta.Hash)
}

func TestValidate(t *testing.T) {
	snap := loadSnapshot(t)
	require.NoError(t, Validate(snap, ValidateOptions{RequireUsers: true}))

	fsys := projectFS()
	// same slug from a different dirname collides
	fsys["content/9_notes/default.txt"] = &fstest.MapFile{Data: []byte("Title: Clash\n")}
	dup, err := NewLoader(fsys, LoadOptions{}).Load(context.Background())
	require.NoError(t, err)
	err = Validate(dup, ValidateOptions{})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 1)
}

func TestManagerSwap(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Ready())
	require.Error(t, m.ReadyErr())
	assert.Empty(t, m.ContentHash())

	snap := loadSnapshot(t)
	old := m.Swap(snap)
	assert.Nil(t, old)
	assert.True(t, m.Ready())
	assert.Equal(t, snap.Meta.Hash, m.ContentHash())
}

func TestSplitDirname(t *testing.T) {
	cases := []struct {
		in   string
		num  *int
		slug string
	}{
		{"2_about", intp(2), "about"},
		{"0_home", intp(0), "home"},
		{"error", nil, "error"},
		{"2024-trip", nil, "2024-trip"},
		{"_drafts", nil, "_drafts"},
	}
	for _, tc := range cases {
		num, slug := SplitDirname(tc.in)
		assert.Equal(t, tc.slug, slug, tc.in)
		if tc.num == nil {
			assert.Nil(t, num, tc.in)
		} else {
			require.NotNil(t, num, tc.in)
			assert.Equal(t, *tc.num, *num, tc.in)
		}
		if tc.in != "_drafts" {
			assert.Equal(t, tc.in, JoinDirname(num, slug), tc.in)
		}
	}
}

func intp(n int) *int { return &n }
