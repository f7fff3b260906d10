package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/keithlinneman/quarry/internal/asset"
	"github.com/keithlinneman/quarry/internal/blueprint"
	"github.com/keithlinneman/quarry/internal/contentfile"
)

// mediaHashLen is the number of hex characters kept from the media
// token hash. 16 chars (64 bits) is plenty for cache busting.
const mediaHashLen = 16

// File is an uploaded asset plus the metadata from its sidecar content
// file ("sunset.jpg" + "sunset.jpg.txt"). Site files have a nil page.
type File struct {
	site *Site
	page *Page

	filename string
	asset    *asset.Asset
	content  *contentfile.Content

	tmplOnce sync.Once
	template string

	hashOnce  sync.Once
	mediaHash string

	bpOnce sync.Once
	bp     *blueprint.Blueprint
}

func (f *File) Site() *Site         { return f.site }
func (f *File) Page() *Page         { return f.page }
func (f *File) Asset() *asset.Asset { return f.asset }

func (f *File) Filename() string  { return f.filename }
func (f *File) Name() string      { return f.asset.Name() }
func (f *File) Extension() string { return f.asset.Extension() }

// Id is the file's path identifier: the parent page id plus the
// filename, or just the filename for site files.
func (f *File) Id() string {
	if f.page == nil {
		return f.filename
	}
	return f.page.Id() + "/" + f.filename
}

// ParentId is the id of the owning page, or "" for site files.
func (f *File) ParentId() string {
	if f.page == nil {
		return ""
	}
	return f.page.Id()
}

func (f *File) Content() *contentfile.Content { return f.content }

func (f *File) Field(key string) contentfile.Field { return f.content.Get(key) }

func (f *File) UUID() string { return f.content.Get("uuid").String() }

// Template is the file's content type: the "template" field from the
// sidecar when set, otherwise the first file blueprint whose accept
// rules match.
func (f *File) Template() string {
	f.tmplOnce.Do(func() {
		if t := f.content.Get("template").String(); t != "" {
			f.template = t
			return
		}
		f.template = f.site.blueprints.MatchFile(f.filename, f.asset.MIME(), f.asset.Size()).Name
	})
	return f.template
}

// Blueprint resolves the file's blueprint by template name.
func (f *File) Blueprint() *blueprint.Blueprint {
	f.bpOnce.Do(func() {
		f.bp = f.site.blueprints.File(f.Template())
	})
	return f.bp
}

// MediaHash is a short content token derived from the file's identity,
// size and modification time. It changes whenever the file changes, so
// media URLs can be cached forever.
func (f *File) MediaHash() string {
	f.hashOnce.Do(func() {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", f.Id(), f.asset.Size(), f.asset.Modified().UnixNano())))
		f.mediaHash = hex.EncodeToString(sum[:])[:mediaHashLen]
	})
	return f.mediaHash
}

// MediaURL is the public URL the file is served from. The hash segment
// is validated on request, so a stale URL 404s instead of serving the
// wrong bytes.
func (f *File) MediaURL() string {
	if f.page == nil {
		return fmt.Sprintf("%s/media/site/%s/%s", f.site.BaseURL(), f.MediaHash(), f.filename)
	}
	return fmt.Sprintf("%s/media/pages/%s/%s/%s", f.site.BaseURL(), f.page.Id(), f.MediaHash(), f.filename)
}

// ContentPath is the slash path of the sidecar content file under the
// project root.
func (f *File) ContentPath() string { return f.AssetPath() + ".txt" }

// AssetPath is the slash path of the asset itself under the project
// root.
func (f *File) AssetPath() string {
	if f.page == nil {
		return "content/" + f.filename
	}
	return f.page.relDir + "/" + f.filename
}
