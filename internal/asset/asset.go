// Package asset provides low-level introspection of a single managed
// file: size, mime type, media classification and image dimensions.
// Model types (page files, users avatars) wrap an Asset and delegate.
package asset

import (
	"image"
	"io/fs"
	"mime"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"

	// registered for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Type is the coarse media classification used for panel icons and
// blueprint accept rules.
type Type string

const (
	TypeImage    Type = "image"
	TypeDocument Type = "document"
	TypeArchive  Type = "archive"
	TypeCode     Type = "code"
	TypeVideo    Type = "video"
	TypeAudio    Type = "audio"
	TypeUnknown  Type = "unknown"
)

var typeByExt = map[string]Type{
	"jpg": TypeImage, "jpeg": TypeImage, "png": TypeImage, "gif": TypeImage,
	"webp": TypeImage, "avif": TypeImage, "svg": TypeImage, "ico": TypeImage,
	"bmp": TypeImage, "tiff": TypeImage,

	"pdf": TypeDocument, "doc": TypeDocument, "docx": TypeDocument,
	"xls": TypeDocument, "xlsx": TypeDocument, "ppt": TypeDocument,
	"pptx": TypeDocument, "csv": TypeDocument, "txt": TypeDocument,
	"md": TypeDocument, "rtf": TypeDocument,

	"zip": TypeArchive, "tar": TypeArchive, "gz": TypeArchive,
	"rar": TypeArchive, "7z": TypeArchive,

	"css": TypeCode, "js": TypeCode, "json": TypeCode, "html": TypeCode,
	"xml": TypeCode, "yaml": TypeCode, "yml": TypeCode,

	"mp4": TypeVideo, "mov": TypeVideo, "webm": TypeVideo, "avi": TypeVideo,
	"mkv": TypeVideo, "m4v": TypeVideo,

	"mp3": TypeAudio, "wav": TypeAudio, "ogg": TypeAudio, "flac": TypeAudio,
	"m4a": TypeAudio, "aac": TypeAudio,
}

// mimeByExt covers extensions the stdlib mime database misses or where
// we want a stable answer independent of the host OS mime tables.
var mimeByExt = map[string]string{
	"jpg": "image/jpeg", "jpeg": "image/jpeg", "png": "image/png",
	"gif": "image/gif", "webp": "image/webp", "avif": "image/avif",
	"svg": "image/svg+xml", "pdf": "application/pdf",
	"md": "text/markdown", "txt": "text/plain",
	"mp4": "video/mp4", "mov": "video/quicktime", "webm": "video/webm",
	"mp3": "audio/mpeg", "wav": "audio/wav", "ogg": "audio/ogg",
	"zip": "application/zip", "gz": "application/gzip",
}

// viewable are image formats browsers render inline; resizable are the
// raster subset a thumbnail pipeline could process.
var (
	viewable  = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "avif": true, "svg": true}
	resizable = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}
)

// Asset introspects a single file inside an fs.FS. Stat and image
// dimensions are resolved lazily and memoized; assets belong to
// immutable snapshots so the cache never needs invalidation.
type Asset struct {
	fsys fs.FS
	path string // slash path within fsys

	statOnce sync.Once
	info     fs.FileInfo
	statErr  error

	dimOnce sync.Once
	width   int
	height  int
}

func New(fsys fs.FS, path string) *Asset {
	return &Asset{fsys: fsys, path: path}
}

// Path returns the slash path of the asset within its filesystem.
func (a *Asset) Path() string { return a.path }

// Filename returns the base name including extension.
func (a *Asset) Filename() string { return path.Base(a.path) }

// Name returns the base name without extension.
func (a *Asset) Name() string {
	base := a.Filename()
	if ext := path.Ext(base); ext != "" {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// Extension returns the lowercase extension without the dot.
func (a *Asset) Extension() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(a.path), "."))
}

func (a *Asset) stat() (fs.FileInfo, error) {
	a.statOnce.Do(func() {
		a.info, a.statErr = fs.Stat(a.fsys, a.path)
	})
	return a.info, a.statErr
}

// Exists reports whether the underlying file is present.
func (a *Asset) Exists() bool {
	_, err := a.stat()
	return err == nil
}

// Size returns the file size in bytes, or 0 if the file is missing.
func (a *Asset) Size() int64 {
	info, err := a.stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// NiceSize returns the size in human-readable form ("2.4MB").
func (a *Asset) NiceSize() string {
	return units.HumanSize(float64(a.Size()))
}

// Modified returns the file modification time, or zero if missing.
func (a *Asset) Modified() time.Time {
	info, err := a.stat()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// MIME returns the media type by extension; unknown extensions fall
// back to the stdlib mime table and finally octet-stream.
func (a *Asset) MIME() string {
	ext := a.Extension()
	if m, ok := mimeByExt[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension("." + ext); m != "" {
		// strip parameters like "; charset=utf-8"
		if i := strings.Index(m, ";"); i >= 0 {
			m = strings.TrimSpace(m[:i])
		}
		return m
	}
	return "application/octet-stream"
}

// Type classifies the asset by extension.
func (a *Asset) Type() Type {
	if t, ok := typeByExt[a.Extension()]; ok {
		return t
	}
	return TypeUnknown
}

func (a *Asset) IsImage() bool    { return a.Type() == TypeImage }
func (a *Asset) IsViewable() bool { return viewable[a.Extension()] }
func (a *Asset) IsResizable() bool {
	return resizable[a.Extension()]
}

// Dimensions returns image width and height. Non-images and formats
// without a registered decoder yield zero dimensions, not an error.
func (a *Asset) Dimensions() (w, h int) {
	a.dimOnce.Do(func() {
		if !a.IsResizable() {
			return
		}
		f, err := a.fsys.Open(a.path)
		if err != nil {
			return
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			return
		}
		a.width, a.height = cfg.Width, cfg.Height
	})
	return a.width, a.height
}

// Ratio returns width/height, or 0 when dimensions are unknown.
func (a *Asset) Ratio() float64 {
	w, h := a.Dimensions()
	if w == 0 || h == 0 {
		return 0
	}
	return float64(w) / float64(h)
}
