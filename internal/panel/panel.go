// Package panel derives the presentation metadata the admin panel
// needs for content objects: icons, drag-and-drop text and the compact
// info payloads the panel API returns.
package panel

import (
	"fmt"
	"strings"

	"github.com/keithlinneman/quarry/internal/asset"
	"github.com/keithlinneman/quarry/internal/model"
)

// Icon describes the panel icon for a file.
type Icon struct {
	Type  string `json:"type"`
	Color string `json:"color"`
}

var typeIcons = map[asset.Type]Icon{
	asset.TypeImage:    {Type: "file-image", Color: "orange-400"},
	asset.TypeDocument: {Type: "file-document", Color: "red-400"},
	asset.TypeArchive:  {Type: "file-zip", Color: "gray-500"},
	asset.TypeCode:     {Type: "file-code", Color: "blue-400"},
	asset.TypeVideo:    {Type: "file-video", Color: "yellow-500"},
	asset.TypeAudio:    {Type: "file-audio", Color: "aqua-400"},
}

// extension overrides win over the type icon
var extIcons = map[string]Icon{
	"csv":  {Type: "table", Color: "green-400"},
	"xls":  {Type: "table", Color: "green-400"},
	"xlsx": {Type: "table", Color: "green-400"},
	"md":   {Type: "markdown", Color: "blue-400"},
	"txt":  {Type: "text", Color: "gray-500"},
}

var defaultIcon = Icon{Type: "file", Color: "gray-500"}

// IconFor picks the panel icon for a file by extension, then asset
// type.
func IconFor(f *model.File) Icon {
	if icon, ok := extIcons[f.Extension()]; ok {
		return icon
	}
	if icon, ok := typeIcons[f.Asset().Type()]; ok {
		return icon
	}
	return defaultIcon
}

// DragText renders the snippet inserted when a file is dragged into a
// text field. Files with a stable uuid are referenced by it, so renames
// do not break content; others fall back to the filename.
func DragText(f *model.File, markdown bool) string {
	ref := f.Filename()
	if uuid := f.UUID(); uuid != "" {
		ref = "file://" + uuid
	}
	if markdown {
		if f.Asset().IsImage() {
			return fmt.Sprintf("![%s](%s)", f.Field("alt").String(), f.MediaURL())
		}
		return fmt.Sprintf("[%s](%s)", f.Filename(), f.MediaURL())
	}
	if f.Asset().IsImage() {
		return fmt.Sprintf("(image: %s)", ref)
	}
	return fmt.Sprintf("(file: %s)", ref)
}

// PathToAPI converts a page id to its panel API form, where "+" stands
// in for "/" so ids fit in a single path segment.
func PathToAPI(id string) string { return strings.ReplaceAll(id, "/", "+") }

// PathFromAPI reverses PathToAPI.
func PathFromAPI(s string) string { return strings.ReplaceAll(s, "+", "/") }

// FileInfo is the panel's file payload.
type FileInfo struct {
	Id        string `json:"id"`
	Filename  string `json:"filename"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Template  string `json:"template"`
	MIME      string `json:"mime"`
	Type      string `json:"type"`
	Size      int64  `json:"size"`
	NiceSize  string `json:"niceSize"`
	URL       string `json:"url"`
	Icon      Icon   `json:"icon"`
	DragText  string `json:"dragText"`
	// DragTextMarkdown is the same snippet in markdown form; the
	// client picks one based on its markdown setting.
	DragTextMarkdown string `json:"dragTextMarkdown"`
	ParentId         string `json:"parent,omitempty"`
	Dimensions       *Dims  `json:"dimensions,omitempty"`

	Content map[string]string `json:"content"`
}

type Dims struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Ratio  float64 `json:"ratio"`
}

// NewFileInfo builds the panel payload for a file.
func NewFileInfo(f *model.File) FileInfo {
	a := f.Asset()
	info := FileInfo{
		Id:               f.Id(),
		Filename:         f.Filename(),
		Name:             f.Name(),
		Extension:        f.Extension(),
		Template:         f.Template(),
		MIME:             a.MIME(),
		Type:             string(a.Type()),
		Size:             a.Size(),
		NiceSize:         a.NiceSize(),
		URL:              f.MediaURL(),
		Icon:             IconFor(f),
		DragText:         DragText(f, false),
		DragTextMarkdown: DragText(f, true),
		ParentId:         f.ParentId(),
		Content:          f.Content().Map(),
	}
	if a.IsResizable() {
		if w, h := a.Dimensions(); w > 0 && h > 0 {
			info.Dimensions = &Dims{Width: w, Height: h, Ratio: a.Ratio()}
		}
	}
	return info
}

// PageInfo is the panel's page payload.
type PageInfo struct {
	Id          string `json:"id"`
	APIPath     string `json:"apiPath"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Status      string `json:"status"`
	Num         *int   `json:"num"`
	Template    string `json:"template"`
	URL         string `json:"url"`
	HasChildren bool   `json:"hasChildren"`
	HasDrafts   bool   `json:"hasDrafts"`
	HasFiles    bool   `json:"hasFiles"`
	ParentId    string `json:"parent,omitempty"`

	Content map[string]string `json:"content"`
}

// NewPageInfo builds the panel payload for a page.
func NewPageInfo(p *model.Page) PageInfo {
	info := PageInfo{
		Id:          p.Id(),
		APIPath:     PathToAPI(p.Id()),
		Title:       p.Title(),
		Slug:        p.Slug(),
		Status:      string(p.Status()),
		Num:         p.Num(),
		Template:    p.Template(),
		URL:         p.URL(),
		HasChildren: p.HasChildren(),
		HasDrafts:   len(p.Drafts()) > 0,
		HasFiles:    len(p.Files()) > 0,
		Content:     p.Content().Map(),
	}
	if parent := p.Parent(); parent != nil {
		info.ParentId = parent.Id()
	}
	return info
}

// UserInfo is the panel's user payload. The password hash never leaves
// the server.
type UserInfo struct {
	Id    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	UUID  string `json:"uuid,omitempty"`
}

// NewUserInfo builds the panel payload for a user.
func NewUserInfo(u *model.User) UserInfo {
	return UserInfo{
		Id:    u.Id(),
		Email: u.Email(),
		Name:  u.Name(),
		Role:  u.Role(),
		UUID:  u.UUID(),
	}
}
