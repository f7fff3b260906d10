// Package webassets embeds the fallback pages served when no content
// snapshot is loaded or a path resolves to nothing.
package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed fallback
var embedded embed.FS

func FallbackFS() fs.FS {
	sub, err := fs.Sub(embedded, "fallback")
	if err != nil {
		panic(fmt.Errorf("webassets: fallback subfs: %w", err))
	}
	return sub
}
