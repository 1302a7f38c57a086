// Package web embeds the HTML templates served by the page handlers.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html
var files embed.FS

// Templates returns the embedded template directory with base.html and the
// page templates at its root. HTTP_TEMPLATE_DIR replaces it with a directory
// on disk laid out the same way.
func Templates() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
