// Package static embeds the kiosk page.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed all:dist/*
var distFS embed.FS

// FileSystem returns the embedded dist directory.
func FileSystem() http.FileSystem {
	fsys, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}

// Index returns the page shell.
func Index() ([]byte, error) {
	return fs.ReadFile(distFS, "dist/index.html")
}
