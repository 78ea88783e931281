package server

import (
	"embed"
	"io/fs"
)

//go:embed assets/index.html
var indexPage []byte

//go:embed assets/static
var staticAssets embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(staticAssets, "assets/static")
	if err != nil {
		panic(err)
	}
	return sub
}
