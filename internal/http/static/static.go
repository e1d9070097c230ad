// Package static sirve los assets embebidos del shell.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed assets
var assetsFS embed.FS

// Handler sirve /static/* desde el binario.
func Handler() http.Handler {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic(err) // embed roto: error de build, no de runtime
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
