package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// spaHandler serves files from dir with SPA fallback.
// Any path that doesn't match a static file serves index.html.
func spaHandler(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name != "/" {
			info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
			if err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
