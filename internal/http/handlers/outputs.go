package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// ServeOutput serves a previously generated output image by its derived
// filename. The FileStore rejects anything that is not a flat
// `<taskId>.<ext>` name, so traversal outside the output directory is
// impossible.
func (a *App) ServeOutput(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	path, err := a.Files.Resolve(name)
	if err != nil {
		a.error(w, http.StatusBadRequest, "INVALID_OUTPUT_NAME", "output name must be <taskId>.<png|jpg|webp>")
		return
	}
	if _, err := os.Stat(path); err != nil {
		a.error(w, http.StatusNotFound, "OUTPUT_NOT_FOUND", "no output file with this name exists")
		return
	}
	http.ServeFile(w, r, path)
}
