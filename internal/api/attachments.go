package api

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bharathvani/internal/media"
)

// MediaHandler serves attachments stored by the file-system media backend.
type MediaHandler struct {
	fs *media.FS
}

// NewMediaHandler creates a handler over fs.
func NewMediaHandler(fs *media.FS) *MediaHandler {
	return &MediaHandler{fs: fs}
}

// ServeFile handles GET /media/{name}.
func (h *MediaHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, err := h.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "invalid name", http.StatusBadRequest)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	if ct, ok := inlineType(info.Name()); ok {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// inlineType returns the content type of name when browsers may render it
// inline. Only raster images, audio and video qualify; SVG carries script.
func inlineType(name string) (string, bool) {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", false
	}
	switch {
	case mt == "image/svg+xml":
		return "", false
	case strings.HasPrefix(mt, "image/"), strings.HasPrefix(mt, "audio/"), strings.HasPrefix(mt, "video/"):
		return mt, true
	}
	return "", false
}
