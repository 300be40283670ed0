// Package static serves the board's front-end assets. It sanitizes request
// paths so serving can never escape the asset directory, and applies cache
// headers suited to fingerprinted asset builds.
package static

import (
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Policy selects the Cache-Control strategy.
type Policy int

const (
	// CacheNone disables caching. Useful during front-end development.
	CacheNone Policy = iota

	// CacheProduction caches fingerprinted assets as immutable for a year
	// and everything else for an hour with revalidation.
	CacheProduction
)

// Handler serves files from an asset filesystem. The root path maps to
// index.html.
type Handler struct {
	fsys   fs.FS
	policy Policy
}

// NewHandler creates a handler over the given asset filesystem.
func NewHandler(fsys fs.FS, policy Policy) *Handler {
	return &Handler{fsys: fsys, policy: policy}
}

// Dir creates a handler serving from a directory on disk.
func Dir(dir string, policy Policy) *Handler {
	return NewHandler(os.DirFS(dir), policy)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	rel, ok := relPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if rel == "" {
		rel = "index.html"
	}

	info, err := fs.Stat(h.fsys, rel)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	h.applyCacheHeaders(w, rel)

	// http.ServeFileFS needs Go >= 1.22; this is its equivalent on 1.21.
	f, err := h.fsys.Open(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, rel, info.ModTime(), rs)
}

// relPath returns a sanitized slash-relative path for the request, or false
// for anything that could resolve outside the asset directory. An empty path
// with ok=true means the root was requested.
func relPath(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" {
		return "", true
	}

	// NUL can appear via %00.
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// A leading "/" after trimming indicates an absolute-path attempt
	// ("//etc/passwd" => "/etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments before cleaning, so traversal attempts are refused
	// rather than silently rewritten.
	for _, seg := range strings.Split(rel, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || clean == "" || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	// Reject OS-absolute and volume paths after slash conversion.
	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}

func (h *Handler) applyCacheHeaders(w http.ResponseWriter, filePath string) {
	switch h.policy {
	case CacheNone:
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")

	case CacheProduction:
		if isFingerprinted(filePath) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
}

// isFingerprinted reports whether a file name carries a content hash,
// e.g. "board.a1b2c3d4.js".
func isFingerprinted(filePath string) bool {
	parts := strings.Split(path.Base(filePath), ".")
	if len(parts) < 3 {
		return false
	}

	hash := parts[len(parts)-2]
	if len(hash) < 8 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
