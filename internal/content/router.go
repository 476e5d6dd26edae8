package content

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wsusd/wsusd/internal/catalog"
)

var zeroTime time.Time

// Router implements the Content Router (spec.md §4.7): maps
// (directory, name) URL pairs to an UpdateFile and streams bytes from the
// configured Store.
type Router struct {
	store Store

	mu    sync.RWMutex
	files map[string]catalog.UpdateFile // key: lower(dir) + "/" + lower(name)
}

func NewRouter(store Store) *Router {
	return &Router{store: store, files: make(map[string]catalog.UpdateFile)}
}

// Build rebuilds the (dir, name) → UpdateFile map from every file across
// the given updates. Dedup keeps the first occurrence by first-digest
// base64, matching spec.md §4.7.
func (r *Router) Build(updates []catalog.Update) {
	files := make(map[string]catalog.UpdateFile)
	seen := make(map[string]struct{})

	for _, u := range updates {
		for _, f := range u.Files() {
			b64 := firstDigestBase64(f)
			if b64 == "" {
				continue
			}
			if _, dup := seen[b64]; dup {
				continue
			}
			seen[b64] = struct{}{}

			dir, name, ok := DigestKey(f)
			if !ok {
				continue
			}
			files[dir+"/"+name] = f
		}
	}

	r.mu.Lock()
	r.files = files
	r.mu.Unlock()

	log.Info("content router index built", "files", len(files))
}

func (r *Router) lookup(dir, name string) (catalog.UpdateFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[strings.ToLower(dir)+"/"+strings.ToLower(name)]
	return f, ok
}

// ServeHTTP handles GET and HEAD for /Content/{directory}/{name}.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	dir, name, ok := parseContentPath(req.URL.Path)
	if !ok {
		http.NotFound(w, req)
		return
	}

	file, ok := r.lookup(dir, name)
	if !ok {
		http.NotFound(w, req)
		return
	}

	ctx := req.Context()
	if !r.store.Contains(ctx, file) {
		http.NotFound(w, req)
		return
	}

	stream, size, err := r.store.Get(ctx, file)
	if err != nil {
		log.Error("content store read failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Type", "application/octet-stream")

	if req.Method == http.MethodHead {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		return
	}

	http.ServeContent(w, req, name, zeroTime, stream)
}

// parseContentPath extracts directory and name from
// "/Content/{directory}/{name}".
func parseContentPath(p string) (dir, name string, ok bool) {
	const prefix = "/Content/"
	if !strings.HasPrefix(p, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
