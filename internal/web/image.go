package web

import (
	"net/http"
	"os"
	"strconv"

	"github.com/visionmesh/trackd/internal/imgstore"
)

// handleGetSingleImg serves one stored image addressed by the same
// (cat, type, id, subid) tuple the published URLs carry. Anything that
// does not resolve to an existing file is a plain 404.
func (s *Server) handleGetSingleImg(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cat, err := strconv.Atoi(q.Get("cat"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	path, err := imgstore.ResolvePath(s.imgRoot, cat, q.Get("type"), q.Get("id"), q.Get("subid"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}
