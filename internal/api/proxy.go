package api

import (
	"io"
	"net/http"

	"github.com/quan0715/notion-github-sync/internal/notion"
)

// The proxy endpoints relay Notion-hosted file content under this service's
// own origin. Issue bodies embed these URLs instead of Notion's storage URLs,
// which expire and sit behind a third-party warning page.

func (s *Server) proxyImage(w http.ResponseWriter, r *http.Request) {
	s.proxyBlock(w, r, notion.BlockImage)
}

func (s *Server) proxyFile(w http.ResponseWriter, r *http.Request) {
	s.proxyBlock(w, r, notion.BlockFile)
}

func (s *Server) proxyBlock(w http.ResponseWriter, r *http.Request, kind string) {
	blockID := r.URL.Query().Get("block_id")
	if blockID == "" {
		writeError(w, http.StatusBadRequest, "block_id is required")
		return
	}

	block, err := s.notion.GetBlock(r.Context(), blockID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "cannot retrieve block")
		return
	}
	if block.Type != kind {
		writeError(w, http.StatusBadRequest, "block is not of type "+kind)
		return
	}

	var src string
	switch kind {
	case notion.BlockImage:
		src = block.Image.URL()
	case notion.BlockFile:
		src = block.File.URL()
	}
	if src == "" {
		writeError(w, http.StatusBadGateway, "block has no file content")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot build upstream request")
		return
	}
	resp, err := s.fetch.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "cannot fetch file content")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		writeError(w, http.StatusBadGateway, "upstream returned "+resp.Status)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}
