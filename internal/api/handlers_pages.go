package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/wikipub/internal/matcher"
	"github.com/dgallion1/wikipub/internal/storage"
	"github.com/dgallion1/wikipub/internal/wiki"
	"github.com/go-chi/chi/v5"
)

// handlePageMarkers lists the inline comment markers on the current version
// of a wiki page.
func (s *Server) handlePageMarkers(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageID")

	page, err := s.orchestrator.Pages().GetPage(r.Context(), pageID)
	if errors.Is(err, wiki.ErrPageNotFound) {
		jsonError(w, "page not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to fetch page: "+err.Error(), http.StatusBadGateway)
		return
	}

	tree, err := storage.Parse(page.Body)
	if err != nil {
		jsonError(w, "page body is not valid storage format: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	markers := []map[string]any{}
	for _, m := range matcher.ExtractMarkers(tree) {
		markers = append(markers, map[string]any{
			"ref_id":      m.RefID,
			"anchor_text": m.AnchorText,
			"path":        m.SourcePath.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"page_id": page.ID,
		"title":   page.Title,
		"version": page.Version,
		"markers": markers,
	})
}
