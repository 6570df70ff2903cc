package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handlePreserveStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "preserve stats unavailable", http.StatusServiceUnavailable)
		return
	}

	opts := s.engine.Options()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"threshold":   opts.EffectiveThreshold(),
		"exclusive":   opts.Exclusive,
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.stats.Snapshot(),
	})
}
