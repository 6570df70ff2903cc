package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/wikipub/internal/matcher"
	"github.com/dgallion1/wikipub/internal/preserve"
	"github.com/dgallion1/wikipub/internal/transfer"
)

type preserveRequest struct {
	Old       string   `json:"old"`
	New       string   `json:"new"`
	Threshold *float64 `json:"threshold,omitempty"`
	Exclusive *bool    `json:"exclusive,omitempty"`
}

type matchJSON struct {
	RefID      string           `json:"ref_id"`
	Strategy   matcher.Strategy `json:"strategy"`
	Score      float64          `json:"score"`
	SourcePath string           `json:"source_path"`
	TargetPath string           `json:"target_path,omitempty"`
	Reason     matcher.Reason   `json:"reason,omitempty"`
}

func (s *Server) handlePreserve(w http.ResponseWriter, r *http.Request) {
	// Two bodies plus JSON overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.cfg.MaxUploadBytes+1024*1024)

	var req preserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	engine := s.engine
	if req.Threshold != nil || req.Exclusive != nil {
		opts := s.engine.Options()
		if req.Threshold != nil {
			if *req.Threshold > 1 {
				jsonError(w, "threshold must be at most 1", http.StatusBadRequest)
				return
			}
			opts.Threshold = *req.Threshold
		}
		if req.Exclusive != nil {
			opts.Exclusive = *req.Exclusive
		}
		engine = preserve.NewEngine(opts, s.log)
	}

	res, err := engine.Preserve(req.Old, req.New)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if s.stats != nil {
		s.stats.Record(res.Duration, res.Report.PreservedCount(), res.Report.DroppedCount())
	}

	matches := make([]matchJSON, 0, len(res.Report.Records))
	for _, rec := range res.Report.Records {
		m := matchJSON{
			RefID:      rec.RefID,
			Strategy:   rec.Strategy,
			Score:      rec.Score,
			SourcePath: rec.SourcePath.String(),
			Reason:     rec.Reason,
		}
		if rec.Matched() {
			m.TargetPath = rec.TargetPath.String()
		}
		matches = append(matches, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"body":    res.Body,
		"report":  res.Report,
		"summary": res.Report.Summary(),
		"matches": matches,
	})
}

// writeEngineError maps a preserve failure to a response: malformed input is
// 422, a ref id collision is 409.
func writeEngineError(w http.ResponseWriter, err error) {
	var ee *preserve.EngineError
	if !errors.As(err, &ee) {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"error": err.Error(),
		"stage": ee.Stage,
		"input": ee.Which,
	}
	code := http.StatusUnprocessableEntity
	var ce *transfer.CollisionError
	if errors.As(err, &ce) {
		code = http.StatusConflict
		resp["ref_id"] = ce.RefID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
