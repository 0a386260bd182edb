package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/signalscope/signalscope/internal/store"
)

type rescoreRequest struct {
	EntityIDs []string   `json:"entity_ids"` // optional; default all entities
	AsOf      *time.Time `json:"as_of,omitempty"`
}

// handleRescore recalculates every requested entity as one tracked batch run.
// Per-entity failures are reported in the results, not as a request error.
func (h *Handler) handleRescore(w http.ResponseWriter, r *http.Request) {
	var req rescoreRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	res, err := h.pipeline.ScoreBatch(r.Context(), req.EntityIDs, asOf)
	if err != nil {
		if res != nil {
			writeJSON(w, scoringStatus(err), res)
			return
		}
		h.log.Error("batch rescore failed", zap.Error(err))
		writeError(w, scoringStatus(err), err.Error())
		return
	}

	for _, er := range res.Results {
		if er.Error == "" {
			h.cache.Invalidate(er.EntityID)
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runID")

	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load run: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, run)
}
