package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/signalscope/signalscope/internal/store"
	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

const maxHistoryLimit = 200

type scoreRequest struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// scoringStatus maps a pipeline error to an HTTP status.
func scoringStatus(err error) int {
	var invalid *signal.InvalidSignalError
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleScoreEntity(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entityID")

	var req scoreRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	rec, err := h.pipeline.ScoreEntity(r.Context(), entityID, asOf)
	if err != nil {
		status := scoringStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error("score entity failed", zap.String("entity_id", entityID), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	h.cache.Put(rec)

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGetScore(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entityID")

	if rec := h.cache.Get(entityID); rec != nil {
		h.metrics.RecordCacheLookup(true)
		writeJSON(w, http.StatusOK, rec)
		return
	}
	h.metrics.RecordCacheLookup(false)

	rec, err := h.store.GetLiveRecord(r.Context(), entityID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no score for entity "+entityID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load score: "+err.Error())
		return
	}
	h.cache.Put(rec)

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entityID")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.store.ListRecordHistory(r.Context(), entityID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history: "+err.Error())
		return
	}
	if records == nil {
		records = []scoring.CompositeScoreRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}
