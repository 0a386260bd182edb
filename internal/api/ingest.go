package api

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// maxBodyBytes bounds request bodies after decompression.
const maxBodyBytes = 10 << 20

// ingestRequest is the JSON body for POST /api/v1/signals.
type ingestRequest struct {
	Signals []signal.RawSignal `json:"signals"`
}

type ingestResponse struct {
	Received int      `json:"received"`
	Inserted int      `json:"inserted"`
	Entities []string `json:"entities"`
}

// requestBody returns the request body, transparently decompressing gzip.
func requestBody(r *http.Request) (io.ReadCloser, error) {
	if r.Header.Get("Content-Encoding") != "gzip" {
		return r.Body, nil
	}
	gz, err := gzip.NewReader(r.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid gzip body: %w", err)
	}
	return gz, nil
}

func decodeJSON(r *http.Request, v any) error {
	body, err := requestBody(r)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// decodeOptionalJSON decodes a body the request may omit. Chunked bodies
// carry no Content-Length, so presence is judged by reading.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := decodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ValidateSignals checks every signal and reports the first invalid one by
// index. Signals are immutable once stored, so a batch is all-or-nothing.
func ValidateSignals(signals []signal.RawSignal) error {
	for i, s := range signals {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("signals[%d]: %w", i, err)
		}
	}
	return nil
}

// entityIDs returns the distinct entity IDs in first-seen order.
func entityIDs(signals []signal.RawSignal) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range signals {
		if !seen[s.EntityID] {
			seen[s.EntityID] = true
			ids = append(ids, s.EntityID)
		}
	}
	return ids
}

func (h *Handler) handleIngestSignals(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Signals) == 0 {
		writeError(w, http.StatusBadRequest, "signals is required")
		return
	}
	if err := ValidateSignals(req.Signals); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	inserted, err := h.store.InsertSignals(r.Context(), req.Signals)
	if err != nil {
		h.log.Error("insert signals failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store signals: "+err.Error())
		return
	}

	ids := entityIDs(req.Signals)
	h.cache.Invalidate(ids...)
	h.metrics.RecordSignalsIngested(inserted)
	h.log.Info("signals ingested",
		zap.Int("received", len(req.Signals)),
		zap.Int("inserted", inserted),
		zap.Int("entities", len(ids)))

	writeJSON(w, http.StatusAccepted, ingestResponse{
		Received: len(req.Signals),
		Inserted: inserted,
		Entities: ids,
	})
}

func (h *Handler) handlePutContext(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entityID")

	var ref scoring.ReferenceContext
	if err := decodeJSON(r, &ref); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.PutReferenceContext(r.Context(), entityID, ref); err != nil {
		h.log.Error("put reference context failed", zap.String("entity_id", entityID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store reference context: "+err.Error())
		return
	}
	h.cache.Invalidate(entityID)

	writeJSON(w, http.StatusOK, map[string]string{"entity_id": entityID, "status": "updated"})
}
