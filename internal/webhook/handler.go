package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/signalscope/signalscope/internal/metrics"
	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// Store is the persistence webhook events write to.
type Store interface {
	InsertSignals(ctx context.Context, signals []signal.RawSignal) (int, error)
	PutReferenceContext(ctx context.Context, entityID string, ref scoring.ReferenceContext) error
}

// Scorer recalculates an entity's live record.
type Scorer interface {
	ScoreEntity(ctx context.Context, entityID string, asOf time.Time) (*scoring.CompositeScoreRecord, error)
}

// Handler processes incoming signal webhook events.
type Handler struct {
	webhookSecret []byte
	store         Store
	scorer        Scorer
	metrics       *metrics.Recorder
	log           *zap.Logger

	// OnChange, if set, is called with every entity whose data or live
	// record changed.
	OnChange func(entityIDs ...string)
}

// NewHandler creates a new webhook Handler.
func NewHandler(webhookSecret []byte, st Store, scorer Scorer, rec *metrics.Recorder, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		webhookSecret: webhookSecret,
		store:         st,
		scorer:        scorer,
		metrics:       rec,
		log:           log,
	}
}

// errInvalidPayload marks events whose content failed validation.
var errInvalidPayload = errors.New("invalid payload")

// ServeHTTP handles incoming webhook requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20)) // 10 MB limit
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Signal-Signature-256")
	if err := VerifySignature(body, signature, h.webhookSecret); err != nil {
		h.log.Warn("webhook signature verification failed", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-Signal-Event")
	if eventType == "" {
		http.Error(w, "missing X-Signal-Event header", http.StatusBadRequest)
		return
	}

	event, err := ParseEvent(eventType, body)
	if err != nil {
		h.log.Warn("webhook parse error", zap.String("event", eventType), zap.Error(err))
		http.Error(w, "unsupported event", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	switch e := event.(type) {
	case *SignalsBatchEvent:
		err = h.handleSignalsBatch(ctx, e)
	case *ContextUpdatedEvent:
		err = h.handleContextUpdated(ctx, e)
	case *EntityRescoreEvent:
		err = h.handleEntityRescore(ctx, e)
	}
	if err != nil {
		h.log.Error("handle webhook event", zap.String("event", eventType), zap.Error(err))
		if errors.Is(err, errInvalidPayload) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (h *Handler) handleSignalsBatch(ctx context.Context, e *SignalsBatchEvent) error {
	for i, s := range e.Signals {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: signals[%d]: %v", errInvalidPayload, i, err)
		}
	}

	inserted, err := h.store.InsertSignals(ctx, e.Signals)
	if err != nil {
		return fmt.Errorf("insert signals: %w", err)
	}
	h.metrics.RecordSignalsIngested(inserted)

	var entities []string
	seen := make(map[string]bool)
	for _, s := range e.Signals {
		if !seen[s.EntityID] {
			seen[s.EntityID] = true
			entities = append(entities, s.EntityID)
		}
	}
	h.changed(entities...)
	h.log.Info("webhook signals stored",
		zap.String("source", e.Source),
		zap.Int("received", len(e.Signals)),
		zap.Int("inserted", inserted))

	if !e.Rescore {
		return nil
	}
	// Entities are reported again once rescored.
	defer h.changed(entities...)
	for _, id := range entities {
		if _, err := h.scorer.ScoreEntity(ctx, id, time.Time{}); err != nil {
			return fmt.Errorf("rescore %s: %w", id, err)
		}
	}
	return nil
}

func (h *Handler) handleContextUpdated(ctx context.Context, e *ContextUpdatedEvent) error {
	if err := h.store.PutReferenceContext(ctx, e.EntityID, e.Context); err != nil {
		return fmt.Errorf("put reference context for %s: %w", e.EntityID, err)
	}
	h.changed(e.EntityID)
	h.log.Info("webhook reference context updated", zap.String("entity_id", e.EntityID))
	return nil
}

func (h *Handler) handleEntityRescore(ctx context.Context, e *EntityRescoreEvent) error {
	var asOf time.Time
	if e.AsOf != nil {
		asOf = *e.AsOf
	}
	rec, err := h.scorer.ScoreEntity(ctx, e.EntityID, asOf)
	if err != nil {
		var invalid *signal.InvalidSignalError
		if errors.As(err, &invalid) {
			return fmt.Errorf("%w: %v", errInvalidPayload, err)
		}
		return fmt.Errorf("rescore %s: %w", e.EntityID, err)
	}
	h.changed(e.EntityID)
	h.log.Info("webhook rescore completed",
		zap.String("entity_id", e.EntityID),
		zap.String("priority", string(rec.Priority)))
	return nil
}

func (h *Handler) changed(entityIDs ...string) {
	if h.OnChange != nil && len(entityIDs) > 0 {
		h.OnChange(entityIDs...)
	}
}
