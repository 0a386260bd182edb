// Package api implements the hosted SignalScope REST API.
// It provides signal intake, reference context updates, on-demand and batch
// scoring, and read endpoints backed by Postgres and blob storage.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/signalscope/signalscope/internal/ingestion"
	"github.com/signalscope/signalscope/internal/metrics"
	"github.com/signalscope/signalscope/internal/store"
	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// Store is the persistence the API reads and writes directly.
// *store.Store implements it.
type Store interface {
	InsertSignals(ctx context.Context, signals []signal.RawSignal) (int, error)
	PutReferenceContext(ctx context.Context, entityID string, ref scoring.ReferenceContext) error
	GetLiveRecord(ctx context.Context, entityID string) (*scoring.CompositeScoreRecord, error)
	ListRecordHistory(ctx context.Context, entityID string, limit int) ([]scoring.CompositeScoreRecord, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
}

// Pipeline runs scoring. *ingestion.Service implements it.
type Pipeline interface {
	ScoreEntity(ctx context.Context, entityID string, asOf time.Time) (*scoring.CompositeScoreRecord, error)
	ScoreBatch(ctx context.Context, entityIDs []string, asOf time.Time) (*ingestion.BatchResult, error)
}

// Handler is the top-level API handler for the hosted SignalScope service.
type Handler struct {
	store    Store
	pipeline Pipeline
	cache    *RecordCache
	metrics  *metrics.Recorder
	log      *zap.Logger
}

// NewHandler creates a new API handler. A nil cache gets a default-sized one.
func NewHandler(st Store, pipeline Pipeline, cache *RecordCache, rec *metrics.Recorder, log *zap.Logger) *Handler {
	if cache == nil {
		cache = NewRecordCache(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:    st,
		pipeline: pipeline,
		cache:    cache,
		metrics:  rec,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux. Write
// endpoints are wrapped with auth.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	// Write endpoints (auth-protected)
	mux.Handle("POST /api/v1/signals", auth(http.HandlerFunc(h.handleIngestSignals)))
	mux.Handle("PUT /api/v1/entities/{entityID}/context", auth(http.HandlerFunc(h.handlePutContext)))
	mux.Handle("POST /api/v1/entities/{entityID}/score", auth(http.HandlerFunc(h.handleScoreEntity)))
	mux.Handle("POST /api/v1/rescore", auth(http.HandlerFunc(h.handleRescore)))

	// Read endpoints
	mux.HandleFunc("GET /api/v1/entities/{entityID}/score", h.handleGetScore)
	mux.HandleFunc("GET /api/v1/entities/{entityID}/history", h.handleHistory)
	mux.HandleFunc("GET /api/v1/runs/{runID}", h.handleGetRun)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
