package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signalscope/signalscope/internal/metrics"
	"github.com/signalscope/signalscope/internal/store"
	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

// Repository is the persistence the pipeline needs. *store.Store implements it.
type Repository interface {
	ListSignals(ctx context.Context, entityID string) ([]signal.RawSignal, error)
	ListSignalsForEntities(ctx context.Context, entityIDs []string) (map[string][]signal.RawSignal, error)
	ListEntityIDs(ctx context.Context) ([]string, error)
	GetReferenceContext(ctx context.Context, entityID string) (scoring.ReferenceContext, error)
	SaveRecord(ctx context.Context, rec *scoring.CompositeScoreRecord) error
	CreateRun(ctx context.Context, entityCount int) (*store.Run, error)
	UpdateRun(ctx context.Context, id, status string, succeeded, failed int, errMsg *string) error
}

// Scorer abstracts the scoring engine so the pipeline can be tested
// without a concrete implementation.
type Scorer interface {
	Score(ctx context.Context, req scoring.Request) (*scoring.CompositeScoreRecord, error)
}

// Service orchestrates the scoring pipeline: load signals and reference
// context, score, archive the record blob and persist the live record.
type Service struct {
	repo        Repository
	storage     StorageClient
	scorer      Scorer
	log         *zap.Logger
	metrics     *metrics.Recorder
	concurrency int
	onScored    func(rec *scoring.CompositeScoreRecord)
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency bounds how many entities a batch scores at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithOnScored registers fn to run after each record becomes the live
// record, whichever path scored it.
func WithOnScored(fn func(rec *scoring.CompositeScoreRecord)) Option {
	return func(s *Service) { s.onScored = fn }
}

// NewService creates a new ingestion Service. storage may be nil to skip
// archiving record blobs.
func NewService(repo Repository, storage StorageClient, scorer Scorer, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		repo:        repo,
		storage:     storage,
		scorer:      scorer,
		log:         log,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreEntity recalculates one entity's score and persists it as the live
// record. Nothing is persisted unless every step succeeds.
func (s *Service) ScoreEntity(ctx context.Context, entityID string, asOf time.Time) (*scoring.CompositeScoreRecord, error) {
	signals, err := s.repo.ListSignals(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	ref, err := s.loadReference(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return s.scoreAndPersist(ctx, entityID, signals, ref, asOf)
}

func (s *Service) loadReference(ctx context.Context, entityID string) (scoring.ReferenceContext, error) {
	ref, err := s.repo.GetReferenceContext(ctx, entityID)
	if errors.Is(err, store.ErrNotFound) {
		return scoring.ReferenceContext{}, nil
	}
	if err != nil {
		return scoring.ReferenceContext{}, fmt.Errorf("load reference context: %w", err)
	}
	return ref, nil
}

func (s *Service) scoreAndPersist(ctx context.Context, entityID string, signals []signal.RawSignal, ref scoring.ReferenceContext, asOf time.Time) (rec *scoring.CompositeScoreRecord, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveScoring(outcome(ctx, err), time.Since(start))
	}()

	rec, err = s.scorer.Score(ctx, scoring.Request{
		EntityID:  entityID,
		Signals:   signals,
		Reference: ref,
		AsOf:      asOf,
	})
	if err != nil {
		return nil, fmt.Errorf("score %s: %w", entityID, err)
	}
	rec.ID = uuid.NewString()

	if s.storage != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		archiveRef, err := s.storage.PutRecord(ctx, entityID, rec.ID, data)
		if err != nil {
			return nil, fmt.Errorf("archive record: %w", err)
		}
		rec.ArchiveRef = archiveRef
	}

	if err := ctx.Err(); err != nil {
		s.discardArchive(ctx, rec)
		return nil, err
	}
	if err := s.repo.SaveRecord(ctx, rec); err != nil {
		s.discardArchive(ctx, rec)
		return nil, fmt.Errorf("save record: %w", err)
	}

	if s.onScored != nil {
		s.onScored(rec)
	}
	s.metrics.RecordPriority(string(rec.Priority))
	s.metrics.RecordSkippedSignals(len(rec.SkippedSignals))
	fields := []zap.Field{
		zap.String("entity_id", entityID),
		zap.String("record_id", rec.ID),
		zap.String("priority", string(rec.Priority)),
		zap.Int("signals", rec.SignalCount),
	}
	if rec.CompositeScore != nil {
		fields = append(fields, zap.Float64("composite", *rec.CompositeScore))
	}
	s.log.Info("entity scored", fields...)
	return rec, nil
}

// discardArchive removes a blob whose record was never persisted.
func (s *Service) discardArchive(ctx context.Context, rec *scoring.CompositeScoreRecord) {
	if s.storage == nil || rec.ArchiveRef == "" {
		return
	}
	if err := s.storage.DeleteRecord(context.WithoutCancel(ctx), rec.EntityID, rec.ID); err != nil {
		s.log.Warn("failed to discard archived record", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

func outcome(ctx context.Context, err error) string {
	var invalid *signal.InvalidSignalError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &invalid):
		return metrics.OutcomeInvalid
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeError
	}
}

// EntityResult is one entity's outcome within a batch.
type EntityResult struct {
	EntityID  string           `json:"entity_id"`
	RecordID  string           `json:"record_id,omitempty"`
	Priority  scoring.Priority `json:"priority,omitempty"`
	Composite *float64         `json:"composite_score,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// BatchResult summarizes a batch rescoring run.
type BatchResult struct {
	RunID     string         `json:"run_id"`
	Status    string         `json:"status"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []EntityResult `json:"results"`
}

// ScoreBatch rescores entityIDs (every known entity when empty) with bounded
// concurrency. A failing entity does not affect the others. If ctx is
// cancelled, entities not yet persisted are discarded and the run is FAILED.
func (s *Service) ScoreBatch(ctx context.Context, entityIDs []string, asOf time.Time) (*BatchResult, error) {
	if len(entityIDs) == 0 {
		ids, err := s.repo.ListEntityIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		entityIDs = ids
	}
	entityIDs = dedupe(entityIDs)

	run, err := s.repo.CreateRun(ctx, len(entityIDs))
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := s.repo.UpdateRun(ctx, run.ID, store.StatusRunning, 0, 0, nil); err != nil {
		return nil, fmt.Errorf("update run to running: %w", err)
	}
	log := s.log.With(zap.String("run_id", run.ID), zap.Int("entities", len(entityIDs)))
	log.Info("batch scoring started")

	signalsByEntity, err := s.repo.ListSignalsForEntities(ctx, entityIDs)
	if err != nil {
		s.finishRun(ctx, run.ID, store.StatusFailed, 0, len(entityIDs), err.Error())
		return nil, fmt.Errorf("load signals: %w", err)
	}

	results := make([]EntityResult, len(entityIDs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range entityIDs {
		g.Go(func() error {
			results[i] = s.scoreOne(ctx, id, signalsByEntity[id], asOf)
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{RunID: run.ID, Results: results}
	for _, r := range results {
		if r.Error == "" {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	var errMsg string
	switch {
	case ctx.Err() != nil:
		res.Status = store.StatusFailed
		errMsg = "cancelled: " + ctx.Err().Error()
	case res.Failed > 0 && res.Succeeded == 0:
		res.Status = store.StatusFailed
		errMsg = fmt.Sprintf("all %d entities failed", res.Failed)
	default:
		res.Status = store.StatusCompleted
	}
	s.finishRun(ctx, run.ID, res.Status, res.Succeeded, res.Failed, errMsg)

	log.Info("batch scoring finished",
		zap.String("status", res.Status),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// dedupe drops repeated IDs, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) scoreOne(ctx context.Context, entityID string, signals []signal.RawSignal, asOf time.Time) EntityResult {
	result := EntityResult{EntityID: entityID}
	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	ref, err := s.loadReference(ctx, entityID)
	if err == nil {
		var rec *scoring.CompositeScoreRecord
		rec, err = s.scoreAndPersist(ctx, entityID, signals, ref, asOf)
		if err == nil {
			result.RecordID = rec.ID
			result.Priority = rec.Priority
			result.Composite = rec.CompositeScore
			return result
		}
	}
	s.log.Warn("entity scoring failed", zap.String("entity_id", entityID), zap.Error(err))
	result.Error = err.Error()
	return result
}

func (s *Service) finishRun(ctx context.Context, runID, status string, succeeded, failed int, errMsg string) {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	// The run row must reach a final state even when the batch was cancelled.
	if err := s.repo.UpdateRun(context.WithoutCancel(ctx), runID, status, succeeded, failed, msg); err != nil {
		s.log.Error("failed to update run status", zap.String("run_id", runID), zap.Error(err))
	}
	s.metrics.RecordBatch(status)
}

// RescoreEvery runs ScoreBatch over all entities every interval until ctx
// is done.
func (s *Service) RescoreEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ScoreBatch(ctx, nil, time.Time{}); err != nil && ctx.Err() == nil {
				s.log.Error("periodic rescore failed", zap.Error(err))
			}
		}
	}
}
