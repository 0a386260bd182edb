package scoring

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalscope/signalscope/pkg/signal"
)

// DimensionScorer is the interface that all dimension scorers implement.
// Scorers are pure: they read their input and never fail; missing data is
// reported as a zero-confidence score.
type DimensionScorer interface {
	// Dimension returns the dimension this scorer produces.
	Dimension() Dimension
	// Name returns the human-readable scorer name.
	Name() string
	// Score evaluates the dimension for one entity.
	Score(in Input) DimensionScore
}

// Input is what a scorer sees for one entity.
type Input struct {
	Signals   []signal.NormalizedSignal
	Reference ReferenceContext
	AsOf      time.Time
}

// Request is one entity's scoring request.
type Request struct {
	EntityID  string
	Signals   []signal.RawSignal
	Reference ReferenceContext
	AsOf      time.Time // zero means the engine clock's now
}

// Engine runs the normalize → score → aggregate → classify → recommend
// pipeline. An Engine is immutable after construction and safe for
// concurrent use.
type Engine struct {
	cfg        WeightConfig
	normalizer *signal.Normalizer
	scorers    []DimensionScorer
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorers replaces the default scorer registry.
func WithScorers(scorers ...DimensionScorer) Option {
	return func(e *Engine) { e.scorers = scorers }
}

// WithClock sets the clock used for ComputedAt and defaulted AsOf.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates cfg and creates a scoring engine. Configuration
// problems are reported here as *ConfigurationError, never mid-run.
func NewEngine(cfg WeightConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg: cfg.Clone(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scorers == nil {
		e.scorers = DefaultScorers(e.cfg)
	}

	dims := make([]Dimension, 0, len(e.scorers))
	seen := make(map[Dimension]bool)
	for _, s := range e.scorers {
		d := s.Dimension()
		if seen[d] {
			return nil, &ConfigurationError{Field: "scorers", Reason: fmt.Sprintf("duplicate scorer for dimension %q", d)}
		}
		seen[d] = true
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, &ConfigurationError{Field: "scorers", Reason: "no dimension scorers registered"}
	}
	if err := e.cfg.Validate(dims); err != nil {
		return nil, err
	}

	e.normalizer = e.cfg.Normalizer()
	return e, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() WeightConfig { return e.cfg.Clone() }

// Normalizer returns the engine's signal normalizer.
func (e *Engine) Normalizer() *signal.Normalizer { return e.normalizer }

// Scorers returns the registered scorers in evaluation order.
func (e *Engine) Scorers() []DimensionScorer {
	out := make([]DimensionScorer, len(e.scorers))
	copy(out, e.scorers)
	return out
}

// Score runs the full pipeline for one entity. Under the abort policy the
// first invalid signal fails the run with *signal.InvalidSignalError. A
// cancelled context discards the run and returns ctx.Err().
func (e *Engine) Score(ctx context.Context, req Request) (*CompositeScoreRecord, error) {
	if req.EntityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = e.now()
	}
	asOf = asOf.UTC()

	var (
		normalized []signal.NormalizedSignal
		skipped    []SkippedSignal
	)
	switch e.cfg.InvalidSignalPolicy {
	case PolicySkip:
		own := make([]signal.RawSignal, 0, len(req.Signals))
		for _, r := range req.Signals {
			if bad := foreignSignal(req.EntityID, r); bad != nil {
				skipped = append(skipped, SkippedSignal{ID: r.ID, Type: r.Type, Reason: bad.Reason})
				continue
			}
			own = append(own, r)
		}
		var rejected []signal.Rejection
		normalized, rejected = e.normalizer.NormalizeEach(own, asOf)
		for _, r := range rejected {
			skipped = append(skipped, SkippedSignal{ID: r.Signal.ID, Type: r.Signal.Type, Reason: r.Err.Reason})
		}
	default:
		for _, r := range req.Signals {
			if bad := e.vet(req.EntityID, r, asOf); bad != nil {
				return nil, fmt.Errorf("normalizing signals for %s: %w", req.EntityID, bad)
			}
		}
		var err error
		normalized, err = e.normalizer.Normalize(req.Signals, asOf)
		if err != nil {
			return nil, fmt.Errorf("normalizing signals for %s: %w", req.EntityID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Each scorer writes only its own slot; Wait is the aggregation barrier.
	in := Input{Signals: normalized, Reference: req.Reference, AsOf: asOf}
	scores := make([]DimensionScore, len(e.scorers))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range e.scorers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ds := s.Score(in)
			ds.Dimension = s.Dimension()
			scores[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	composite := Aggregate(scores, e.cfg.Weights)
	trend := ComputeTrend(normalized, e.cfg.TrendWindowDays)
	class := Classify(composite, trend, e.cfg.PriorityBands)
	rec := Recommend(scores, class.Priority, e.cfg.Weights, e.cfg.MaxActions)

	return &CompositeScoreRecord{
		EntityID:           req.EntityID,
		CompositeScore:     composite,
		DimensionScores:    scores,
		Priority:           class.Priority,
		InsufficientData:   class.InsufficientData,
		ConfidenceLevel:    ConfidenceLevelFor(scores, e.cfg.Weights),
		Qualification:      Qualify(scores),
		Trend:              trend,
		RecommendedActions: rec.Actions,
		TalkingPoints:      rec.TalkingPoints,
		SkippedSignals:     skipped,
		SignalCount:        len(normalized),
		AsOf:               asOf,
		ComputedAt:         e.now().UTC(),
	}, nil
}

// foreignSignal rejects a signal attributed to a different entity. Signals
// without an entity ID belong to the entity being scored.
func foreignSignal(entityID string, r signal.RawSignal) *signal.InvalidSignalError {
	if r.EntityID == "" || r.EntityID == entityID {
		return nil
	}
	return &signal.InvalidSignalError{
		SignalID: r.ID, Type: r.Type,
		Reason: fmt.Sprintf("signal belongs to entity %q, not %q", r.EntityID, entityID),
	}
}

// vet returns the first reason r cannot be scored for entityID, in the
// order the abort policy reports them.
func (e *Engine) vet(entityID string, r signal.RawSignal, asOf time.Time) *signal.InvalidSignalError {
	if bad := foreignSignal(entityID, r); bad != nil {
		return bad
	}
	_, _, bad := e.normalizer.NormalizeOne(r, asOf)
	return bad
}
