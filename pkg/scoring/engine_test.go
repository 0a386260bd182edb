package scoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalscope/signalscope/pkg/scoring"
	"github.com/signalscope/signalscope/pkg/signal"
)

var asOf = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mag(f float64) *float64 { return &f }

func daysAgo(d float64) time.Time {
	return asOf.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

func fixedClock() time.Time { return asOf.Add(time.Minute) }

func newEngine(t *testing.T, cfg scoring.WeightConfig) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(cfg, scoring.WithClock(fixedClock))
	require.NoError(t, err)
	return e
}

func raw(id string, typ signal.Type, age float64, m *float64) signal.RawSignal {
	return signal.RawSignal{ID: id, EntityID: "acme", Type: typ, OccurredAt: daysAgo(age), Magnitude: m}
}

func TestEngine_FundingScenario(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())

	rec, err := e.Score(context.Background(), scoring.Request{
		EntityID: "acme",
		Signals:  []signal.RawSignal{raw("f1", signal.TypeFundingRound, 5, mag(60_000_000))},
		AsOf:     asOf,
	})
	require.NoError(t, err)

	intent, ok := rec.Dimension(scoring.DimensionIntent)
	require.True(t, ok)
	// weight = 1.0 * exp(-ln2 * 5/180) ≈ 0.98093
	assert.InDelta(t, 85*0.98093, intent.Value, 0.01)
	assert.InDelta(t, 1.0/3, intent.Confidence, 1e-9)
	assert.Equal(t, []string{"f1"}, intent.ContributingSignalIDs)

	for _, ds := range rec.DimensionScores {
		if ds.Dimension != scoring.DimensionIntent {
			assert.Zero(t, ds.Confidence, "dimension %s", ds.Dimension)
		}
	}

	require.NotNil(t, rec.CompositeScore)
	assert.InDelta(t, intent.Value, *rec.CompositeScore, 1e-9)
	assert.Equal(t, scoring.PriorityImmediate, rec.Priority)
	assert.False(t, rec.InsufficientData)
	assert.Equal(t, scoring.ConfidenceLow, rec.ConfidenceLevel)
	assert.Equal(t, scoring.QualificationUnknown, rec.Qualification)
	assert.Equal(t, 1, rec.SignalCount)
	assert.Equal(t, asOf, rec.AsOf)
	assert.Equal(t, fixedClock(), rec.ComputedAt)

	require.Len(t, rec.RecommendedActions, 3)
	assert.Equal(t, scoring.EngageNowAction, rec.RecommendedActions[0])
	require.Len(t, rec.TalkingPoints, 1)
}

func TestEngine_ZeroSignals(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())

	rec, err := e.Score(context.Background(), scoring.Request{EntityID: "acme", AsOf: asOf})
	require.NoError(t, err)

	assert.Nil(t, rec.CompositeScore)
	assert.Equal(t, scoring.PriorityLow, rec.Priority)
	assert.True(t, rec.InsufficientData)
	assert.Zero(t, rec.SignalCount)
	assert.Zero(t, rec.Trend.Velocity)
	require.Len(t, rec.DimensionScores, len(scoring.AllDimensions()))
	for _, ds := range rec.DimensionScores {
		assert.Zero(t, ds.Confidence)
		assert.Equal(t, scoring.NeutralScore, ds.Value)
	}
}

func TestEngine_ConfidenceExclusion(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())

	rec, err := e.Score(context.Background(), scoring.Request{
		EntityID:  "acme",
		Reference: scoring.ReferenceContext{Budget: &scoring.Budget{Status: scoring.BudgetConfirmed}},
		AsOf:      asOf,
	})
	require.NoError(t, err)

	// Eight neutral no-data dimensions must not pull the composite toward 50.
	require.NotNil(t, rec.CompositeScore)
	assert.Equal(t, 100.0, *rec.CompositeScore)
	assert.Equal(t, scoring.QualificationQualified, rec.Qualification)
}

func TestEngine_Monotonicity(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())
	ref := scoring.ReferenceContext{Budget: &scoring.Budget{Status: scoring.BudgetNone}}

	signals := []signal.RawSignal{
		raw("e1", signal.TypeEngagementEvent, 20, mag(15)),
		raw("e2", signal.TypeEngagementEvent, 21, mag(15)),
		raw("e3", signal.TypeEngagementEvent, 22, mag(15)),
	}
	prev, err := e.Score(context.Background(), scoring.Request{EntityID: "acme", Signals: signals, Reference: ref, AsOf: asOf})
	require.NoError(t, err)
	require.NotNil(t, prev.CompositeScore)

	// Intent is at full confidence, so each additional positive signal can
	// only raise it.
	for i := 4; i <= 8; i++ {
		signals = append(signals, raw("e"+string(rune('0'+i)), signal.TypeEngagementEvent, float64(i), mag(15)))
		next, err := e.Score(context.Background(), scoring.Request{EntityID: "acme", Signals: signals, Reference: ref, AsOf: asOf})
		require.NoError(t, err)
		require.NotNil(t, next.CompositeScore)
		assert.GreaterOrEqual(t, *next.CompositeScore, *prev.CompositeScore, "after %d signals", len(signals))
		prev = next
	}
}

func TestEngine_MonotonicitySingleDimension(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())

	var signals []signal.RawSignal
	last := -1.0
	for i := 0; i < 5; i++ {
		signals = append(signals, raw("j"+string(rune('a'+i)), signal.TypeJobPosting, float64(i*3), mag(4)))
		rec, err := e.Score(context.Background(), scoring.Request{EntityID: "acme", Signals: signals, AsOf: asOf})
		require.NoError(t, err)
		require.NotNil(t, rec.CompositeScore)
		assert.GreaterOrEqual(t, *rec.CompositeScore, last)
		last = *rec.CompositeScore
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())
	signals := []signal.RawSignal{
		raw("f1", signal.TypeFundingRound, 40, mag(12_000_000)),
		raw("x1", signal.TypeExecutiveChange, 10, mag(4)),
		raw("t1", signal.TypeTechnologyAdoption, 3, nil),
		raw("j1", signal.TypeJobPosting, 1, mag(30)),
	}
	ref := scoring.ReferenceContext{
		Stakeholders: []scoring.Stakeholder{{ID: "p1", Role: scoring.RoleChampion}},
		Needs:        []scoring.Need{{Description: "reporting", Severity: scoring.SeverityHigh, Acknowledged: true}},
		Features:     []string{"sso", "audit", "api"},
		Competitors:  []scoring.Competitor{{Name: "rival", Features: []string{"sso"}}},
	}

	first, err := e.Score(context.Background(), scoring.Request{EntityID: "acme", Signals: signals, Reference: ref, AsOf: asOf})
	require.NoError(t, err)

	reversed := make([]signal.RawSignal, len(signals))
	for i, s := range signals {
		reversed[len(signals)-1-i] = s
	}
	second, err := e.Score(context.Background(), scoring.Request{EntityID: "acme", Signals: reversed, Reference: ref, AsOf: asOf})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_InvalidSignalAborts(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())

	_, err := e.Score(context.Background(), scoring.Request{
		EntityID: "acme",
		Signals: []signal.RawSignal{
			raw("ok", signal.TypeFundingRound, 1, mag(2_000_000)),
			raw("bad", signal.Type("rumor"), 1, mag(1)),
		},
		AsOf: asOf,
	})
	require.Error(t, err)
	var invalid *signal.InvalidSignalError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "bad", invalid.SignalID)
}

func TestEngine_InvalidSignalSkipped(t *testing.T) {
	cfg := scoring.DefaultWeightConfig()
	cfg.InvalidSignalPolicy = scoring.PolicySkip
	e := newEngine(t, cfg)

	rec, err := e.Score(context.Background(), scoring.Request{
		EntityID: "acme",
		Signals: []signal.RawSignal{
			raw("ok", signal.TypeFundingRound, 1, mag(2_000_000)),
			raw("nomag", signal.TypeFundingRound, 1, nil),
		},
		AsOf: asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.SignalCount)
	require.Len(t, rec.SkippedSignals, 1)
	assert.Equal(t, "nomag", rec.SkippedSignals[0].ID)
	assert.Equal(t, signal.TypeFundingRound, rec.SkippedSignals[0].Type)
}

func TestEngine_CancelledContext(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := e.Score(ctx, scoring.Request{
		EntityID: "acme",
		Signals:  []signal.RawSignal{raw("f1", signal.TypeFundingRound, 5, mag(60_000_000))},
		AsOf:     asOf,
	})
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_RequiresEntityID(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())
	_, err := e.Score(context.Background(), scoring.Request{AsOf: asOf})
	assert.Error(t, err)
}

func TestEngine_DefaultsAsOfToClock(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())
	rec, err := e.Score(context.Background(), scoring.Request{EntityID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, fixedClock(), rec.AsOf)
}

func TestNewEngine_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*scoring.WeightConfig)
		field  string
	}{
		{"negative weight", func(c *scoring.WeightConfig) { c.Weights[scoring.DimensionIntent] = -0.1 }, "weights.intent"},
		{"missing weight", func(c *scoring.WeightConfig) { delete(c.Weights, scoring.DimensionMoat) }, "weights.moat"},
		{"zero total weight", func(c *scoring.WeightConfig) {
			for d := range c.Weights {
				c.Weights[d] = 0
			}
		}, "weights"},
		{"zero half-life", func(c *scoring.WeightConfig) { c.DecayHalfLifeDays[signal.TypeJobPosting] = 0 }, "decay_half_life_days.job_posting"},
		{"unordered thresholds", func(c *scoring.WeightConfig) {
			c.Thresholds[signal.TypeFundingRound] = signal.Thresholds{Moderate: 10, Strong: 5, VeryStrong: 20}
		}, "thresholds.funding_round"},
		{"missing thresholds", func(c *scoring.WeightConfig) { delete(c.Thresholds, signal.TypeExpansion) }, "thresholds.expansion"},
		{"min sample size", func(c *scoring.WeightConfig) { c.MinSampleSize = 0 }, "min_sample_size"},
		{"retention horizon", func(c *scoring.WeightConfig) { c.RetentionHorizonDays = 0 }, "retention_horizon_days"},
		{"trend window", func(c *scoring.WeightConfig) { c.TrendWindowDays = 0 }, "trend_window_days"},
		{"retention shorter than two trend windows", func(c *scoring.WeightConfig) {
			c.RetentionHorizonDays = 30
			c.TrendWindowDays = 30
		}, "retention_horizon_days"},
		{"priority bands", func(c *scoring.WeightConfig) { c.PriorityBands.High = 90 }, "priority_bands"},
		{"max actions", func(c *scoring.WeightConfig) { c.MaxActions = 0 }, "max_actions"},
		{"policy", func(c *scoring.WeightConfig) { c.InvalidSignalPolicy = "ignore" }, "invalid_signal_policy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := scoring.DefaultWeightConfig()
			tc.mutate(&cfg)
			_, err := scoring.NewEngine(cfg)
			require.Error(t, err)
			var cfgErr *scoring.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %T", err)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestNewEngine_DuplicateScorer(t *testing.T) {
	_, err := scoring.NewEngine(scoring.DefaultWeightConfig(),
		scoring.WithScorers(&scoring.BudgetScorer{}, &scoring.BudgetScorer{}))
	var cfgErr *scoring.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "scorers", cfgErr.Field)
}

func TestNewEngine_CustomScorersOnlyNeedTheirWeights(t *testing.T) {
	cfg := scoring.DefaultWeightConfig()
	cfg.Weights = map[scoring.Dimension]float64{scoring.DimensionBudget: 1}

	e, err := scoring.NewEngine(cfg, scoring.WithScorers(&scoring.BudgetScorer{}), scoring.WithClock(fixedClock))
	require.NoError(t, err)

	rec, err := e.Score(context.Background(), scoring.Request{
		EntityID:  "acme",
		Reference: scoring.ReferenceContext{Budget: &scoring.Budget{Status: scoring.BudgetAllocated}},
		AsOf:      asOf,
	})
	require.NoError(t, err)
	require.Len(t, rec.DimensionScores, 1)
	require.NotNil(t, rec.CompositeScore)
	assert.Equal(t, 80.0, *rec.CompositeScore)
}

func TestNewEngine_DoesNotAliasConfig(t *testing.T) {
	cfg := scoring.DefaultWeightConfig()
	e := newEngine(t, cfg)
	cfg.Weights[scoring.DimensionIntent] = -1

	assert.Equal(t, 0.25, e.Config().Weights[scoring.DimensionIntent])
}

func TestEngine_ForeignEntitySignalAborts(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())

	foreign := raw("g1", signal.TypeFundingRound, 2, mag(60_000_000))
	foreign.EntityID = "globex"
	_, err := e.Score(context.Background(), scoring.Request{
		EntityID: "acme",
		Signals:  []signal.RawSignal{raw("ok", signal.TypeJobPosting, 1, mag(4)), foreign},
		AsOf:     asOf,
	})
	require.Error(t, err)
	var invalid *signal.InvalidSignalError
	require.True(t, errors.As(err, &invalid), "got %T", err)
	assert.Equal(t, "g1", invalid.SignalID)
	assert.Contains(t, invalid.Reason, "globex")
}

func TestEngine_ForeignEntitySignalSkipped(t *testing.T) {
	cfg := scoring.DefaultWeightConfig()
	cfg.InvalidSignalPolicy = scoring.PolicySkip
	e := newEngine(t, cfg)

	foreign := raw("g1", signal.TypeFundingRound, 2, mag(60_000_000))
	foreign.EntityID = "globex"
	unattributed := raw("n1", signal.TypeJobPosting, 2, mag(4))
	unattributed.EntityID = ""

	rec, err := e.Score(context.Background(), scoring.Request{
		EntityID: "acme",
		Signals:  []signal.RawSignal{raw("j1", signal.TypeJobPosting, 1, mag(4)), foreign, unattributed},
		AsOf:     asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SignalCount)
	require.Len(t, rec.SkippedSignals, 1)
	assert.Equal(t, "g1", rec.SkippedSignals[0].ID)

	intent, ok := rec.Dimension(scoring.DimensionIntent)
	require.True(t, ok)
	assert.NotContains(t, intent.ContributingSignalIDs, "g1")
}

func TestEngine_UndatedSignalAborts(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())

	undated := raw("u1", signal.TypeFundingRound, 0, mag(60_000_000))
	undated.OccurredAt = time.Time{}
	_, err := e.Score(context.Background(), scoring.Request{
		EntityID: "acme",
		Signals:  []signal.RawSignal{undated},
		AsOf:     asOf,
	})
	var invalid *signal.InvalidSignalError
	require.True(t, errors.As(err, &invalid), "got %v", err)
	assert.Equal(t, "u1", invalid.SignalID)
	assert.Equal(t, "occurred_at is required", invalid.Reason)
}

func TestEngine_UndatedSignalSkipped(t *testing.T) {
	cfg := scoring.DefaultWeightConfig()
	cfg.InvalidSignalPolicy = scoring.PolicySkip
	e := newEngine(t, cfg)

	undated := raw("u1", signal.TypeFundingRound, 0, mag(60_000_000))
	undated.OccurredAt = time.Time{}
	rec, err := e.Score(context.Background(), scoring.Request{
		EntityID: "acme",
		Signals:  []signal.RawSignal{undated},
		AsOf:     asOf,
	})
	require.NoError(t, err)
	assert.Zero(t, rec.SignalCount)
	require.Len(t, rec.SkippedSignals, 1)
	assert.Equal(t, "u1", rec.SkippedSignals[0].ID)
	assert.Nil(t, rec.CompositeScore)
}

// Monotonicity holds only among dimensions already at full confidence. A
// first signal for a new dimension brings its value into the weighted mean
// and can pull the composite down.
func TestEngine_CompositeDropsWhenWeakDimensionEnters(t *testing.T) {
	e := newEngine(t, scoring.DefaultWeightConfig())
	ref := scoring.ReferenceContext{Budget: &scoring.Budget{Status: scoring.BudgetConfirmed}}

	before, err := e.Score(context.Background(), scoring.Request{EntityID: "acme", Reference: ref, AsOf: asOf})
	require.NoError(t, err)
	require.NotNil(t, before.CompositeScore)
	require.Equal(t, 100.0, *before.CompositeScore)

	after, err := e.Score(context.Background(), scoring.Request{
		EntityID:  "acme",
		Signals:   []signal.RawSignal{raw("j1", signal.TypeJobPosting, 1, mag(1))},
		Reference: ref,
		AsOf:      asOf,
	})
	require.NoError(t, err)
	require.NotNil(t, after.CompositeScore)

	timing, ok := after.Dimension(scoring.DimensionTiming)
	require.True(t, ok)
	assert.Positive(t, timing.Confidence)
	assert.Less(t, timing.Value, 100.0)
	assert.Less(t, *after.CompositeScore, *before.CompositeScore)
}
