package scoring

import (
	"fmt"
	"math"

	"github.com/signalscope/signalscope/pkg/signal"
)

// InvalidSignalPolicy decides what a scoring run does with malformed signals.
type InvalidSignalPolicy string

const (
	// PolicyAbort fails the entity's run on the first invalid signal.
	PolicyAbort InvalidSignalPolicy = "abort"
	// PolicySkip excludes invalid signals and lists them on the record.
	PolicySkip InvalidSignalPolicy = "skip"
)

// PriorityBands are the inclusive lower bounds of the priority bands.
type PriorityBands struct {
	Immediate float64 `json:"immediate" yaml:"immediate"`
	High      float64 `json:"high" yaml:"high"`
	Medium    float64 `json:"medium" yaml:"medium"`
}

// WeightConfig holds every tunable of a scoring run. It is passed into the
// engine explicitly and validated once, at construction.
type WeightConfig struct {
	// Per-dimension weights; must be non-negative and cover every dimension
	// the engine scores.
	Weights map[Dimension]float64

	// Normalizer settings.
	DecayHalfLifeDays    map[signal.Type]float64
	RetentionHorizonDays int
	Thresholds           map[signal.Type]signal.Thresholds
	BaseWeights          map[signal.Strength]float64

	// MinSampleSize is the evidence count at which a dimension reaches full confidence.
	MinSampleSize int

	// Coefficients maps signal-driven dimensions to per-type contribution factors.
	Coefficients map[Dimension]map[signal.Type]float64

	TrendWindowDays     int
	PriorityBands       PriorityBands
	MaxActions          int
	InvalidSignalPolicy InvalidSignalPolicy
}

// ConfigurationError reports an invalid WeightConfig. It is only ever
// returned from NewEngine, before any scoring begins.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid scoring configuration: %s: %s", e.Field, e.Reason)
}

// Validate checks the config against the dimensions an engine will score.
func (c WeightConfig) Validate(dimensions []Dimension) error {
	total := 0.0
	for _, d := range dimensions {
		w, ok := c.Weights[d]
		if !ok {
			return &ConfigurationError{Field: "weights." + string(d), Reason: "missing weight for dimension"}
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return &ConfigurationError{Field: "weights." + string(d), Reason: fmt.Sprintf("weight %v must be a non-negative number", w)}
		}
		total += w
	}
	for d, w := range c.Weights {
		if w < 0 {
			return &ConfigurationError{Field: "weights." + string(d), Reason: fmt.Sprintf("weight %v is negative", w)}
		}
	}
	if total <= 0 {
		return &ConfigurationError{Field: "weights", Reason: "at least one dimension weight must be positive"}
	}

	for _, t := range signal.KnownTypes() {
		th, ok := c.Thresholds[t]
		if !ok {
			return &ConfigurationError{Field: "thresholds." + string(t), Reason: "missing threshold table for signal type"}
		}
		if !th.Ordered() {
			return &ConfigurationError{Field: "thresholds." + string(t), Reason: "bounds must be non-decreasing"}
		}
		if hl := c.DecayHalfLifeDays[t]; hl <= 0 {
			return &ConfigurationError{Field: "decay_half_life_days." + string(t), Reason: "half-life must be positive"}
		}
	}
	for _, s := range signal.Strengths() {
		if w, ok := c.BaseWeights[s]; !ok || w < 0 {
			return &ConfigurationError{Field: "base_weights." + string(s), Reason: "base weight must be present and non-negative"}
		}
	}
	for d, coeffs := range c.Coefficients {
		for t, v := range coeffs {
			if v < 0 {
				return &ConfigurationError{Field: fmt.Sprintf("coefficients.%s.%s", d, t), Reason: "coefficient must be non-negative"}
			}
		}
	}

	if c.RetentionHorizonDays < 1 {
		return &ConfigurationError{Field: "retention_horizon_days", Reason: "must be at least 1"}
	}
	if c.MinSampleSize < 1 {
		return &ConfigurationError{Field: "min_sample_size", Reason: "must be at least 1"}
	}
	if c.TrendWindowDays < 1 {
		return &ConfigurationError{Field: "trend_window_days", Reason: "must be at least 1"}
	}
	// The trend compares two full windows, both of which must survive retention.
	if c.RetentionHorizonDays < 2*c.TrendWindowDays {
		return &ConfigurationError{Field: "retention_horizon_days", Reason: fmt.Sprintf("must cover two trend windows (at least %d)", 2*c.TrendWindowDays)}
	}
	b := c.PriorityBands
	if !(b.Medium <= b.High && b.High <= b.Immediate) {
		return &ConfigurationError{Field: "priority_bands", Reason: "bands must satisfy medium <= high <= immediate"}
	}
	if c.MaxActions < 1 {
		return &ConfigurationError{Field: "max_actions", Reason: "must be at least 1"}
	}
	switch c.InvalidSignalPolicy {
	case PolicyAbort, PolicySkip:
	default:
		return &ConfigurationError{Field: "invalid_signal_policy", Reason: fmt.Sprintf("unknown policy %q", c.InvalidSignalPolicy)}
	}
	return nil
}

// Normalizer builds the signal normalizer described by the config.
func (c WeightConfig) Normalizer() *signal.Normalizer {
	return &signal.Normalizer{
		Thresholds:           c.Thresholds,
		HalfLifeDays:         c.DecayHalfLifeDays,
		BaseWeights:          c.BaseWeights,
		RetentionHorizonDays: c.RetentionHorizonDays,
	}
}

// Clone returns a deep copy so callers can derive variants without sharing maps.
func (c WeightConfig) Clone() WeightConfig {
	out := c
	out.Weights = make(map[Dimension]float64, len(c.Weights))
	for k, v := range c.Weights {
		out.Weights[k] = v
	}
	out.DecayHalfLifeDays = make(map[signal.Type]float64, len(c.DecayHalfLifeDays))
	for k, v := range c.DecayHalfLifeDays {
		out.DecayHalfLifeDays[k] = v
	}
	out.Thresholds = make(map[signal.Type]signal.Thresholds, len(c.Thresholds))
	for k, v := range c.Thresholds {
		out.Thresholds[k] = v
	}
	out.BaseWeights = make(map[signal.Strength]float64, len(c.BaseWeights))
	for k, v := range c.BaseWeights {
		out.BaseWeights[k] = v
	}
	out.Coefficients = make(map[Dimension]map[signal.Type]float64, len(c.Coefficients))
	for d, coeffs := range c.Coefficients {
		m := make(map[signal.Type]float64, len(coeffs))
		for k, v := range coeffs {
			m[k] = v
		}
		out.Coefficients[d] = m
	}
	return out
}
