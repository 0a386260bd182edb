// Package scoring implements the SignalScope composite scoring engine.
// It turns normalized buying signals and reference data into per-dimension
// scores, a confidence-weighted composite, a priority band and an ordered
// set of recommended actions.
package scoring

import (
	"time"

	"github.com/signalscope/signalscope/pkg/signal"
)

// Dimension is one named axis of evaluation.
type Dimension string

const (
	DimensionIntent    Dimension = "intent"
	DimensionTiming    Dimension = "timing"
	DimensionFit       Dimension = "fit"
	DimensionBudget    Dimension = "budget"
	DimensionAuthority Dimension = "authority"
	DimensionNeed      Dimension = "need"
	DimensionTimeline  Dimension = "timeline"
	DimensionParity    Dimension = "parity"
	DimensionMoat      Dimension = "moat"
)

// AllDimensions lists every recognized dimension in registry order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionIntent, DimensionTiming, DimensionFit,
		DimensionBudget, DimensionAuthority, DimensionNeed, DimensionTimeline,
		DimensionParity, DimensionMoat,
	}
}

// BANTDimensions are the qualification dimensions.
func BANTDimensions() []Dimension {
	return []Dimension{DimensionBudget, DimensionAuthority, DimensionNeed, DimensionTimeline}
}

// NeutralScore is reported by a dimension that has no data.
const NeutralScore = 50.0

// DimensionScore is the output of a single dimension scorer.
// A Confidence of zero means "no data" and excludes the dimension from the composite.
type DimensionScore struct {
	Dimension             Dimension `json:"dimension"`
	Value                 float64   `json:"value"`      // 0-100
	Confidence            float64   `json:"confidence"` // 0.0-1.0
	ContributingSignalIDs []string  `json:"contributing_signal_ids,omitempty"`
}

// NoData returns the neutral, zero-confidence score for d.
func NoData(d Dimension) DimensionScore {
	return DimensionScore{Dimension: d, Value: NeutralScore, Confidence: 0}
}

// Priority is the engagement-priority band.
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// ConfidenceLevel summarizes how well supported a composite is.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Qualification is the BANT qualification status.
type Qualification string

const (
	QualificationQualified Qualification = "qualified"
	QualificationPartial   Qualification = "partially_qualified"
	QualificationNone      Qualification = "unqualified"
	QualificationUnknown   Qualification = "unknown"
)

// Trend describes how signal activity is changing over trailing windows.
type Trend struct {
	Velocity     float64 `json:"velocity"`     // signals per day in the current window, >= 0
	Acceleration float64 `json:"acceleration"` // current velocity minus previous window velocity
	WindowDays   int     `json:"window_days"`
}

// SkippedSignal records a raw signal excluded under the skip policy.
type SkippedSignal struct {
	ID     string      `json:"id"`
	Type   signal.Type `json:"type"`
	Reason string      `json:"reason"`
}

// CompositeScoreRecord is the complete output of one scoring run for an entity.
// Records are never mutated; a recompute produces a new record that supersedes
// the previous one.
type CompositeScoreRecord struct {
	ID                 string           `json:"id,omitempty"` // assigned on persistence
	EntityID           string           `json:"entity_id"`
	CompositeScore     *float64         `json:"composite_score"` // nil when no dimension has data
	DimensionScores    []DimensionScore `json:"dimension_scores"`
	Priority           Priority         `json:"priority"`
	InsufficientData   bool             `json:"insufficient_data"`
	ConfidenceLevel    ConfidenceLevel  `json:"confidence_level"`
	Qualification      Qualification    `json:"qualification"`
	Trend              Trend            `json:"trend"`
	RecommendedActions []string         `json:"recommended_actions"`
	TalkingPoints      []string         `json:"talking_points"`
	SkippedSignals     []SkippedSignal  `json:"skipped_signals,omitempty"`
	SignalCount        int              `json:"signal_count"`
	AsOf               time.Time        `json:"as_of"`
	ComputedAt         time.Time        `json:"computed_at"`
	ArchiveRef         string           `json:"archive_ref,omitempty"`
}

// Dimension returns the score for d, if present.
func (r *CompositeScoreRecord) Dimension(d Dimension) (DimensionScore, bool) {
	for _, ds := range r.DimensionScores {
		if ds.Dimension == d {
			return ds, true
		}
	}
	return DimensionScore{}, false
}
