// Package signal defines the raw and normalized signal model for SignalScope.
// Raw signals are observed facts about an entity; the Normalizer turns them
// into strength-banded, recency-weighted signals the scorers consume.
package signal

import (
	"fmt"
	"time"
)

// Type identifies the kind of observed fact.
type Type string

const (
	TypeFundingRound       Type = "funding_round"
	TypeExecutiveChange    Type = "executive_change"
	TypeJobPosting         Type = "job_posting"
	TypeTechnologyAdoption Type = "technology_adoption"
	TypeExpansion          Type = "expansion"
	TypeEngagementEvent    Type = "engagement_event"
	TypePartnership        Type = "partnership"
)

// KnownTypes lists every signal type recognized by SignalScope, in a stable order.
func KnownTypes() []Type {
	return []Type{
		TypeFundingRound,
		TypeExecutiveChange,
		TypeJobPosting,
		TypeTechnologyAdoption,
		TypeExpansion,
		TypeEngagementEvent,
		TypePartnership,
	}
}

// IsKnown reports whether t is a recognized signal type.
func (t Type) IsKnown() bool {
	for _, k := range KnownTypes() {
		if k == t {
			return true
		}
	}
	return false
}

// RawSignal is an observed fact about an entity as delivered by ingestion.
// Raw signals are immutable once ingested.
type RawSignal struct {
	ID         string         `json:"id"`
	EntityID   string         `json:"entity_id"`
	Type       Type           `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Magnitude  *float64       `json:"magnitude,omitempty"` // amount, seniority rank, role count... per type
	Metadata   map[string]any `json:"metadata,omitempty"`
	Source     string         `json:"source,omitempty"`
}

// Validate checks the fields every signal needs regardless of type tables.
func (r RawSignal) Validate() error {
	if r.EntityID == "" {
		return &InvalidSignalError{SignalID: r.ID, Type: r.Type, Reason: "entity_id is required"}
	}
	if !r.Type.IsKnown() {
		return &InvalidSignalError{SignalID: r.ID, Type: r.Type, Reason: fmt.Sprintf("unrecognized signal type %q", r.Type)}
	}
	if r.OccurredAt.IsZero() {
		return &InvalidSignalError{SignalID: r.ID, Type: r.Type, Reason: "occurred_at is required"}
	}
	return nil
}

// Strength is the discrete band a signal's magnitude falls into.
type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthModerate   Strength = "moderate"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

// Strengths lists all bands from weakest to strongest.
func Strengths() []Strength {
	return []Strength{StrengthWeak, StrengthModerate, StrengthStrong, StrengthVeryStrong}
}

// Thresholds are the lower magnitude bounds of each band above weak.
// They must be non-decreasing: Moderate <= Strong <= VeryStrong.
type Thresholds struct {
	Moderate   float64 `json:"moderate" yaml:"moderate"`
	Strong     float64 `json:"strong" yaml:"strong"`
	VeryStrong float64 `json:"very_strong" yaml:"very_strong"`

	// MagnitudeOptional allows signals without a magnitude; they get DefaultStrength.
	MagnitudeOptional bool     `json:"magnitude_optional,omitempty" yaml:"magnitude_optional,omitempty"`
	DefaultStrength   Strength `json:"default_strength,omitempty" yaml:"default_strength,omitempty"`
}

// Band maps a magnitude to its strength band. Bounds are inclusive.
func (t Thresholds) Band(magnitude float64) Strength {
	switch {
	case magnitude >= t.VeryStrong:
		return StrengthVeryStrong
	case magnitude >= t.Strong:
		return StrengthStrong
	case magnitude >= t.Moderate:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// Ordered reports whether the bounds are non-decreasing.
func (t Thresholds) Ordered() bool {
	return t.Moderate <= t.Strong && t.Strong <= t.VeryStrong
}

// NormalizedSignal is the engine's uniform view of a raw signal.
// It is derived on every scoring run and never persisted.
type NormalizedSignal struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Strength    Strength  `json:"strength"`
	OccurredAt  time.Time `json:"occurred_at"`
	AgeDays     float64   `json:"age_days"`
	Weight      float64   `json:"weight"`       // base weight * decay factor
	DecayFactor float64   `json:"decay_factor"` // 0..1
}
