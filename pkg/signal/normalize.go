package signal

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const hoursPerDay = 24.0

// Normalizer converts raw signals into NormalizedSignals using per-type
// threshold tables and per-type decay half-lives. It holds no state beyond
// its configuration and is safe for concurrent use.
type Normalizer struct {
	Thresholds           map[Type]Thresholds
	HalfLifeDays         map[Type]float64
	BaseWeights          map[Strength]float64
	RetentionHorizonDays int
}

// Rejection pairs an invalid raw signal with the reason it was rejected.
type Rejection struct {
	Signal RawSignal
	Err    *InvalidSignalError
}

// Normalize converts a batch, failing on the first invalid signal.
// Signals older than the retention horizon are dropped, not reported.
func (n *Normalizer) Normalize(raw []RawSignal, asOf time.Time) ([]NormalizedSignal, error) {
	out := make([]NormalizedSignal, 0, len(raw))
	for _, r := range raw {
		ns, keep, err := n.NormalizeOne(r, asOf)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, ns)
		}
	}
	sortSignals(out)
	return out, nil
}

// NormalizeEach converts a batch and reports every invalid signal instead of
// stopping at the first, so the caller can choose to skip them.
func (n *Normalizer) NormalizeEach(raw []RawSignal, asOf time.Time) ([]NormalizedSignal, []Rejection) {
	out := make([]NormalizedSignal, 0, len(raw))
	var rejected []Rejection
	for _, r := range raw {
		ns, keep, err := n.NormalizeOne(r, asOf)
		if err != nil {
			rejected = append(rejected, Rejection{Signal: r, Err: err})
			continue
		}
		if keep {
			out = append(out, ns)
		}
	}
	sortSignals(out)
	return out, rejected
}

// NormalizeOne converts a single raw signal. keep is false when the signal
// is past the retention horizon. A signal without a timestamp is invalid.
func (n *Normalizer) NormalizeOne(r RawSignal, asOf time.Time) (NormalizedSignal, bool, *InvalidSignalError) {
	table, ok := n.Thresholds[r.Type]
	if !ok || !r.Type.IsKnown() {
		return NormalizedSignal{}, false, &InvalidSignalError{
			SignalID: r.ID, Type: r.Type,
			Reason: fmt.Sprintf("unrecognized signal type %q", r.Type),
		}
	}

	if r.OccurredAt.IsZero() {
		return NormalizedSignal{}, false, &InvalidSignalError{
			SignalID: r.ID, Type: r.Type, Reason: "occurred_at is required",
		}
	}

	var strength Strength
	switch {
	case r.Magnitude != nil:
		if math.IsNaN(*r.Magnitude) || math.IsInf(*r.Magnitude, 0) {
			return NormalizedSignal{}, false, &InvalidSignalError{
				SignalID: r.ID, Type: r.Type, Reason: "magnitude is not a finite number",
			}
		}
		strength = table.Band(*r.Magnitude)
	case table.MagnitudeOptional:
		strength = table.DefaultStrength
		if strength == "" {
			strength = StrengthModerate
		}
	default:
		return NormalizedSignal{}, false, &InvalidSignalError{
			SignalID: r.ID, Type: r.Type, Reason: "magnitude is required for this signal type",
		}
	}

	age := AgeDays(r.OccurredAt, asOf)
	if n.RetentionHorizonDays > 0 && age > float64(n.RetentionHorizonDays) {
		return NormalizedSignal{}, false, nil
	}

	decay := DecayFactor(age, n.HalfLifeDays[r.Type])
	return NormalizedSignal{
		ID:          r.ID,
		Type:        r.Type,
		Strength:    strength,
		OccurredAt:  r.OccurredAt,
		AgeDays:     age,
		Weight:      n.BaseWeights[strength] * decay,
		DecayFactor: decay,
	}, true, nil
}

// AgeDays returns the fractional age of t at asOf. Future timestamps are age 0.
func AgeDays(t, asOf time.Time) float64 {
	d := asOf.Sub(t).Hours() / hoursPerDay
	if d < 0 {
		return 0
	}
	return d
}

// DecayFactor is exp(-ln2 * age / halfLife). A non-positive half-life
// disables decay.
func DecayFactor(ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// sortSignals orders newest first, ties broken by ID, so downstream output
// is independent of input order.
func sortSignals(s []NormalizedSignal) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].OccurredAt.Equal(s[j].OccurredAt) {
			return s[i].OccurredAt.After(s[j].OccurredAt)
		}
		return s[i].ID < s[j].ID
	})
}
