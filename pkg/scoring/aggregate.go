package scoring

import (
	"github.com/signalscope/signalscope/pkg/signal"
)

// Aggregate combines dimension scores into the composite:
//
//	Σ(value·weight·confidence) / Σ(weight·confidence)
//
// over dimensions with positive weight and confidence. It returns nil when
// no dimension qualifies; missing dimensions never count as zero.
func Aggregate(scores []DimensionScore, weights map[Dimension]float64) *float64 {
	var num, den float64
	for _, ds := range scores {
		w := weights[ds.Dimension]
		if w <= 0 || ds.Confidence <= 0 {
			continue
		}
		num += ds.Value * w * ds.Confidence
		den += w * ds.Confidence
	}
	if den == 0 {
		return nil
	}
	v := clampScore(num / den)
	return &v
}

// ComputeTrend measures signal velocity over the trailing window
// (asOf-w, asOf] and acceleration against the window before it.
// Future-dated signals count in the current window.
func ComputeTrend(signals []signal.NormalizedSignal, windowDays int) Trend {
	if windowDays < 1 {
		return Trend{}
	}
	w := float64(windowDays)
	var current, previous int
	for _, s := range signals {
		switch {
		case s.AgeDays < w:
			current++
		case s.AgeDays < 2*w:
			previous++
		}
	}
	velocity := float64(current) / w
	return Trend{
		Velocity:     velocity,
		Acceleration: velocity - float64(previous)/w,
		WindowDays:   windowDays,
	}
}
