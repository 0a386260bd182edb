package scoring

import (
	"math"

	"github.com/signalscope/signalscope/pkg/signal"
)

// SignalScorer scores a signal-driven dimension (intent, timing, fit):
// the sum of each contributing signal's decayed weight times its type
// coefficient, capped at 100.
type SignalScorer struct {
	Dim           Dimension
	Label         string
	Coefficients  map[signal.Type]float64 // types absent here do not contribute
	MinSampleSize int
}

func (s *SignalScorer) Dimension() Dimension { return s.Dim }
func (s *SignalScorer) Name() string         { return s.Label }

func (s *SignalScorer) Score(in Input) DimensionScore {
	var (
		sum float64
		ids []string
	)
	for _, sig := range in.Signals {
		coef, ok := s.Coefficients[sig.Type]
		if !ok || coef <= 0 || sig.Weight <= 0 {
			continue
		}
		sum += sig.Weight * coef
		ids = append(ids, sig.ID)
	}
	if len(ids) == 0 {
		return NoData(s.Dim)
	}

	return DimensionScore{
		Dimension:             s.Dim,
		Value:                 clampScore(sum),
		Confidence:            sampleConfidence(len(ids), s.MinSampleSize),
		ContributingSignalIDs: ids,
	}
}

// sampleConfidence is min(1, n/minSample).
func sampleConfidence(n, minSample int) float64 {
	if n <= 0 {
		return 0
	}
	if minSample < 1 {
		minSample = 1
	}
	return math.Min(1, float64(n)/float64(minSample))
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
