package scoring

// Confidence level cutoffs, applied to the weakest contributing dimension.
const (
	highConfidenceCutoff   = 0.75
	mediumConfidenceCutoff = 0.4
)

// Qualification cutoffs over the mean of present BANT dimensions.
const (
	qualifiedCutoff = 70.0
	partialCutoff   = 40.0
)

// Classification is the classifier's output for one composite.
type Classification struct {
	Priority         Priority
	InsufficientData bool
}

// Classify maps a composite and its trend to a priority band. It is a pure
// function: band edges are inclusive and a nil composite is low with
// InsufficientData set.
func Classify(composite *float64, trend Trend, bands PriorityBands) Classification {
	if composite == nil {
		return Classification{Priority: PriorityLow, InsufficientData: true}
	}
	c := *composite
	switch {
	case c >= bands.Immediate:
		return Classification{Priority: PriorityImmediate}
	case c >= bands.High && trend.Acceleration > 0:
		return Classification{Priority: PriorityImmediate}
	case c >= bands.High:
		return Classification{Priority: PriorityHigh}
	case c >= bands.Medium:
		return Classification{Priority: PriorityMedium}
	default:
		return Classification{Priority: PriorityLow}
	}
}

// ConfidenceLevelFor summarizes support for a composite from the minimum
// confidence among contributing dimensions.
func ConfidenceLevelFor(scores []DimensionScore, weights map[Dimension]float64) ConfidenceLevel {
	minConf := -1.0
	for _, ds := range scores {
		if ds.Confidence <= 0 || weights[ds.Dimension] <= 0 {
			continue
		}
		if minConf < 0 || ds.Confidence < minConf {
			minConf = ds.Confidence
		}
	}
	switch {
	case minConf >= highConfidenceCutoff:
		return ConfidenceHigh
	case minConf >= mediumConfidenceCutoff:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Qualify derives BANT qualification from the budget, authority, need and
// timeline dimensions that have data.
func Qualify(scores []DimensionScore) Qualification {
	bant := make(map[Dimension]bool)
	for _, d := range BANTDimensions() {
		bant[d] = true
	}
	var sum float64
	var n int
	for _, ds := range scores {
		if !bant[ds.Dimension] || ds.Confidence <= 0 {
			continue
		}
		sum += ds.Value
		n++
	}
	if n == 0 {
		return QualificationUnknown
	}
	mean := sum / float64(n)
	switch {
	case mean >= qualifiedCutoff:
		return QualificationQualified
	case mean >= partialCutoff:
		return QualificationPartial
	default:
		return QualificationNone
	}
}
