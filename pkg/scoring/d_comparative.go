package scoring

import (
	"math"
	"strings"
)

const (
	// maxPricingAdjustment caps the parity pricing adjustment in either direction.
	maxPricingAdjustment = 15.0
	// pricingSensitivity converts a relative price gap into score points.
	pricingSensitivity = 30.0
	// maxPricingPower caps the moat bonus for sustaining a price premium.
	maxPricingPower = 10.0
)

// ParityScorer rates feature parity against competitors: the mean Jaccard
// overlap of feature sets, adjusted for relative pricing.
type ParityScorer struct {
	MinSampleSize int
}

func (s *ParityScorer) Dimension() Dimension { return DimensionParity }
func (s *ParityScorer) Name() string         { return "Feature parity" }

func (s *ParityScorer) Score(in Input) DimensionScore {
	ours := featureSet(in.Reference.Features)
	if len(ours) == 0 {
		return NoData(DimensionParity)
	}

	var (
		total      float64
		priceGap   float64
		priceCount int
		counted    int
	)
	for _, c := range in.Reference.Competitors {
		theirs := featureSet(c.Features)
		union := unionSize(ours, theirs)
		if union == 0 {
			continue
		}
		total += float64(intersectionSize(ours, theirs)) / float64(union)
		counted++

		if in.Reference.PriceIndex > 0 && c.PriceIndex > 0 {
			// positive when we are cheaper
			priceGap += (c.PriceIndex - in.Reference.PriceIndex) / c.PriceIndex
			priceCount++
		}
	}
	if counted == 0 {
		return NoData(DimensionParity)
	}

	value := total / float64(counted) * 100
	if priceCount > 0 {
		adj := priceGap / float64(priceCount) * pricingSensitivity
		value += math.Max(-maxPricingAdjustment, math.Min(maxPricingAdjustment, adj))
	}
	return DimensionScore{
		Dimension:  DimensionParity,
		Value:      clampScore(value),
		Confidence: sampleConfidence(counted, s.MinSampleSize),
	}
}

// MoatScorer rates defensibility: the share of our features that no
// competitor offers, plus a bonus when that differentiation carries a price
// premium.
type MoatScorer struct {
	MinSampleSize int
}

func (s *MoatScorer) Dimension() Dimension { return DimensionMoat }
func (s *MoatScorer) Name() string         { return "Competitive moat" }

func (s *MoatScorer) Score(in Input) DimensionScore {
	ours := featureSet(in.Reference.Features)
	if len(ours) == 0 || len(in.Reference.Competitors) == 0 {
		return NoData(DimensionMoat)
	}

	offered := make(map[string]bool)
	var priceSum float64
	var priceCount int
	for _, c := range in.Reference.Competitors {
		for f := range featureSet(c.Features) {
			offered[f] = true
		}
		if c.PriceIndex > 0 {
			priceSum += c.PriceIndex
			priceCount++
		}
	}

	unique := 0
	for f := range ours {
		if !offered[f] {
			unique++
		}
	}
	uniqueShare := float64(unique) / float64(len(ours))
	value := uniqueShare * 100

	if priceCount > 0 && in.Reference.PriceIndex > 0 {
		avg := priceSum / float64(priceCount)
		premium := (in.Reference.PriceIndex - avg) / avg
		if premium > 0 && unique > 0 {
			value += math.Min(maxPricingPower, premium*uniqueShare*100)
		}
	}

	return DimensionScore{
		Dimension:  DimensionMoat,
		Value:      clampScore(value),
		Confidence: sampleConfidence(len(in.Reference.Competitors), s.MinSampleSize),
	}
}

// featureSet normalizes feature names for comparison.
func featureSet(features []string) map[string]bool {
	set := make(map[string]bool, len(features))
	for _, f := range features {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			set[f] = true
		}
	}
	return set
}

func intersectionSize(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}

func unionSize(a, b map[string]bool) int {
	n := len(a)
	for k := range b {
		if !a[k] {
			n++
		}
	}
	return n
}
