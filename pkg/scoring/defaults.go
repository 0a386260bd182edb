package scoring

import "github.com/signalscope/signalscope/pkg/signal"

// DefaultWeightConfig returns the default scoring configuration.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Weights: map[Dimension]float64{
			DimensionIntent:    0.25,
			DimensionTiming:    0.15,
			DimensionFit:       0.15,
			DimensionBudget:    0.10,
			DimensionAuthority: 0.10,
			DimensionNeed:      0.10,
			DimensionTimeline:  0.05,
			DimensionParity:    0.05,
			DimensionMoat:      0.05,
		},

		// Capital and leadership signals stay relevant far longer than hiring
		// or web engagement.
		DecayHalfLifeDays: map[signal.Type]float64{
			signal.TypeFundingRound:       180,
			signal.TypeExecutiveChange:    120,
			signal.TypeJobPosting:         30,
			signal.TypeTechnologyAdoption: 90,
			signal.TypeExpansion:          120,
			signal.TypeEngagementEvent:    14,
			signal.TypePartnership:        90,
		},
		RetentionHorizonDays: 365,

		Thresholds: map[signal.Type]signal.Thresholds{
			// USD raised
			signal.TypeFundingRound: {Moderate: 1_000_000, Strong: 10_000_000, VeryStrong: 50_000_000},
			// seniority rank: 1 manager, 2 director, 3 VP, 4 C-level
			signal.TypeExecutiveChange: {Moderate: 2, Strong: 3, VeryStrong: 4},
			// open roles
			signal.TypeJobPosting: {Moderate: 3, Strong: 10, VeryStrong: 25},
			// technologies adopted in the category
			signal.TypeTechnologyAdoption: {
				Moderate: 1, Strong: 3, VeryStrong: 5,
				MagnitudeOptional: true, DefaultStrength: signal.StrengthModerate,
			},
			// headcount growth percent
			signal.TypeExpansion: {Moderate: 5, Strong: 15, VeryStrong: 40},
			// engagement points (page views, content downloads, demo requests)
			signal.TypeEngagementEvent: {Moderate: 10, Strong: 40, VeryStrong: 100},
			signal.TypePartnership: {
				Moderate: 1, Strong: 2, VeryStrong: 3,
				MagnitudeOptional: true, DefaultStrength: signal.StrengthModerate,
			},
		},
		BaseWeights: map[signal.Strength]float64{
			signal.StrengthWeak:       0.25,
			signal.StrengthModerate:   0.5,
			signal.StrengthStrong:     0.75,
			signal.StrengthVeryStrong: 1.0,
		},

		MinSampleSize: 3,

		Coefficients: map[Dimension]map[signal.Type]float64{
			DimensionIntent: {
				signal.TypeFundingRound:    85,
				signal.TypeEngagementEvent: 30,
			},
			DimensionTiming: {
				signal.TypeExecutiveChange: 45,
				signal.TypeJobPosting:      25,
				signal.TypeExpansion:       35,
			},
			DimensionFit: {
				signal.TypeTechnologyAdoption: 40,
				signal.TypePartnership:        25,
			},
		},

		TrendWindowDays: 30,
		PriorityBands: PriorityBands{
			Immediate: 80,
			High:      65,
			Medium:    40,
		},
		MaxActions:          3,
		InvalidSignalPolicy: PolicyAbort,
	}
}

// DefaultScorers returns the standard dimension scorers configured from cfg.
func DefaultScorers(cfg WeightConfig) []DimensionScorer {
	return []DimensionScorer{
		&SignalScorer{Dim: DimensionIntent, Label: "Purchase intent", Coefficients: cfg.Coefficients[DimensionIntent], MinSampleSize: cfg.MinSampleSize},
		&SignalScorer{Dim: DimensionTiming, Label: "Buying window timing", Coefficients: cfg.Coefficients[DimensionTiming], MinSampleSize: cfg.MinSampleSize},
		&SignalScorer{Dim: DimensionFit, Label: "Ideal customer fit", Coefficients: cfg.Coefficients[DimensionFit], MinSampleSize: cfg.MinSampleSize},
		&BudgetScorer{},
		&AuthorityScorer{MinSampleSize: cfg.MinSampleSize},
		&NeedScorer{MinSampleSize: cfg.MinSampleSize},
		&TimelineScorer{},
		&ParityScorer{MinSampleSize: cfg.MinSampleSize},
		&MoatScorer{MinSampleSize: cfg.MinSampleSize},
	}
}
