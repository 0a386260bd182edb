package scoring

import "math"

// budgetScores maps a known budget status to its score.
var budgetScores = map[BudgetStatus]float64{
	BudgetConfirmed: 100,
	BudgetAllocated: 80,
	BudgetEstimated: 55,
	BudgetNone:      10,
}

// BudgetScorer rates qualification of the buyer's budget.
type BudgetScorer struct{}

func (s *BudgetScorer) Dimension() Dimension { return DimensionBudget }
func (s *BudgetScorer) Name() string         { return "Budget" }

func (s *BudgetScorer) Score(in Input) DimensionScore {
	b := in.Reference.Budget
	if b == nil {
		return NoData(DimensionBudget)
	}
	v, ok := budgetScores[b.Status]
	if !ok {
		return NoData(DimensionBudget)
	}
	return DimensionScore{Dimension: DimensionBudget, Value: v, Confidence: 1}
}

// authorityRule is one row of the authority rule table. Rules are
// evaluated in order and the first match wins.
type authorityRule struct {
	score float64
	// conclusive rules give full confidence regardless of stakeholder count
	conclusive bool
	match      func(Stakeholder) bool
}

var authorityRules = []authorityRule{
	{score: 100, conclusive: true, match: func(s Stakeholder) bool {
		return s.Role == RoleDecisionMaker && s.DecisionAuthority
	}},
	{score: 75, match: func(s Stakeholder) bool {
		return s.Role == RoleDecisionMaker || s.DecisionAuthority
	}},
	{score: 55, match: func(s Stakeholder) bool {
		return s.Role == RoleEconomicBuyer || s.Role == RoleChampion
	}},
	{score: 35, match: func(s Stakeholder) bool { return s.Role == RoleInfluencer }},
	{score: 15, match: func(Stakeholder) bool { return true }},
}

// AuthorityScorer rates access to decision-making authority.
type AuthorityScorer struct {
	MinSampleSize int
}

func (s *AuthorityScorer) Dimension() Dimension { return DimensionAuthority }
func (s *AuthorityScorer) Name() string         { return "Authority" }

func (s *AuthorityScorer) Score(in Input) DimensionScore {
	people := in.Reference.Stakeholders
	if len(people) == 0 {
		return NoData(DimensionAuthority)
	}
	for _, rule := range authorityRules {
		for _, p := range people {
			if !rule.match(p) {
				continue
			}
			conf := sampleConfidence(len(people), s.MinSampleSize)
			if rule.conclusive {
				conf = 1
			}
			return DimensionScore{Dimension: DimensionAuthority, Value: rule.score, Confidence: conf}
		}
	}
	return NoData(DimensionAuthority)
}

// needScores maps severity to score for acknowledged needs.
var needScores = map[Severity]float64{
	SeverityCritical: 100,
	SeverityHigh:     80,
	SeverityMedium:   55,
	SeverityLow:      30,
}

// unacknowledgedFactor discounts needs the buyer has not confirmed.
const unacknowledgedFactor = 0.6

// NeedScorer rates the strongest business need.
type NeedScorer struct {
	MinSampleSize int
}

func (s *NeedScorer) Dimension() Dimension { return DimensionNeed }
func (s *NeedScorer) Name() string         { return "Need" }

func (s *NeedScorer) Score(in Input) DimensionScore {
	best := -1.0
	counted := 0
	for _, n := range in.Reference.Needs {
		v, ok := needScores[n.Severity]
		if !ok {
			continue
		}
		if !n.Acknowledged {
			v *= unacknowledgedFactor
		}
		best = math.Max(best, v)
		counted++
	}
	if counted == 0 {
		return NoData(DimensionNeed)
	}
	return DimensionScore{
		Dimension:  DimensionNeed,
		Value:      best,
		Confidence: sampleConfidence(counted, s.MinSampleSize),
	}
}

// timelineBands are evaluated in order: days until the target decision date.
var timelineBands = []struct {
	maxDays float64
	score   float64
}{
	{30, 100},
	{90, 75},
	{180, 50},
}

const timelineFarScore = 25

// TimelineScorer rates how close the buyer's decision date is.
type TimelineScorer struct{}

func (s *TimelineScorer) Dimension() Dimension { return DimensionTimeline }
func (s *TimelineScorer) Name() string         { return "Timeline" }

func (s *TimelineScorer) Score(in Input) DimensionScore {
	tl := in.Reference.Timeline
	if tl == nil || tl.TargetDate.IsZero() {
		return NoData(DimensionTimeline)
	}
	days := tl.TargetDate.Sub(in.AsOf).Hours() / 24
	value := float64(timelineFarScore)
	for _, b := range timelineBands {
		// a date already passed is an open buying window
		if days <= b.maxDays {
			value = b.score
			break
		}
	}
	return DimensionScore{Dimension: DimensionTimeline, Value: value, Confidence: 1}
}
