package scoring

import (
	"sort"
)

// Band is the coarse performance band of a single dimension score.
type Band string

const (
	BandUnknown Band = "unknown"
	BandLow     Band = "low"
	BandMedium  Band = "medium"
	BandHigh    Band = "high"
)

const (
	lowBandCutoff  = 40.0
	highBandCutoff = 70.0
)

// BandOf classifies a dimension score. Zero confidence is always unknown.
func BandOf(ds DimensionScore) Band {
	switch {
	case ds.Confidence <= 0:
		return BandUnknown
	case ds.Value >= highBandCutoff:
		return BandHigh
	case ds.Value >= lowBandCutoff:
		return BandMedium
	default:
		return BandLow
	}
}

// ruleKey indexes the recommendation rule table.
type ruleKey struct {
	dim  Dimension
	band Band
}

// recommendationRules maps (dimension, band) to an action or talking point.
// Low, medium and unknown bands produce actions; the high band produces
// talking points.
var recommendationRules = map[ruleKey]string{
	{DimensionIntent, BandLow}:     "Nurture with educational content until purchase intent emerges",
	{DimensionIntent, BandMedium}:  "Share a relevant case study to convert research activity into a conversation",
	{DimensionIntent, BandUnknown}: "Track web engagement and funding news to establish purchase intent",
	{DimensionIntent, BandHigh}:    "Recent activity shows strong purchase intent; reference their current initiatives",

	{DimensionTiming, BandLow}:     "Set a reminder to revisit when leadership or hiring changes",
	{DimensionTiming, BandMedium}:  "Align outreach with their hiring and expansion plans",
	{DimensionTiming, BandUnknown}: "Monitor leadership changes and job postings to time outreach",
	{DimensionTiming, BandHigh}:    "Organizational change has opened a buying window; lead with time-to-value",

	{DimensionFit, BandLow}:     "Validate that the account matches the ideal customer profile before investing",
	{DimensionFit, BandMedium}:  "Map their technology stack to confirm integration fit",
	{DimensionFit, BandUnknown}: "Research their technology stack and partnerships to assess fit",
	{DimensionFit, BandHigh}:    "Their stack and partnerships match our strongest integrations",

	{DimensionBudget, BandLow}:     "Build a cost-of-inaction case to help secure budget",
	{DimensionBudget, BandMedium}:  "Confirm budget amount and approval process with the economic buyer",
	{DimensionBudget, BandUnknown}: "Ask about budget status and planning cycle in the next call",
	{DimensionBudget, BandHigh}:    "Budget is committed; focus on procurement steps",

	{DimensionAuthority, BandLow}:     "Ask your contact to introduce the decision maker",
	{DimensionAuthority, BandMedium}:  "Secure a meeting with the economic buyer",
	{DimensionAuthority, BandUnknown}: "Identify the stakeholders and who holds final sign-off",
	{DimensionAuthority, BandHigh}:    "You are engaged with the decision maker; keep them close",

	{DimensionNeed, BandLow}:     "Run a discovery session to uncover pressing business problems",
	{DimensionNeed, BandMedium}:  "Quantify the impact of their stated needs to raise urgency",
	{DimensionNeed, BandUnknown}: "Document their business needs and get them acknowledged",
	{DimensionNeed, BandHigh}:    "They have acknowledged a critical need; anchor the pitch on it",

	{DimensionTimeline, BandLow}:     "Establish interim milestones to pull the decision date forward",
	{DimensionTimeline, BandMedium}:  "Agree on a mutual action plan toward their decision date",
	{DimensionTimeline, BandUnknown}: "Ask when they need a solution in place",
	{DimensionTimeline, BandHigh}:    "Their decision date is close; offer a fast implementation path",

	{DimensionParity, BandLow}:     "Prepare a feature comparison addressing gaps against competitors",
	{DimensionParity, BandMedium}:  "Highlight roadmap items that close remaining feature gaps",
	{DimensionParity, BandUnknown}: "Find out which alternatives they are evaluating",
	{DimensionParity, BandHigh}:    "We match the alternatives they are evaluating feature for feature",

	{DimensionMoat, BandLow}:     "Differentiate on service and support rather than features",
	{DimensionMoat, BandMedium}:  "Lead with the capabilities competitors cannot match",
	{DimensionMoat, BandUnknown}: "Map competitor offerings to identify our unique strengths",
	{DimensionMoat, BandHigh}:    "Several of our capabilities are unavailable from any competitor",
}

// EngageNowAction is prepended for immediate-priority entities.
const EngageNowAction = "Engage now: contact the account this week while buying signals are peaking"

// Recommendations are the ordered outputs of the recommendation rules.
type Recommendations struct {
	Actions       []string
	TalkingPoints []string
}

// Recommend applies the rule table to dimension scores. Actions from
// underperforming dimensions come first, highest weight then lowest value,
// followed by data gaps by weight. Output is deterministic and capped at
// maxActions for both lists.
func Recommend(scores []DimensionScore, priority Priority, weights map[Dimension]float64, maxActions int) Recommendations {
	var under, gaps, strong []DimensionScore
	for _, ds := range scores {
		if weights[ds.Dimension] <= 0 {
			continue
		}
		switch BandOf(ds) {
		case BandLow, BandMedium:
			under = append(under, ds)
		case BandUnknown:
			gaps = append(gaps, ds)
		case BandHigh:
			strong = append(strong, ds)
		}
	}

	byImpact := func(list []DimensionScore, valueAsc bool) {
		sort.SliceStable(list, func(i, j int) bool {
			wi, wj := weights[list[i].Dimension], weights[list[j].Dimension]
			if wi != wj {
				return wi > wj
			}
			if list[i].Value != list[j].Value {
				if valueAsc {
					return list[i].Value < list[j].Value
				}
				return list[i].Value > list[j].Value
			}
			return list[i].Dimension < list[j].Dimension
		})
	}
	byImpact(under, true)
	byImpact(gaps, true)
	byImpact(strong, false)

	var rec Recommendations
	if priority == PriorityImmediate {
		rec.Actions = append(rec.Actions, EngageNowAction)
	}
	for _, ds := range append(under, gaps...) {
		if text, ok := recommendationRules[ruleKey{ds.Dimension, BandOf(ds)}]; ok {
			rec.Actions = append(rec.Actions, text)
		}
	}
	for _, ds := range strong {
		if text, ok := recommendationRules[ruleKey{ds.Dimension, BandHigh}]; ok {
			rec.TalkingPoints = append(rec.TalkingPoints, text)
		}
	}

	if maxActions > 0 {
		if len(rec.Actions) > maxActions {
			rec.Actions = rec.Actions[:maxActions]
		}
		if len(rec.TalkingPoints) > maxActions {
			rec.TalkingPoints = rec.TalkingPoints[:maxActions]
		}
	}
	if rec.Actions == nil {
		rec.Actions = []string{}
	}
	if rec.TalkingPoints == nil {
		rec.TalkingPoints = []string{}
	}
	return rec
}
