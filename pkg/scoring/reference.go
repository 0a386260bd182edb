package scoring

import "time"

// ReferenceContext is the non-signal data a scoring run is evaluated against:
// known stakeholders, qualification facts and the competitive landscape.
// Every field is optional; missing data yields zero-confidence dimensions.
type ReferenceContext struct {
	Stakeholders []Stakeholder `json:"stakeholders,omitempty"`
	Budget       *Budget       `json:"budget,omitempty"`
	Needs        []Need        `json:"needs,omitempty"`
	Timeline     *Timeline     `json:"timeline,omitempty"`

	// Features and PriceIndex describe our offering. PriceIndex is relative
	// (1.0 = market parity); zero means unknown.
	Features    []string     `json:"features,omitempty"`
	PriceIndex  float64      `json:"price_index,omitempty"`
	Competitors []Competitor `json:"competitors,omitempty"`
}

// StakeholderRole classifies a person's part in the buying decision.
type StakeholderRole string

const (
	RoleDecisionMaker StakeholderRole = "decision_maker"
	RoleEconomicBuyer StakeholderRole = "economic_buyer"
	RoleChampion      StakeholderRole = "champion"
	RoleInfluencer    StakeholderRole = "influencer"
	RoleUser          StakeholderRole = "user"
	RoleBlocker       StakeholderRole = "blocker"
)

// Stakeholder is a known contact at the entity.
type Stakeholder struct {
	ID                string          `json:"id"`
	Name              string          `json:"name,omitempty"`
	Title             string          `json:"title,omitempty"`
	Role              StakeholderRole `json:"role"`
	DecisionAuthority bool            `json:"decision_authority"`
}

// BudgetStatus is the qualification state of the buyer's budget.
type BudgetStatus string

const (
	BudgetConfirmed BudgetStatus = "confirmed"
	BudgetAllocated BudgetStatus = "allocated"
	BudgetEstimated BudgetStatus = "estimated"
	BudgetNone      BudgetStatus = "none"
	BudgetUnknown   BudgetStatus = "unknown"
)

// Budget captures what is known about available spend.
type Budget struct {
	Status BudgetStatus `json:"status"`
	Amount float64      `json:"amount,omitempty"`
}

// Severity ranks how pressing a need is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Need is a business problem the entity has.
type Need struct {
	Description  string   `json:"description"`
	Severity     Severity `json:"severity"`
	Acknowledged bool     `json:"acknowledged"` // confirmed by the buyer
}

// Timeline captures the buyer's decision date.
type Timeline struct {
	TargetDate time.Time `json:"target_date"`
}

// Competitor is an alternative the entity is evaluating.
type Competitor struct {
	Name       string   `json:"name"`
	Features   []string `json:"features,omitempty"`
	PriceIndex float64  `json:"price_index,omitempty"` // relative, zero means unknown
}
