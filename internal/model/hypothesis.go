package model

// Tier is the probability band a hypothesis currently occupies.
type Tier string

const (
	TierMostProbable Tier = "most_probable"
	TierPlausible    Tier = "plausible"
	TierLessLikely   Tier = "less_likely"
	TierUnlikely     Tier = "unlikely"
)

// Valid reports whether the tier is known.
func (t Tier) Valid() bool {
	switch t {
	case TierMostProbable, TierPlausible, TierLessLikely, TierUnlikely:
		return true
	}
	return false
}

// TierRank orders tiers from most to least probable for sorting.
func TierRank(t Tier) int {
	switch t {
	case TierMostProbable:
		return 0
	case TierPlausible:
		return 1
	case TierLessLikely:
		return 2
	case TierUnlikely:
		return 3
	default:
		return 4
	}
}

// Hypothesis is one competing explanation under analysis.
type Hypothesis struct {
	ID                    int64   `json:"id"`
	Description           string  `json:"description"`
	Tier                  Tier    `json:"tier"`
	SupportingEvidence    *string `json:"supporting_evidence,omitempty"`
	ContradictingEvidence *string `json:"contradicting_evidence,omitempty"`
	OpenQuestions         *string `json:"open_questions,omitempty"`
	KeyAssumptions        *string `json:"key_assumptions,omitempty"`
	ConsequenceIfTrue     *string `json:"consequence_if_true,omitempty"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

// Validate checks required fields and the tier enum.
func (h Hypothesis) Validate() error {
	if h.Description == "" {
		return NewValidationError("description", "must not be empty")
	}
	if h.Tier != "" && !h.Tier.Valid() {
		return NewValidationError("tier",
			"must be most_probable, plausible, less_likely, or unlikely")
	}
	return nil
}

// IndicatorStatus tracks whether a forward-looking indicator has been seen.
type IndicatorStatus string

const (
	IndicatorPending     IndicatorStatus = "pending"
	IndicatorObserved    IndicatorStatus = "observed"
	IndicatorNotObserved IndicatorStatus = "not_observed"
)

// Valid reports whether the status is known.
func (s IndicatorStatus) Valid() bool {
	switch s {
	case IndicatorPending, IndicatorObserved, IndicatorNotObserved:
		return true
	}
	return false
}

// Indicator is a future observable that would strengthen or weaken a
// hypothesis if it occurs.
type Indicator struct {
	ID                int64           `json:"id"`
	HypothesisID      int64           `json:"hypothesis_id"`
	Description       string          `json:"description"`
	ExpectedTimeframe *string         `json:"expected_timeframe,omitempty"`
	Status            IndicatorStatus `json:"status"`
	ObservedAt        *string         `json:"observed_at,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	CreatedAt         string          `json:"created_at"`
}
