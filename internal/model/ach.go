package model

// Consistency is how a piece of evidence bears on a hypothesis in an
// analysis-of-competing-hypotheses matrix.
type Consistency string

const (
	Consistent   Consistency = "C"
	Inconsistent Consistency = "I"
	Neutral      Consistency = "N"
)

// Valid reports whether the consistency code is known.
func (c Consistency) Valid() bool {
	switch c {
	case Consistent, Inconsistent, Neutral:
		return true
	}
	return false
}

// Weight is the diagnostic weight of a matrix cell.
type Weight string

const (
	WeightHigh   Weight = "H"
	WeightMedium Weight = "M"
	WeightLow    Weight = "L"
)

// Valid reports whether the weight code is known.
func (w Weight) Valid() bool {
	switch w {
	case WeightHigh, WeightMedium, WeightLow:
		return true
	}
	return false
}

// Score is one cell of the hypothesis/evidence matrix.
type Score struct {
	ID           int64       `json:"id"`
	HypothesisID int64       `json:"hypothesis_id"`
	EvidenceID   int64       `json:"evidence_id"`
	Consistency  Consistency `json:"consistency"`
	Weight       Weight      `json:"diagnostic_weight"`
	Notes        *string     `json:"notes,omitempty"`
	CreatedAt    string      `json:"created_at"`
}

// Validate checks enum values.
func (s Score) Validate() error {
	if !s.Consistency.Valid() {
		return NewValidationError("consistency", "must be C, I, or N")
	}
	if s.Weight != "" && !s.Weight.Valid() {
		return NewValidationError("diagnostic_weight", "must be H, M, or L")
	}
	return nil
}
