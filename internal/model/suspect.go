package model

// Priority orders suspect pools by investigative urgency.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether the priority is known.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// SuspectPool groups entities that share an investigative theory, for
// example "had access to the building" or "known to the victim".
type SuspectPool struct {
	ID                 int64    `json:"id"`
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	SupportingEvidence *string  `json:"supporting_evidence,omitempty"`
	Priority           Priority `json:"priority"`
	CreatedAt          string   `json:"created_at"`
}

// Validate checks required fields and the priority enum.
func (p SuspectPool) Validate() error {
	if p.Category == "" {
		return NewValidationError("category", "must not be empty")
	}
	if p.Description == "" {
		return NewValidationError("description", "must not be empty")
	}
	if p.Priority != "" && !p.Priority.Valid() {
		return NewValidationError("priority", "must be high, medium, or low")
	}
	return nil
}

// PoolMember is an entity's membership in a suspect pool.
type PoolMember struct {
	ID        int64  `json:"id"`
	PoolID    int64  `json:"pool_id"`
	EntityID  int64  `json:"entity_id"`
	CreatedAt string `json:"created_at"`
}
