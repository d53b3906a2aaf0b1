package model

// Confidence is the investigator's confidence in a record.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether the confidence is a known level.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Entity is a named actor, place, or object in the case.
//
// CanonicalID implements alias merging: an entity with CanonicalID set is an
// alias of the canonical entity it points to. Resolution is single-hop: a
// canonical entity never has CanonicalID set, and an entity that others
// point to can never become an alias itself.
type Entity struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	EntityType  string     `json:"entity_type"`
	Description *string    `json:"description,omitempty"`
	SourceID    *int64     `json:"source_id,omitempty"`
	CanonicalID *int64     `json:"canonical_id,omitempty"`
	Confidence  Confidence `json:"confidence"`
	CreatedAt   string     `json:"created_at"`
}

// Validate checks required fields.
func (e Entity) Validate() error {
	if e.Name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if e.EntityType == "" {
		return NewValidationError("entity_type", "must not be empty")
	}
	if e.Confidence != "" && !e.Confidence.Valid() {
		return NewValidationError("confidence", "must be high, medium, or low")
	}
	return nil
}

// Relationship is a typed edge between two entities.
type Relationship struct {
	ID               int64    `json:"id"`
	EntityAID        int64    `json:"entity_a_id"`
	EntityBID        int64    `json:"entity_b_id"`
	RelationshipType string   `json:"relationship_type"`
	Description      *string  `json:"description,omitempty"`
	Strength         *float64 `json:"strength,omitempty"`
	Confirmed        bool     `json:"confirmed"`
	StartDate        *string  `json:"start_date,omitempty"`
	EndDate          *string  `json:"end_date,omitempty"`
	SourceID         *int64   `json:"source_id,omitempty"`
	CreatedAt        string   `json:"created_at"`
}
