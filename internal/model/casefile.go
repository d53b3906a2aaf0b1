package model

// Statement is something a person said on the record. SupersedesID chains
// revised statements to the version they replace.
type Statement struct {
	ID           int64   `json:"id"`
	Speaker      string  `json:"speaker"`
	Content      string  `json:"content"`
	Context      *string `json:"context,omitempty"`
	Date         *string `json:"date,omitempty"`
	SourceID     *int64  `json:"source_id,omitempty"`
	SupersedesID *int64  `json:"supersedes_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// Anomaly is a detail that does not fit the current understanding of the
// case and deserves tracking on its own.
type Anomaly struct {
	ID                  int64   `json:"id"`
	Description         string  `json:"description"`
	SourceID            *int64  `json:"source_id,omitempty"`
	RelatedHypothesisID *int64  `json:"related_hypothesis_id,omitempty"`
	Notes               *string `json:"notes,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

// VictimField is one key/value fact in the victimology profile. Fields are
// unique by name; setting an existing field replaces its value.
type VictimField struct {
	ID         int64  `json:"id"`
	FieldName  string `json:"field_name"`
	FieldValue string `json:"field_value"`
	SourceID   *int64 `json:"source_id,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

// ReviewStatus tracks progress on a case-review checklist item.
type ReviewStatus string

const (
	ReviewLocated       ReviewStatus = "located"
	ReviewReviewed      ReviewStatus = "reviewed"
	ReviewNotAvailable  ReviewStatus = "not_available"
	ReviewNotApplicable ReviewStatus = "not_applicable"
	ReviewNeedsFollowup ReviewStatus = "needs_followup"
)

// Valid reports whether the status is known.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewLocated, ReviewReviewed, ReviewNotAvailable,
		ReviewNotApplicable, ReviewNeedsFollowup:
		return true
	}
	return false
}

// ReviewItem is one entry on the structured case-review checklist.
type ReviewItem struct {
	ID        int64        `json:"id"`
	Category  string       `json:"category"`
	ItemName  string       `json:"item_name"`
	Status    ReviewStatus `json:"status"`
	Notes     *string      `json:"notes,omitempty"`
	UpdatedAt string       `json:"updated_at"`
}
