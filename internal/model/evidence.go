package model

// EvidenceType classifies a piece of evidence.
type EvidenceType string

const (
	EvidencePhysical       EvidenceType = "physical"
	EvidenceDigital        EvidenceType = "digital"
	EvidenceCircumstantial EvidenceType = "circumstantial"
	EvidenceDocumentary    EvidenceType = "documentary"
	EvidenceTestimonial    EvidenceType = "testimonial"
)

// Valid reports whether the evidence type is known.
func (t EvidenceType) Valid() bool {
	switch t {
	case EvidencePhysical, EvidenceDigital, EvidenceCircumstantial,
		EvidenceDocumentary, EvidenceTestimonial:
		return true
	}
	return false
}

// EvidenceStatus tracks where an item sits in processing.
type EvidenceStatus string

const (
	EvidenceKnown        EvidenceStatus = "known"
	EvidenceProcessed    EvidenceStatus = "processed"
	EvidencePending      EvidenceStatus = "pending"
	EvidenceInconclusive EvidenceStatus = "inconclusive"
	EvidenceMissing      EvidenceStatus = "missing"
)

// Valid reports whether the status is known.
func (s EvidenceStatus) Valid() bool {
	switch s {
	case EvidenceKnown, EvidenceProcessed, EvidencePending,
		EvidenceInconclusive, EvidenceMissing:
		return true
	}
	return false
}

// ResubmissionStatus tracks whether an item should go back to a lab for
// retesting with contemporary methods.
type ResubmissionStatus string

const (
	ResubmissionNotNeeded   ResubmissionStatus = "not_needed"
	ResubmissionRecommended ResubmissionStatus = "recommended"
	ResubmissionSubmitted   ResubmissionStatus = "submitted"
	ResubmissionCompleted   ResubmissionStatus = "completed"
)

// Valid reports whether the status is known.
func (s ResubmissionStatus) Valid() bool {
	switch s {
	case ResubmissionNotNeeded, ResubmissionRecommended,
		ResubmissionSubmitted, ResubmissionCompleted:
		return true
	}
	return false
}

// EvidenceItem is one piece of case evidence.
type EvidenceItem struct {
	ID                    int64              `json:"id"`
	Name                  string             `json:"name"`
	EvidenceType          EvidenceType       `json:"evidence_type"`
	Description           *string            `json:"description,omitempty"`
	Status                EvidenceStatus     `json:"status"`
	SourceID              *int64             `json:"source_id,omitempty"`
	OriginalTesting       *string            `json:"original_testing,omitempty"`
	ContemporaryTesting   *string            `json:"contemporary_testing_available,omitempty"`
	ResubmissionStatus    ResubmissionStatus `json:"resubmission_status"`
	CreatedAt             string             `json:"created_at"`
}

// Validate checks required fields and enum values.
func (e EvidenceItem) Validate() error {
	if e.Name == "" {
		return NewValidationError("name", "must not be empty")
	}
	if !e.EvidenceType.Valid() {
		return NewValidationError("evidence_type",
			"must be physical, digital, circumstantial, documentary, or testimonial")
	}
	if e.Status != "" && !e.Status.Valid() {
		return NewValidationError("status",
			"must be known, processed, pending, inconclusive, or missing")
	}
	if e.ResubmissionStatus != "" && !e.ResubmissionStatus.Valid() {
		return NewValidationError("resubmission_status",
			"must be not_needed, recommended, submitted, or completed")
	}
	return nil
}
