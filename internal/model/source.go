package model

import "fmt"

// ReliabilityGrade is the Admiralty/NATO source-reliability letter.
// A is most reliable, F is unrated/unreliable.
type ReliabilityGrade string

const (
	ReliabilityA ReliabilityGrade = "A"
	ReliabilityB ReliabilityGrade = "B"
	ReliabilityC ReliabilityGrade = "C"
	ReliabilityD ReliabilityGrade = "D"
	ReliabilityE ReliabilityGrade = "E"
	ReliabilityF ReliabilityGrade = "F"
)

// Valid reports whether the grade is one of A..F.
func (g ReliabilityGrade) Valid() bool {
	switch g {
	case ReliabilityA, ReliabilityB, ReliabilityC, ReliabilityD, ReliabilityE, ReliabilityF:
		return true
	}
	return false
}

// AccuracyGrade is the Admiralty/NATO information-accuracy digit.
// 1 is confirmed, 6 is cannot-be-judged.
type AccuracyGrade string

const (
	Accuracy1 AccuracyGrade = "1"
	Accuracy2 AccuracyGrade = "2"
	Accuracy3 AccuracyGrade = "3"
	Accuracy4 AccuracyGrade = "4"
	Accuracy5 AccuracyGrade = "5"
	Accuracy6 AccuracyGrade = "6"
)

// Valid reports whether the grade is one of 1..6.
func (g AccuracyGrade) Valid() bool {
	switch g {
	case Accuracy1, Accuracy2, Accuracy3, Accuracy4, Accuracy5, Accuracy6:
		return true
	}
	return false
}

// Well-known source types. The column is free text (imports invent their
// own labels), but manual entry sticks to these.
const (
	SourceTypeNews     = "news"
	SourceTypeOfficial = "official"
	SourceTypeSocial   = "social"
	SourceTypeDocument = "document"
	SourceTypeAcademic = "academic"
	SourceTypeWitness  = "witness"
	SourceTypeManual   = "manual"
)

// Source is one ingested piece of information: a scraped page, a pasted
// document, or a manual note. Reliability fields follow the Admiralty
// scheme; ReliabilityScore is the numeric composite.
type Source struct {
	ID                  int64             `json:"id"`
	URL                 *string           `json:"url,omitempty"`
	RawText             string            `json:"raw_text"`
	SourceType          string            `json:"source_type"`
	ReliabilityScore    float64           `json:"reliability_score"`
	SourceReliability   *ReliabilityGrade `json:"source_reliability,omitempty"`
	InformationAccuracy *AccuracyGrade    `json:"information_accuracy,omitempty"`
	AccessAssessment    *string           `json:"access_assessment,omitempty"`
	BiasAssessment      *string           `json:"bias_assessment,omitempty"`
	IngestedAt          string            `json:"ingested_at"`
	Notes               *string           `json:"notes,omitempty"`
}

// Validate checks field-level rules the schema cannot express cleanly.
func (s Source) Validate() error {
	if s.RawText == "" {
		return NewValidationError("raw_text", "must not be empty")
	}
	if s.SourceType == "" {
		return NewValidationError("source_type", "must not be empty")
	}
	if s.ReliabilityScore < 0 || s.ReliabilityScore > 1 {
		return NewValidationError("reliability_score",
			fmt.Sprintf("must be in [0,1], got %v", s.ReliabilityScore))
	}
	if s.SourceReliability != nil && !s.SourceReliability.Valid() {
		return NewValidationError("source_reliability",
			fmt.Sprintf("must be A..F, got %q", *s.SourceReliability))
	}
	if s.InformationAccuracy != nil && !s.InformationAccuracy.Valid() {
		return NewValidationError("information_accuracy",
			fmt.Sprintf("must be 1..6, got %q", *s.InformationAccuracy))
	}
	return nil
}
