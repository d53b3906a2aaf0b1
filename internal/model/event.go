package model

import "time"

// Event is a timeline entry. Timestamps are ISO-8601 strings; End is nil
// for point events.
type Event struct {
	ID          int64      `json:"id"`
	Start       *string    `json:"timestamp_start,omitempty"`
	End         *string    `json:"timestamp_end,omitempty"`
	Description string     `json:"description"`
	Confidence  Confidence `json:"confidence"`
	SourceID    *int64     `json:"source_id,omitempty"`
	Layer       string     `json:"layer"`
	CreatedAt   string     `json:"created_at"`
}

// eventTimeLayouts are the timestamp shapes accepted on events, most
// precise first.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseEventTime parses an event timestamp string against the accepted
// ISO-8601 layouts.
func ParseEventTime(s string) (time.Time, bool) {
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Validate checks required fields and that start precedes end when both
// timestamps are present and parseable.
func (e Event) Validate() error {
	if e.Description == "" {
		return NewValidationError("description", "must not be empty")
	}
	if e.Confidence != "" && !e.Confidence.Valid() {
		return NewValidationError("confidence", "must be high, medium, or low")
	}
	if e.Start != nil && e.End != nil {
		start, okStart := ParseEventTime(*e.Start)
		end, okEnd := ParseEventTime(*e.End)
		if okStart && okEnd && end.Before(start) {
			return NewValidationError("timestamp_end",
				"must not precede timestamp_start")
		}
	}
	return nil
}
