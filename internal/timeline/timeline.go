// Package timeline analyzes the case event sequence: ordering, layer
// views, and gap detection over parseable timestamps.
package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/storage"
)

// Gap is a stretch of unaccounted time between two consecutive events.
type Gap struct {
	AfterEventID  int64   `json:"after_event_id"`
	BeforeEventID int64   `json:"before_event_id"`
	Start         string  `json:"start"`
	End           string  `json:"end"`
	Hours         float64 `json:"hours"`
}

// Report is the output of a gap analysis.
type Report struct {
	Layer string `json:"layer,omitempty"`
	// Gaps lists spans longer than the requested threshold, in timeline order.
	Gaps []Gap `json:"gaps"`
	// UnparseableEventIDs lists events excluded because their start
	// timestamps did not parse. They are reported, never silently dropped.
	UnparseableEventIDs []int64 `json:"unparseable_event_ids,omitempty"`
	// UndatedEventIDs lists events with no start timestamp at all.
	UndatedEventIDs []int64 `json:"undated_event_ids,omitempty"`
	// IgnoredEndEventIDs lists events whose start parsed but whose end did
	// not; they stay on the timeline with their span collapsed to the start.
	IgnoredEndEventIDs []int64 `json:"ignored_end_event_ids,omitempty"`
}

// Gaps finds spans longer than threshold between consecutive events in one
// layer (or all layers when layer is empty). An event's covered span ends
// at its end timestamp when present, otherwise its start.
func Gaps(ctx context.Context, db *storage.CaseDB, layer string, threshold time.Duration) (Report, error) {
	events, err := db.ListEvents(ctx, layer)
	if err != nil {
		return Report{}, fmt.Errorf("timeline: gaps: %w", err)
	}

	report := Report{Layer: layer}

	type dated struct {
		event model.Event
		start time.Time
		end   time.Time
	}
	var timeline []dated
	for _, e := range events {
		if e.Start == nil {
			report.UndatedEventIDs = append(report.UndatedEventIDs, e.ID)
			continue
		}
		start, ok := model.ParseEventTime(*e.Start)
		if !ok {
			report.UnparseableEventIDs = append(report.UnparseableEventIDs, e.ID)
			continue
		}
		end := start
		if e.End != nil {
			if parsed, ok := model.ParseEventTime(*e.End); ok {
				end = parsed
			} else {
				report.IgnoredEndEventIDs = append(report.IgnoredEndEventIDs, e.ID)
			}
		}
		timeline = append(timeline, dated{event: e, start: start, end: end})
	}

	// ListEvents already orders by timestamp_start; lexical ISO ordering
	// matches chronological ordering for these layouts.
	for i := 1; i < len(timeline); i++ {
		prev, cur := timeline[i-1], timeline[i]
		gap := cur.start.Sub(prev.end)
		if gap >= threshold {
			report.Gaps = append(report.Gaps, Gap{
				AfterEventID:  prev.event.ID,
				BeforeEventID: cur.event.ID,
				Start:         prev.end.Format(time.RFC3339),
				End:           cur.start.Format(time.RFC3339),
				Hours:         gap.Hours(),
			})
		}
	}
	return report, nil
}
