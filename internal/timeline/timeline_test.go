package timeline_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/storage"
	"github.com/casetrace/casetrace/internal/timeline"
	"github.com/casetrace/casetrace/migrations"
)

func openDB(t *testing.T) *storage.CaseDB {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "case.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	return db
}

func addEvent(t *testing.T, db *storage.CaseDB, start, end *string, desc, layer string) model.Event {
	t.Helper()
	e, err := db.InsertEvent(context.Background(), model.Event{
		Start: start, End: end, Description: desc, Layer: layer,
	})
	require.NoError(t, err)
	return e
}

func ptr(s string) *string { return &s }

func TestGaps(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	e1 := addEvent(t, db, ptr("1987-06-12T17:00:00"), nil, "left work", "")
	e2 := addEvent(t, db, ptr("1987-06-12T17:30:00"), nil, "bought gas", "")
	e3 := addEvent(t, db, ptr("1987-06-14T09:00:00"), nil, "car found at trailhead", "")

	report, err := timeline.Gaps(ctx, db, "", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, report.Gaps, 1)

	gap := report.Gaps[0]
	assert.Equal(t, e2.ID, gap.AfterEventID)
	assert.Equal(t, e3.ID, gap.BeforeEventID)
	assert.InDelta(t, 39.5, gap.Hours, 1e-9)
	assert.NotEqual(t, e1.ID, gap.AfterEventID)
}

func TestGapsEndTimestampShrinksSpan(t *testing.T) {
	db := openDB(t)

	// The first event covers a span; the gap is measured from its end.
	addEvent(t, db, ptr("1987-06-12T09:00:00"), ptr("1987-06-12T17:00:00"), "at work", "")
	addEvent(t, db, ptr("1987-06-12T20:00:00"), nil, "phone call", "")

	report, err := timeline.Gaps(context.Background(), db, "", 4*time.Hour)
	require.NoError(t, err)
	require.Len(t, report.Gaps, 0)

	report, err = timeline.Gaps(context.Background(), db, "", 2*time.Hour)
	require.NoError(t, err)
	require.Len(t, report.Gaps, 1)
	assert.InDelta(t, 3.0, report.Gaps[0].Hours, 1e-9)
}

func TestGapsFiltersByLayer(t *testing.T) {
	db := openDB(t)

	addEvent(t, db, ptr("1987-06-01"), nil, "victim timeline start", "victim")
	addEvent(t, db, ptr("1987-06-20"), nil, "victim timeline end", "victim")
	addEvent(t, db, ptr("1987-06-10"), nil, "investigation opened", "investigation")

	report, err := timeline.Gaps(context.Background(), db, "victim", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "victim", report.Layer)
	require.Len(t, report.Gaps, 1)
	assert.InDelta(t, 19*24, report.Gaps[0].Hours, 1e-9)
}

func TestGapsReportsUndatedAndUnparseable(t *testing.T) {
	db := openDB(t)

	dated := addEvent(t, db, ptr("1987-06-12"), nil, "dated", "")
	undated := addEvent(t, db, nil, nil, "no timestamp", "")
	garbled := addEvent(t, db, ptr("sometime that summer"), nil, "garbled", "")

	report, err := timeline.Gaps(context.Background(), db, "", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, report.Gaps)
	assert.Equal(t, []int64{undated.ID}, report.UndatedEventIDs)
	assert.Equal(t, []int64{garbled.ID}, report.UnparseableEventIDs)
	assert.NotContains(t, report.UnparseableEventIDs, dated.ID)
}

func TestGapsIgnoresUnparseableEnd(t *testing.T) {
	db := openDB(t)

	// A garbled end collapses the span to the start; the event stays on
	// the timeline and is reported once, under the ignored-end list only.
	first := addEvent(t, db, ptr("1987-06-12T09:00:00"), ptr("around dusk"), "at the lake", "")
	second := addEvent(t, db, ptr("1987-06-12T14:00:00"), nil, "seen in town", "")

	report, err := timeline.Gaps(context.Background(), db, "", 4*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID}, report.IgnoredEndEventIDs)
	assert.Empty(t, report.UnparseableEventIDs)

	require.Len(t, report.Gaps, 1)
	assert.Equal(t, first.ID, report.Gaps[0].AfterEventID)
	assert.Equal(t, second.ID, report.Gaps[0].BeforeEventID)
	assert.InDelta(t, 5.0, report.Gaps[0].Hours, 1e-9)
}

func TestGapsEmptyTimeline(t *testing.T) {
	db := openDB(t)
	report, err := timeline.Gaps(context.Background(), db, "", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, report.Gaps)
}
