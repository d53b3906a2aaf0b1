package ach_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrace/casetrace/internal/ach"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/storage"
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

func addHypothesis(t *testing.T, db *storage.CaseDB, desc string) model.Hypothesis {
	t.Helper()
	h, err := db.InsertHypothesis(context.Background(), model.Hypothesis{Description: desc})
	require.NoError(t, err)
	return h
}

func addEvidence(t *testing.T, db *storage.CaseDB, name string) model.EvidenceItem {
	t.Helper()
	e, err := db.InsertEvidence(context.Background(), model.EvidenceItem{
		Name:         name,
		EvidenceType: model.EvidenceCircumstantial,
	})
	require.NoError(t, err)
	return e
}

func setScore(t *testing.T, e *ach.Engine, hyp, ev int64, c model.Consistency, w model.Weight) {
	t.Helper()
	_, err := e.SetScore(context.Background(), model.Score{
		HypothesisID: hyp, EvidenceID: ev, Consistency: c, Weight: w,
	})
	require.NoError(t, err)
}

func TestSetScoreRequiresBothSides(t *testing.T) {
	db := openDB(t)
	engine := ach.NewEngine(db)
	hyp := addHypothesis(t, db, "ran away voluntarily")

	_, err := engine.SetScore(context.Background(), model.Score{
		HypothesisID: hyp.ID, EvidenceID: 999, Consistency: model.Consistent,
	})
	assert.True(t, model.IsValidation(err), "got %v", err)

	_, err = engine.SetScore(context.Background(), model.Score{
		HypothesisID: 999, EvidenceID: 1, Consistency: model.Consistent,
	})
	assert.True(t, model.IsValidation(err), "got %v", err)
}

func TestSummariesRankByWeightedInconsistency(t *testing.T) {
	db := openDB(t)
	engine := ach.NewEngine(db)
	ctx := context.Background()

	h1 := addHypothesis(t, db, "stranger abduction")
	h2 := addHypothesis(t, db, "ran away voluntarily")
	h3 := addHypothesis(t, db, "accident near the river")
	e1 := addEvidence(t, db, "packed bag missing")
	e2 := addEvidence(t, db, "wallet left behind")

	// h1: one low-weight inconsistency (1.0).
	setScore(t, engine, h1.ID, e1.ID, model.Inconsistent, model.WeightLow)
	setScore(t, engine, h1.ID, e2.ID, model.Consistent, model.WeightMedium)
	// h2: one high-weight inconsistency (3.0).
	setScore(t, engine, h2.ID, e1.ID, model.Consistent, model.WeightHigh)
	setScore(t, engine, h2.ID, e2.ID, model.Inconsistent, model.WeightHigh)
	// h3: nothing inconsistent.
	setScore(t, engine, h3.ID, e1.ID, model.Neutral, model.WeightLow)
	setScore(t, engine, h3.ID, e2.ID, model.Consistent, model.WeightLow)

	sums, err := engine.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 3)

	assert.Equal(t, h3.ID, sums[0].HypothesisID)
	assert.Equal(t, 1, sums[0].Rank)
	assert.Equal(t, h1.ID, sums[1].HypothesisID)
	assert.InDelta(t, 1.0, sums[1].WeightedInconsistency, 1e-9)
	assert.Equal(t, h2.ID, sums[2].HypothesisID)
	assert.InDelta(t, 3.0, sums[2].WeightedInconsistency, 1e-9)

	assert.Equal(t, 1, sums[2].ConsistentCount)
	assert.Equal(t, 1, sums[2].InconsistentCount)
	assert.Equal(t, 1, sums[0].NeutralCount)
}

func TestSummariesTieBreakByConsistentCountThenID(t *testing.T) {
	db := openDB(t)
	engine := ach.NewEngine(db)

	h1 := addHypothesis(t, db, "first")
	h2 := addHypothesis(t, db, "second")
	e1 := addEvidence(t, db, "a")
	e2 := addEvidence(t, db, "b")

	// Both hypotheses have zero inconsistency; h2 has more consistent cells.
	setScore(t, engine, h1.ID, e1.ID, model.Neutral, model.WeightLow)
	setScore(t, engine, h2.ID, e1.ID, model.Consistent, model.WeightLow)
	setScore(t, engine, h2.ID, e2.ID, model.Consistent, model.WeightLow)

	sums, err := engine.Summaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h2.ID, sums[0].HypothesisID)
	assert.Equal(t, h1.ID, sums[1].HypothesisID)
}

func TestBuildMatrix(t *testing.T) {
	db := openDB(t)
	engine := ach.NewEngine(db)

	h := addHypothesis(t, db, "stranger abduction")
	e := addEvidence(t, db, "tire casts")
	setScore(t, engine, h.ID, e.ID, model.Inconsistent, model.WeightMedium)

	m, err := engine.BuildMatrix(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Hypotheses, 1)
	require.Len(t, m.Evidence, 1)
	require.Contains(t, m.Cells, h.ID)
	cell, ok := m.Cells[h.ID][e.ID]
	require.True(t, ok)
	assert.Equal(t, model.Inconsistent, cell.Consistency)
	require.Len(t, m.Summaries, 1)
}

func TestDiagnosticityNeedsTwoCells(t *testing.T) {
	db := openDB(t)
	engine := ach.NewEngine(db)

	h := addHypothesis(t, db, "only hypothesis")
	e := addEvidence(t, db, "lonely evidence")
	setScore(t, engine, h.ID, e.ID, model.Consistent, model.WeightHigh)

	diags, err := engine.EvidenceDiagnosticity(context.Background())
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Zero(t, diags[0].Score)
	assert.NotEmpty(t, diags[0].Note)
}

func TestDiagnosticityUniformJudgmentsScoreZero(t *testing.T) {
	db := openDB(t)
	engine := ach.NewEngine(db)

	h1 := addHypothesis(t, db, "h1")
	h2 := addHypothesis(t, db, "h2")
	h3 := addHypothesis(t, db, "h3")
	agreeable := addEvidence(t, db, "consistent with everything")
	divisive := addEvidence(t, db, "splits the field")

	for _, h := range []int64{h1.ID, h2.ID, h3.ID} {
		setScore(t, engine, h, agreeable.ID, model.Consistent, model.WeightHigh)
	}
	setScore(t, engine, h1.ID, divisive.ID, model.Consistent, model.WeightMedium)
	setScore(t, engine, h2.ID, divisive.ID, model.Inconsistent, model.WeightMedium)
	setScore(t, engine, h3.ID, divisive.ID, model.Inconsistent, model.WeightMedium)

	diags, err := engine.EvidenceDiagnosticity(context.Background())
	require.NoError(t, err)
	require.Len(t, diags, 2)

	// Divisive evidence ranks first with a positive score; the agreeable
	// item proves nothing.
	assert.Equal(t, divisive.ID, diags[0].EvidenceID)
	assert.InDelta(t, (1.0/3.0)*2.0, diags[0].Score, 1e-9)
	assert.Equal(t, agreeable.ID, diags[1].EvidenceID)
	assert.Zero(t, diags[1].Score)
}

func TestWeightValue(t *testing.T) {
	assert.Equal(t, 3.0, ach.WeightValue(model.WeightHigh))
	assert.Equal(t, 2.0, ach.WeightValue(model.WeightMedium))
	assert.Equal(t, 1.0, ach.WeightValue(model.WeightLow))
	assert.Zero(t, ach.WeightValue(model.Weight("X")))
}
