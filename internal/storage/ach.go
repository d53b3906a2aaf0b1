package storage

import (
	"context"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

// UpsertScore writes one cell of the hypothesis/evidence matrix. Scoring
// the same cell again replaces the previous value in place, keeping the
// one-score-per-cell invariant without a read-modify-write race.
func (c *CaseDB) UpsertScore(ctx context.Context, s model.Score) (model.Score, error) {
	if err := s.Validate(); err != nil {
		return model.Score{}, fmt.Errorf("storage: upsert score: %w", err)
	}
	if s.Weight == "" {
		s.Weight = model.WeightMedium
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO hypothesis_evidence_scores
			(hypothesis_id, evidence_id, consistency, diagnostic_weight, notes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hypothesis_id, evidence_id) DO UPDATE SET
			consistency = excluded.consistency,
			diagnostic_weight = excluded.diagnostic_weight,
			notes = excluded.notes
		RETURNING id, created_at`,
		s.HypothesisID, s.EvidenceID, s.Consistency, s.Weight, s.Notes,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return model.Score{}, wrapWrite("upsert score", err)
	}
	return s, nil
}

// ScoresByHypothesis returns all matrix cells for one hypothesis.
func (c *CaseDB) ScoresByHypothesis(ctx context.Context, hypothesisID int64) ([]model.Score, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, hypothesis_id, evidence_id, consistency, diagnostic_weight,
		       notes, created_at
		FROM hypothesis_evidence_scores
		WHERE hypothesis_id = ?
		ORDER BY evidence_id`, hypothesisID)
	if err != nil {
		return nil, fmt.Errorf("storage: scores by hypothesis: %w", err)
	}
	defer rows.Close()
	return collectScores(rows)
}

// ScoresByEvidence returns all matrix cells for one evidence item.
func (c *CaseDB) ScoresByEvidence(ctx context.Context, evidenceID int64) ([]model.Score, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, hypothesis_id, evidence_id, consistency, diagnostic_weight,
		       notes, created_at
		FROM hypothesis_evidence_scores
		WHERE evidence_id = ?
		ORDER BY hypothesis_id`, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("storage: scores by evidence: %w", err)
	}
	defer rows.Close()
	return collectScores(rows)
}

// AllScores returns every matrix cell.
func (c *CaseDB) AllScores(ctx context.Context) ([]model.Score, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, hypothesis_id, evidence_id, consistency, diagnostic_weight,
		       notes, created_at
		FROM hypothesis_evidence_scores
		ORDER BY hypothesis_id, evidence_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: all scores: %w", err)
	}
	defer rows.Close()
	return collectScores(rows)
}

type rowScanner interface {
	Next() bool
	Scan(...any) error
	Err() error
}

func collectScores(rows rowScanner) ([]model.Score, error) {
	var scores []model.Score
	for rows.Next() {
		var s model.Score
		if err := rows.Scan(&s.ID, &s.HypothesisID, &s.EvidenceID,
			&s.Consistency, &s.Weight, &s.Notes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
