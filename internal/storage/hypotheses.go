package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

const hypothesisColumns = `id, description, tier, supporting_evidence,
	contradicting_evidence, open_questions, key_assumptions,
	consequence_if_true, created_at, updated_at`

func scanHypothesis(row interface{ Scan(...any) error }) (model.Hypothesis, error) {
	var h model.Hypothesis
	err := row.Scan(&h.ID, &h.Description, &h.Tier, &h.SupportingEvidence,
		&h.ContradictingEvidence, &h.OpenQuestions, &h.KeyAssumptions,
		&h.ConsequenceIfTrue, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

// InsertHypothesis stores a new hypothesis and returns it with its ID.
func (c *CaseDB) InsertHypothesis(ctx context.Context, h model.Hypothesis) (model.Hypothesis, error) {
	if err := h.Validate(); err != nil {
		return model.Hypothesis{}, fmt.Errorf("storage: insert hypothesis: %w", err)
	}
	if h.Tier == "" {
		h.Tier = model.TierPlausible
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO hypotheses (description, tier, supporting_evidence,
		                        contradicting_evidence, open_questions,
		                        key_assumptions, consequence_if_true)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`,
		h.Description, h.Tier, h.SupportingEvidence, h.ContradictingEvidence,
		h.OpenQuestions, h.KeyAssumptions, h.ConsequenceIfTrue,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return model.Hypothesis{}, wrapWrite("insert hypothesis", err)
	}
	return h, nil
}

// GetHypothesis fetches one hypothesis by ID.
func (c *CaseDB) GetHypothesis(ctx context.Context, id int64) (model.Hypothesis, error) {
	h, err := scanHypothesis(c.db.QueryRowContext(ctx,
		`SELECT `+hypothesisColumns+` FROM hypotheses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Hypothesis{}, ErrNotFound
	}
	if err != nil {
		return model.Hypothesis{}, fmt.Errorf("storage: get hypothesis: %w", err)
	}
	return h, nil
}

// ListHypotheses returns all hypotheses ordered by tier then ID.
func (c *CaseDB) ListHypotheses(ctx context.Context) ([]model.Hypothesis, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+hypothesisColumns+` FROM hypotheses
		ORDER BY CASE tier
			WHEN 'most_probable' THEN 0
			WHEN 'plausible' THEN 1
			WHEN 'less_likely' THEN 2
			ELSE 3
		END, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list hypotheses: %w", err)
	}
	defer rows.Close()

	var hyps []model.Hypothesis
	for rows.Next() {
		h, err := scanHypothesis(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan hypothesis: %w", err)
		}
		hyps = append(hyps, h)
	}
	return hyps, rows.Err()
}

// UpdateHypothesis replaces the mutable fields and bumps updated_at.
func (c *CaseDB) UpdateHypothesis(ctx context.Context, h model.Hypothesis) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("storage: update hypothesis: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE hypotheses
		SET description = ?, tier = ?, supporting_evidence = ?,
		    contradicting_evidence = ?, open_questions = ?,
		    key_assumptions = ?, consequence_if_true = ?,
		    updated_at = datetime('now')
		WHERE id = ?`,
		h.Description, h.Tier, h.SupportingEvidence, h.ContradictingEvidence,
		h.OpenQuestions, h.KeyAssumptions, h.ConsequenceIfTrue, h.ID)
	if err != nil {
		return wrapWrite("update hypothesis", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetHypothesisTier moves a hypothesis between probability tiers.
func (c *CaseDB) SetHypothesisTier(ctx context.Context, id int64, tier model.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("storage: set tier: %w",
			model.NewValidationError("tier",
				"must be most_probable, plausible, less_likely, or unlikely"))
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE hypotheses SET tier = ?, updated_at = datetime('now') WHERE id = ?`,
		tier, id)
	if err != nil {
		return wrapWrite("set tier", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertIndicator records a forward-looking indicator for a hypothesis.
func (c *CaseDB) InsertIndicator(ctx context.Context, ind model.Indicator) (model.Indicator, error) {
	if ind.Description == "" {
		return model.Indicator{}, fmt.Errorf("storage: insert indicator: %w",
			model.NewValidationError("description", "must not be empty"))
	}
	if ind.Status == "" {
		ind.Status = model.IndicatorPending
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO indicators (hypothesis_id, description, expected_timeframe,
		                        status, notes)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		ind.HypothesisID, ind.Description, ind.ExpectedTimeframe,
		ind.Status, ind.Notes,
	).Scan(&ind.ID, &ind.CreatedAt)
	if err != nil {
		return model.Indicator{}, wrapWrite("insert indicator", err)
	}
	return ind, nil
}

// ListIndicators returns indicators, optionally scoped to one hypothesis.
func (c *CaseDB) ListIndicators(ctx context.Context, hypothesisID int64) ([]model.Indicator, error) {
	query := `SELECT id, hypothesis_id, description, expected_timeframe,
	                 status, observed_at, notes, created_at
	          FROM indicators`
	var args []any
	if hypothesisID > 0 {
		query += ` WHERE hypothesis_id = ?`
		args = append(args, hypothesisID)
	}
	query += ` ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list indicators: %w", err)
	}
	defer rows.Close()

	var inds []model.Indicator
	for rows.Next() {
		var ind model.Indicator
		if err := rows.Scan(&ind.ID, &ind.HypothesisID, &ind.Description,
			&ind.ExpectedTimeframe, &ind.Status, &ind.ObservedAt,
			&ind.Notes, &ind.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan indicator: %w", err)
		}
		inds = append(inds, ind)
	}
	return inds, rows.Err()
}

// SetIndicatorStatus marks an indicator observed or not observed, stamping
// observed_at on the observed transition.
func (c *CaseDB) SetIndicatorStatus(ctx context.Context, id int64, status model.IndicatorStatus, notes *string) error {
	if !status.Valid() {
		return fmt.Errorf("storage: set indicator status: %w",
			model.NewValidationError("status", "must be pending, observed, or not_observed"))
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE indicators
		SET status = ?,
		    observed_at = CASE WHEN ? = 'observed' THEN datetime('now') ELSE observed_at END,
		    notes = COALESCE(?, notes)
		WHERE id = ?`,
		status, status, notes, id)
	if err != nil {
		return wrapWrite("set indicator status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
