package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

const evidenceColumns = `id, name, evidence_type, description, status,
	source_id, original_testing, contemporary_testing_available,
	resubmission_status, created_at`

func scanEvidence(row interface{ Scan(...any) error }) (model.EvidenceItem, error) {
	var e model.EvidenceItem
	err := row.Scan(&e.ID, &e.Name, &e.EvidenceType, &e.Description, &e.Status,
		&e.SourceID, &e.OriginalTesting, &e.ContemporaryTesting,
		&e.ResubmissionStatus, &e.CreatedAt)
	return e, err
}

// InsertEvidence stores a new evidence item and returns it with its ID.
func (c *CaseDB) InsertEvidence(ctx context.Context, e model.EvidenceItem) (model.EvidenceItem, error) {
	if err := e.Validate(); err != nil {
		return model.EvidenceItem{}, fmt.Errorf("storage: insert evidence: %w", err)
	}
	if e.Status == "" {
		e.Status = model.EvidenceKnown
	}
	if e.ResubmissionStatus == "" {
		e.ResubmissionStatus = model.ResubmissionNotNeeded
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO evidence_items (name, evidence_type, description, status,
		                            source_id, original_testing,
		                            contemporary_testing_available,
		                            resubmission_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		e.Name, e.EvidenceType, e.Description, e.Status, e.SourceID,
		e.OriginalTesting, e.ContemporaryTesting, e.ResubmissionStatus,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return model.EvidenceItem{}, wrapWrite("insert evidence", err)
	}
	return e, nil
}

// GetEvidence fetches one evidence item by ID.
func (c *CaseDB) GetEvidence(ctx context.Context, id int64) (model.EvidenceItem, error) {
	e, err := scanEvidence(c.db.QueryRowContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.EvidenceItem{}, ErrNotFound
	}
	if err != nil {
		return model.EvidenceItem{}, fmt.Errorf("storage: get evidence: %w", err)
	}
	return e, nil
}

// ListEvidence returns evidence items, optionally filtered by status.
func (c *CaseDB) ListEvidence(ctx context.Context, status model.EvidenceStatus) ([]model.EvidenceItem, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence_items`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list evidence: %w", err)
	}
	defer rows.Close()

	var items []model.EvidenceItem
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan evidence: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// UpdateEvidence replaces the mutable fields of an evidence item.
func (c *CaseDB) UpdateEvidence(ctx context.Context, e model.EvidenceItem) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("storage: update evidence: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE evidence_items
		SET name = ?, evidence_type = ?, description = ?, status = ?,
		    original_testing = ?, contemporary_testing_available = ?,
		    resubmission_status = ?
		WHERE id = ?`,
		e.Name, e.EvidenceType, e.Description, e.Status,
		e.OriginalTesting, e.ContemporaryTesting, e.ResubmissionStatus, e.ID)
	if err != nil {
		return wrapWrite("update evidence", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEvidenceResubmission moves an item through the lab-resubmission flow.
func (c *CaseDB) SetEvidenceResubmission(ctx context.Context, id int64, status model.ResubmissionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("storage: set resubmission: %w",
			model.NewValidationError("resubmission_status",
				"must be not_needed, recommended, submitted, or completed"))
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE evidence_items SET resubmission_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return wrapWrite("set resubmission", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResubmissionCandidates returns evidence flagged for modern retesting.
func (c *CaseDB) ResubmissionCandidates(ctx context.Context) ([]model.EvidenceItem, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+evidenceColumns+` FROM evidence_items
		 WHERE resubmission_status IN ('recommended','submitted') ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: resubmission candidates: %w", err)
	}
	defer rows.Close()

	var items []model.EvidenceItem
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan evidence: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
