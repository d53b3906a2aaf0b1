package storage

import (
	"context"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

// InsertStatement records something a person said.
func (c *CaseDB) InsertStatement(ctx context.Context, s model.Statement) (model.Statement, error) {
	if s.Speaker == "" {
		return model.Statement{}, fmt.Errorf("storage: insert statement: %w",
			model.NewValidationError("speaker", "must not be empty"))
	}
	if s.Content == "" {
		return model.Statement{}, fmt.Errorf("storage: insert statement: %w",
			model.NewValidationError("content", "must not be empty"))
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO statements (speaker, content, context, date, source_id, supersedes_id)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		s.Speaker, s.Content, s.Context, s.Date, s.SourceID, s.SupersedesID,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return model.Statement{}, wrapWrite("insert statement", err)
	}
	return s, nil
}

// ListStatements returns statements, optionally filtered by speaker.
func (c *CaseDB) ListStatements(ctx context.Context, speaker string) ([]model.Statement, error) {
	query := `SELECT id, speaker, content, context, date, source_id,
	                 supersedes_id, created_at
	          FROM statements`
	var args []any
	if speaker != "" {
		query += ` WHERE speaker = ?`
		args = append(args, speaker)
	}
	query += ` ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list statements: %w", err)
	}
	defer rows.Close()

	var stmts []model.Statement
	for rows.Next() {
		var s model.Statement
		if err := rows.Scan(&s.ID, &s.Speaker, &s.Content, &s.Context,
			&s.Date, &s.SourceID, &s.SupersedesID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan statement: %w", err)
		}
		stmts = append(stmts, s)
	}
	return stmts, rows.Err()
}

// InsertAnomaly records a detail that does not fit current understanding.
func (c *CaseDB) InsertAnomaly(ctx context.Context, a model.Anomaly) (model.Anomaly, error) {
	if a.Description == "" {
		return model.Anomaly{}, fmt.Errorf("storage: insert anomaly: %w",
			model.NewValidationError("description", "must not be empty"))
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO anomalies (description, source_id, related_hypothesis_id, notes)
		VALUES (?, ?, ?, ?)
		RETURNING id, created_at`,
		a.Description, a.SourceID, a.RelatedHypothesisID, a.Notes,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return model.Anomaly{}, wrapWrite("insert anomaly", err)
	}
	return a, nil
}

// ListAnomalies returns all recorded anomalies.
func (c *CaseDB) ListAnomalies(ctx context.Context) ([]model.Anomaly, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, description, source_id, related_hypothesis_id, notes, created_at
		FROM anomalies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		if err := rows.Scan(&a.ID, &a.Description, &a.SourceID,
			&a.RelatedHypothesisID, &a.Notes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan anomaly: %w", err)
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// SetVictimField writes one victimology field, replacing any existing value
// for the same field name.
func (c *CaseDB) SetVictimField(ctx context.Context, f model.VictimField) (model.VictimField, error) {
	if f.FieldName == "" {
		return model.VictimField{}, fmt.Errorf("storage: set victim field: %w",
			model.NewValidationError("field_name", "must not be empty"))
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO victim_profile (field_name, field_value, source_id)
		VALUES (?, ?, ?)
		ON CONFLICT(field_name) DO UPDATE SET
			field_value = excluded.field_value,
			source_id = excluded.source_id,
			updated_at = datetime('now')
		RETURNING id, updated_at`,
		f.FieldName, f.FieldValue, f.SourceID,
	).Scan(&f.ID, &f.UpdatedAt)
	if err != nil {
		return model.VictimField{}, wrapWrite("set victim field", err)
	}
	return f, nil
}

// VictimProfile returns all victimology fields ordered by name.
func (c *CaseDB) VictimProfile(ctx context.Context) ([]model.VictimField, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, field_name, field_value, source_id, updated_at
		FROM victim_profile ORDER BY field_name`)
	if err != nil {
		return nil, fmt.Errorf("storage: victim profile: %w", err)
	}
	defer rows.Close()

	var fields []model.VictimField
	for rows.Next() {
		var f model.VictimField
		if err := rows.Scan(&f.ID, &f.FieldName, &f.FieldValue,
			&f.SourceID, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan victim field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// InsertReviewItem adds one case-review checklist entry.
func (c *CaseDB) InsertReviewItem(ctx context.Context, r model.ReviewItem) (model.ReviewItem, error) {
	if r.Category == "" || r.ItemName == "" {
		return model.ReviewItem{}, fmt.Errorf("storage: insert review item: %w",
			model.NewValidationError("item_name", "category and item_name must not be empty"))
	}
	if r.Status == "" {
		r.Status = model.ReviewNotAvailable
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO case_review_items (category, item_name, status, notes)
		VALUES (?, ?, ?, ?)
		RETURNING id, updated_at`,
		r.Category, r.ItemName, r.Status, r.Notes,
	).Scan(&r.ID, &r.UpdatedAt)
	if err != nil {
		return model.ReviewItem{}, wrapWrite("insert review item", err)
	}
	return r, nil
}

// SetReviewItemStatus updates one checklist entry.
func (c *CaseDB) SetReviewItemStatus(ctx context.Context, id int64, status model.ReviewStatus, notes *string) error {
	if !status.Valid() {
		return fmt.Errorf("storage: set review status: %w",
			model.NewValidationError("status",
				"must be located, reviewed, not_available, not_applicable, or needs_followup"))
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE case_review_items
		SET status = ?, notes = COALESCE(?, notes), updated_at = datetime('now')
		WHERE id = ?`, status, notes, id)
	if err != nil {
		return wrapWrite("set review status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReviewItems returns the checklist grouped by category.
func (c *CaseDB) ListReviewItems(ctx context.Context) ([]model.ReviewItem, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, category, item_name, status, notes, updated_at
		FROM case_review_items ORDER BY category, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list review items: %w", err)
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		var r model.ReviewItem
		if err := rows.Scan(&r.ID, &r.Category, &r.ItemName, &r.Status,
			&r.Notes, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan review item: %w", err)
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
