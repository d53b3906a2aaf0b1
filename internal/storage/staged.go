package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

const stagedColumns = `id, analysis_id, source_id, item_type, item_data,
	status, created_at`

func scanStaged(row interface{ Scan(...any) error }) (model.StagedItem, error) {
	var it model.StagedItem
	var data string
	err := row.Scan(&it.ID, &it.AnalysisID, &it.SourceID, &it.ItemType,
		&data, &it.Status, &it.CreatedAt)
	it.ItemData = []byte(data)
	return it, err
}

// InsertStagedItems bulk-inserts extraction proposals in one transaction.
func (c *CaseDB) InsertStagedItems(ctx context.Context, items []model.StagedItem) ([]model.StagedItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ai_staged_items (analysis_id, source_id, item_type, item_data)
			VALUES (?, ?, ?, ?)
			RETURNING id, status, created_at`)
		if err != nil {
			return fmt.Errorf("storage: prepare staged insert: %w", err)
		}
		defer stmt.Close()

		for i := range items {
			it := &items[i]
			if !it.ItemType.Valid() {
				return fmt.Errorf("storage: insert staged item: %w",
					model.NewValidationError("item_type",
						"must be entity, evidence, event, or relationship"))
			}
			if err := stmt.QueryRowContext(ctx,
				it.AnalysisID, it.SourceID, it.ItemType, string(it.ItemData),
			).Scan(&it.ID, &it.Status, &it.CreatedAt); err != nil {
				return wrapWrite("insert staged item", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetStagedItem fetches one staged item by ID.
func (c *CaseDB) GetStagedItem(ctx context.Context, id int64) (model.StagedItem, error) {
	it, err := scanStaged(c.db.QueryRowContext(ctx,
		`SELECT `+stagedColumns+` FROM ai_staged_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.StagedItem{}, ErrNotFound
	}
	if err != nil {
		return model.StagedItem{}, fmt.Errorf("storage: get staged item: %w", err)
	}
	return it, nil
}

// ListStagedItems returns staged items, optionally filtered by status.
func (c *CaseDB) ListStagedItems(ctx context.Context, status model.StagedStatus) ([]model.StagedItem, error) {
	query := `SELECT ` + stagedColumns + ` FROM ai_staged_items`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list staged items: %w", err)
	}
	defer rows.Close()

	var items []model.StagedItem
	for rows.Next() {
		it, err := scanStaged(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan staged item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkStagedItem moves a pending item to accepted or rejected. Items that
// have already been reviewed are left alone; the bool reports whether the
// transition happened.
func (c *CaseDB) MarkStagedItem(ctx context.Context, id int64, status model.StagedStatus) (bool, error) {
	if status != model.StagedAccepted && status != model.StagedRejected {
		return false, fmt.Errorf("storage: mark staged item: %w",
			model.NewValidationError("status", "must be accepted or rejected"))
	}
	res, err := c.db.ExecContext(ctx,
		`UPDATE ai_staged_items SET status = ? WHERE id = ? AND status = 'pending'`,
		status, id)
	if err != nil {
		return false, wrapWrite("mark staged item", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PendingStagedCount returns how many items await review.
func (c *CaseDB) PendingStagedCount(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_staged_items WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: pending staged count: %w", err)
	}
	return n, nil
}
