package storage

import (
	"context"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

// InsertRelationship stores a typed edge between two entities.
func (c *CaseDB) InsertRelationship(ctx context.Context, r model.Relationship) (model.Relationship, error) {
	if r.RelationshipType == "" {
		return model.Relationship{}, fmt.Errorf("storage: insert relationship: %w",
			model.NewValidationError("relationship_type", "must not be empty"))
	}
	if r.EntityAID == r.EntityBID {
		return model.Relationship{}, fmt.Errorf("storage: insert relationship: %w",
			model.NewValidationError("entity_b_id", "entity cannot relate to itself"))
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO relationships (entity_a_id, entity_b_id, relationship_type,
		                           description, strength, confirmed,
		                           start_date, end_date, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		r.EntityAID, r.EntityBID, r.RelationshipType, r.Description,
		r.Strength, r.Confirmed, r.StartDate, r.EndDate, r.SourceID,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return model.Relationship{}, wrapWrite("insert relationship", err)
	}
	return r, nil
}

// ListRelationships returns all edges, optionally touching one entity.
func (c *CaseDB) ListRelationships(ctx context.Context, entityID int64) ([]model.Relationship, error) {
	query := `SELECT id, entity_a_id, entity_b_id, relationship_type,
	                 description, strength, confirmed, start_date, end_date,
	                 source_id, created_at
	          FROM relationships`
	var args []any
	if entityID > 0 {
		query += ` WHERE entity_a_id = ? OR entity_b_id = ?`
		args = append(args, entityID, entityID)
	}
	query += ` ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list relationships: %w", err)
	}
	defer rows.Close()

	var rels []model.Relationship
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.ID, &r.EntityAID, &r.EntityBID, &r.RelationshipType,
			&r.Description, &r.Strength, &r.Confirmed, &r.StartDate, &r.EndDate,
			&r.SourceID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// ConfirmRelationship marks an edge as analyst-confirmed.
func (c *CaseDB) ConfirmRelationship(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE relationships SET confirmed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: confirm relationship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRelationship removes an edge.
func (c *CaseDB) DeleteRelationship(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete relationship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
