package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

// InsertSuspectPool stores a new suspect pool and returns it with its ID.
func (c *CaseDB) InsertSuspectPool(ctx context.Context, p model.SuspectPool) (model.SuspectPool, error) {
	if err := p.Validate(); err != nil {
		return model.SuspectPool{}, fmt.Errorf("storage: insert suspect pool: %w", err)
	}
	if p.Priority == "" {
		p.Priority = model.PriorityMedium
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO suspect_pools (category, description, supporting_evidence, priority)
		VALUES (?, ?, ?, ?)
		RETURNING id, created_at`,
		p.Category, p.Description, p.SupportingEvidence, p.Priority,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return model.SuspectPool{}, wrapWrite("insert suspect pool", err)
	}
	return p, nil
}

// GetSuspectPool fetches one pool by ID.
func (c *CaseDB) GetSuspectPool(ctx context.Context, id int64) (model.SuspectPool, error) {
	var p model.SuspectPool
	err := c.db.QueryRowContext(ctx, `
		SELECT id, category, description, supporting_evidence, priority, created_at
		FROM suspect_pools WHERE id = ?`, id,
	).Scan(&p.ID, &p.Category, &p.Description, &p.SupportingEvidence,
		&p.Priority, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SuspectPool{}, ErrNotFound
	}
	if err != nil {
		return model.SuspectPool{}, fmt.Errorf("storage: get suspect pool: %w", err)
	}
	return p, nil
}

// ListSuspectPools returns pools ordered by priority then ID.
func (c *CaseDB) ListSuspectPools(ctx context.Context) ([]model.SuspectPool, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, category, description, supporting_evidence, priority, created_at
		FROM suspect_pools
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list suspect pools: %w", err)
	}
	defer rows.Close()

	var pools []model.SuspectPool
	for rows.Next() {
		var p model.SuspectPool
		if err := rows.Scan(&p.ID, &p.Category, &p.Description,
			&p.SupportingEvidence, &p.Priority, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan suspect pool: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// AddPoolMember places an entity in a suspect pool. Adding the same entity
// twice is a validation error via the unique constraint.
func (c *CaseDB) AddPoolMember(ctx context.Context, poolID, entityID int64) (model.PoolMember, error) {
	var m model.PoolMember
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO suspect_pool_members (pool_id, entity_id)
		VALUES (?, ?)
		RETURNING id, created_at`,
		poolID, entityID,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return model.PoolMember{}, wrapWrite("add pool member", err)
	}
	m.PoolID = poolID
	m.EntityID = entityID
	return m, nil
}

// RemovePoolMember takes an entity out of a pool.
func (c *CaseDB) RemovePoolMember(ctx context.Context, poolID, entityID int64) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM suspect_pool_members WHERE pool_id = ? AND entity_id = ?`,
		poolID, entityID)
	if err != nil {
		return fmt.Errorf("storage: remove pool member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PoolMembers returns the entities in a pool, ordered by name.
func (c *CaseDB) PoolMembers(ctx context.Context, poolID int64) ([]model.Entity, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.entity_type, e.description, e.source_id,
		       e.canonical_id, e.confidence, e.created_at
		FROM suspect_pool_members m
		JOIN entities e ON e.id = m.entity_id
		WHERE m.pool_id = ?
		ORDER BY e.name`, poolID)
	if err != nil {
		return nil, fmt.Errorf("storage: pool members: %w", err)
	}
	defer rows.Close()

	var members []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		members = append(members, e)
	}
	return members, rows.Err()
}

// DeleteSuspectPool removes a pool; memberships cascade.
func (c *CaseDB) DeleteSuspectPool(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM suspect_pools WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete suspect pool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
