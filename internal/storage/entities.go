package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

const entityColumns = `id, name, entity_type, description, source_id,
	canonical_id, confidence, created_at`

func scanEntity(row interface{ Scan(...any) error }) (model.Entity, error) {
	var e model.Entity
	err := row.Scan(&e.ID, &e.Name, &e.EntityType, &e.Description,
		&e.SourceID, &e.CanonicalID, &e.Confidence, &e.CreatedAt)
	return e, err
}

// InsertEntity stores a new entity and returns it with its assigned ID.
func (c *CaseDB) InsertEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	if err := e.Validate(); err != nil {
		return model.Entity{}, fmt.Errorf("storage: insert entity: %w", err)
	}
	if e.Confidence == "" {
		e.Confidence = model.ConfidenceMedium
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO entities (name, entity_type, description, source_id, confidence)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		e.Name, e.EntityType, e.Description, e.SourceID, e.Confidence,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return model.Entity{}, wrapWrite("insert entity", err)
	}
	return e, nil
}

// GetEntity fetches one entity by ID.
func (c *CaseDB) GetEntity(ctx context.Context, id int64) (model.Entity, error) {
	e, err := scanEntity(c.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entity{}, ErrNotFound
	}
	if err != nil {
		return model.Entity{}, fmt.Errorf("storage: get entity: %w", err)
	}
	return e, nil
}

// GetEntityByName fetches an entity by exact name match. When multiple
// entities share a name the lowest ID wins.
func (c *CaseDB) GetEntityByName(ctx context.Context, name string) (model.Entity, error) {
	e, err := scanEntity(c.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE name = ? ORDER BY id LIMIT 1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entity{}, ErrNotFound
	}
	if err != nil {
		return model.Entity{}, fmt.Errorf("storage: get entity by name: %w", err)
	}
	return e, nil
}

// ListEntities returns entities, optionally filtered by type.
func (c *CaseDB) ListEntities(ctx context.Context, entityType string) ([]model.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities`
	var args []any
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY name`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list entities: %w", err)
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// UpdateEntity replaces the mutable fields of an entity.
func (c *CaseDB) UpdateEntity(ctx context.Context, e model.Entity) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("storage: update entity: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE entities
		SET name = ?, entity_type = ?, description = ?, confidence = ?
		WHERE id = ?`,
		e.Name, e.EntityType, e.Description, e.Confidence, e.ID)
	if err != nil {
		return wrapWrite("update entity", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEntityCanonical marks aliasID as an alias of canonicalID.
//
// Alias chains stay single-hop: the canonical target must not itself be an
// alias, and the entity being aliased must not already be the canonical
// target of others. Both rules are checked inside one transaction.
func (c *CaseDB) SetEntityCanonical(ctx context.Context, aliasID, canonicalID int64) error {
	if aliasID == canonicalID {
		return fmt.Errorf("storage: set canonical: %w",
			model.NewValidationError("canonical_id", "entity cannot alias itself"))
	}
	return c.withTx(ctx, func(tx *sql.Tx) error {
		var targetCanonical sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT canonical_id FROM entities WHERE id = ?`, canonicalID,
		).Scan(&targetCanonical)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("storage: set canonical: %w", err)
		}
		if targetCanonical.Valid {
			return fmt.Errorf("storage: set canonical: %w",
				model.NewValidationError("canonical_id",
					fmt.Sprintf("entity %d is itself an alias", canonicalID)))
		}

		var dependents int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entities WHERE canonical_id = ?`, aliasID,
		).Scan(&dependents); err != nil {
			return fmt.Errorf("storage: set canonical: %w", err)
		}
		if dependents > 0 {
			return fmt.Errorf("storage: set canonical: %w",
				model.NewValidationError("canonical_id",
					fmt.Sprintf("entity %d is canonical for %d aliases", aliasID, dependents)))
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE entities SET canonical_id = ? WHERE id = ?`, canonicalID, aliasID)
		if err != nil {
			return wrapWrite("set canonical", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ResolveEntity follows the canonical pointer, returning the canonical
// entity for an alias or the entity itself otherwise.
func (c *CaseDB) ResolveEntity(ctx context.Context, id int64) (model.Entity, error) {
	e, err := c.GetEntity(ctx, id)
	if err != nil {
		return model.Entity{}, err
	}
	if e.CanonicalID == nil {
		return e, nil
	}
	return c.GetEntity(ctx, *e.CanonicalID)
}

// EntityAliases returns the entities that point at id as their canonical.
func (c *CaseDB) EntityAliases(ctx context.Context, id int64) ([]model.Entity, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE canonical_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: entity aliases: %w", err)
	}
	defer rows.Close()

	var aliases []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan entity: %w", err)
		}
		aliases = append(aliases, e)
	}
	return aliases, rows.Err()
}
