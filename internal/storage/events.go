package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

const eventColumns = `id, timestamp_start, timestamp_end, description,
	confidence, source_id, layer, created_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Start, &e.End, &e.Description,
		&e.Confidence, &e.SourceID, &e.Layer, &e.CreatedAt)
	return e, err
}

// InsertEvent stores a new timeline event and returns it with its ID.
func (c *CaseDB) InsertEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if err := e.Validate(); err != nil {
		return model.Event{}, fmt.Errorf("storage: insert event: %w", err)
	}
	if e.Confidence == "" {
		e.Confidence = model.ConfidenceMedium
	}
	if e.Layer == "" {
		e.Layer = "general"
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO events (timestamp_start, timestamp_end, description,
		                    confidence, source_id, layer)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		e.Start, e.End, e.Description, e.Confidence, e.SourceID, e.Layer,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return model.Event{}, wrapWrite("insert event", err)
	}
	return e, nil
}

// GetEvent fetches one event by ID.
func (c *CaseDB) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	e, err := scanEvent(c.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("storage: get event: %w", err)
	}
	return e, nil
}

// ListEvents returns events ordered chronologically. Events without a start
// timestamp sort last. An empty layer selects all layers.
func (c *CaseDB) ListEvents(ctx context.Context, layer string) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	if layer != "" {
		query += ` WHERE layer = ?`
		args = append(args, layer)
	}
	query += ` ORDER BY timestamp_start IS NULL, timestamp_start, id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateEvent replaces the mutable fields of an event.
func (c *CaseDB) UpdateEvent(ctx context.Context, e model.Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("storage: update event: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE events
		SET timestamp_start = ?, timestamp_end = ?, description = ?,
		    confidence = ?, layer = ?
		WHERE id = ?`,
		e.Start, e.End, e.Description, e.Confidence, e.Layer, e.ID)
	if err != nil {
		return wrapWrite("update event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes an event.
func (c *CaseDB) DeleteEvent(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// EventLayers returns the distinct timeline layers in use.
func (c *CaseDB) EventLayers(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT DISTINCT layer FROM events ORDER BY layer`)
	if err != nil {
		return nil, fmt.Errorf("storage: event layers: %w", err)
	}
	defer rows.Close()

	var layers []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("storage: scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}
