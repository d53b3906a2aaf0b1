package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/reliability"
)

// InsertSource stores a new source and returns it with its assigned ID.
// When both Admiralty grades are present the numeric reliability score is
// recomputed from them, overriding whatever the caller supplied.
func (c *CaseDB) InsertSource(ctx context.Context, src model.Source) (model.Source, error) {
	if err := src.Validate(); err != nil {
		return model.Source{}, fmt.Errorf("storage: insert source: %w", err)
	}
	if src.SourceReliability != nil && src.InformationAccuracy != nil {
		src.ReliabilityScore = reliability.Composite(*src.SourceReliability, *src.InformationAccuracy)
	}

	err := c.db.QueryRowContext(ctx, `
		INSERT INTO sources (url, raw_text, source_type, reliability_score,
		                     source_reliability, information_accuracy,
		                     access_assessment, bias_assessment, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, ingested_at`,
		src.URL, src.RawText, src.SourceType, src.ReliabilityScore,
		src.SourceReliability, src.InformationAccuracy,
		src.AccessAssessment, src.BiasAssessment, src.Notes,
	).Scan(&src.ID, &src.IngestedAt)
	if err != nil {
		return model.Source{}, wrapWrite("insert source", err)
	}
	return src, nil
}

// GetSource fetches one source by ID.
func (c *CaseDB) GetSource(ctx context.Context, id int64) (model.Source, error) {
	var src model.Source
	err := c.db.QueryRowContext(ctx, `
		SELECT id, url, raw_text, source_type, reliability_score,
		       source_reliability, information_accuracy,
		       access_assessment, bias_assessment, ingested_at, notes
		FROM sources WHERE id = ?`, id,
	).Scan(&src.ID, &src.URL, &src.RawText, &src.SourceType, &src.ReliabilityScore,
		&src.SourceReliability, &src.InformationAccuracy,
		&src.AccessAssessment, &src.BiasAssessment, &src.IngestedAt, &src.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Source{}, ErrNotFound
	}
	if err != nil {
		return model.Source{}, fmt.Errorf("storage: get source: %w", err)
	}
	return src, nil
}

// ListSources returns all sources, newest first.
func (c *CaseDB) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, url, raw_text, source_type, reliability_score,
		       source_reliability, information_accuracy,
		       access_assessment, bias_assessment, ingested_at, notes
		FROM sources ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list sources: %w", err)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.URL, &src.RawText, &src.SourceType,
			&src.ReliabilityScore, &src.SourceReliability, &src.InformationAccuracy,
			&src.AccessAssessment, &src.BiasAssessment, &src.IngestedAt, &src.Notes); err != nil {
			return nil, fmt.Errorf("storage: scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// RateSource sets the Admiralty grades on a source and recomputes the
// composite score. Assessment notes are replaced only when non-nil.
func (c *CaseDB) RateSource(ctx context.Context, id int64, rel model.ReliabilityGrade,
	acc model.AccuracyGrade, access, bias *string) (model.Source, error) {

	if !rel.Valid() {
		return model.Source{}, fmt.Errorf("storage: rate source: %w",
			model.NewValidationError("source_reliability", "must be A..F"))
	}
	if !acc.Valid() {
		return model.Source{}, fmt.Errorf("storage: rate source: %w",
			model.NewValidationError("information_accuracy", "must be 1..6"))
	}

	score := reliability.Composite(rel, acc)
	res, err := c.db.ExecContext(ctx, `
		UPDATE sources
		SET source_reliability = ?, information_accuracy = ?, reliability_score = ?,
		    access_assessment = COALESCE(?, access_assessment),
		    bias_assessment = COALESCE(?, bias_assessment)
		WHERE id = ?`,
		rel, acc, score, access, bias, id)
	if err != nil {
		return model.Source{}, wrapWrite("rate source", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Source{}, ErrNotFound
	}
	return c.GetSource(ctx, id)
}

// UpdateSourceNotes replaces the free-text notes on a source.
func (c *CaseDB) UpdateSourceNotes(ctx context.Context, id int64, notes string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE sources SET notes = ? WHERE id = ?`, notes, id)
	if err != nil {
		return wrapWrite("update source notes", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UnratedSources returns sources that have no human Admiralty rating yet.
func (c *CaseDB) UnratedSources(ctx context.Context) ([]model.Source, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, url, raw_text, source_type, reliability_score,
		       source_reliability, information_accuracy,
		       access_assessment, bias_assessment, ingested_at, notes
		FROM sources
		WHERE source_reliability IS NULL AND information_accuracy IS NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: unrated sources: %w", err)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.URL, &src.RawText, &src.SourceType,
			&src.ReliabilityScore, &src.SourceReliability, &src.InformationAccuracy,
			&src.AccessAssessment, &src.BiasAssessment, &src.IngestedAt, &src.Notes); err != nil {
			return nil, fmt.Errorf("storage: scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
