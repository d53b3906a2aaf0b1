package storage

import (
	"context"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

// Prompts and responses are truncated before storage so one runaway model
// call cannot bloat the case database.
const (
	maxStoredPrompt   = 2000
	maxStoredResponse = 50000
)

// RecordAnalysis stores one model call in the audit trail. Failed calls are
// recorded too, with Success false and the error text.
func (c *CaseDB) RecordAnalysis(ctx context.Context, a model.AIAnalysis) (model.AIAnalysis, error) {
	if len(a.Prompt) > maxStoredPrompt {
		a.Prompt = a.Prompt[:maxStoredPrompt]
	}
	if a.Response != nil && len(*a.Response) > maxStoredResponse {
		trimmed := (*a.Response)[:maxStoredResponse]
		a.Response = &trimmed
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO ai_analyses (entity_type, entity_id, mode, prompt,
		                         response, model, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		a.EntityType, a.EntityID, a.Mode, a.Prompt, a.Response, a.Model,
		a.Success, a.Error,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return model.AIAnalysis{}, wrapWrite("record analysis", err)
	}
	return a, nil
}

// ListAnalyses returns the audit trail for one record, newest first.
func (c *CaseDB) ListAnalyses(ctx context.Context, entityType string, entityID int64) ([]model.AIAnalysis, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, mode, prompt, response, model,
		       success, error, created_at
		FROM ai_analyses
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id DESC`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("storage: list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []model.AIAnalysis
	for rows.Next() {
		var a model.AIAnalysis
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Mode,
			&a.Prompt, &a.Response, &a.Model, &a.Success, &a.Error,
			&a.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
