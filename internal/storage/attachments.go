package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

const attachmentColumns = `id, filename, mime_type, file_size, file_path,
	sha256, thumbnail_path, description, source_url, ai_analysis,
	ai_analyzed_at, created_at`

func scanAttachment(row interface{ Scan(...any) error }) (model.Attachment, error) {
	var a model.Attachment
	err := row.Scan(&a.ID, &a.Filename, &a.MimeType, &a.FileSize, &a.FilePath,
		&a.SHA256, &a.ThumbnailPath, &a.Description, &a.SourceURL,
		&a.AIAnalysis, &a.AIAnalyzedAt, &a.CreatedAt)
	return a, err
}

// InsertAttachment stores attachment metadata and returns the assigned ID.
// The row is written before the file lands on disk, so FilePath may hold a
// placeholder that SetAttachmentPaths later replaces.
func (c *CaseDB) InsertAttachment(ctx context.Context, a model.Attachment) (model.Attachment, error) {
	if a.Filename == "" {
		return model.Attachment{}, fmt.Errorf("storage: insert attachment: %w",
			model.NewValidationError("filename", "must not be empty"))
	}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO attachments (filename, mime_type, file_size, file_path,
		                         sha256, description, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		a.Filename, a.MimeType, a.FileSize, a.FilePath, a.SHA256,
		a.Description, a.SourceURL,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return model.Attachment{}, wrapWrite("insert attachment", err)
	}
	return a, nil
}

// SetAttachmentPaths records where the file and its thumbnail actually
// landed once the bytes are on disk.
func (c *CaseDB) SetAttachmentPaths(ctx context.Context, id int64, filePath string, thumbnailPath *string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE attachments SET file_path = ?, thumbnail_path = ? WHERE id = ?`,
		filePath, thumbnailPath, id)
	if err != nil {
		return wrapWrite("set attachment paths", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAttachment fetches one attachment by ID.
func (c *CaseDB) GetAttachment(ctx context.Context, id int64) (model.Attachment, error) {
	a, err := scanAttachment(c.db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attachment{}, ErrNotFound
	}
	if err != nil {
		return model.Attachment{}, fmt.Errorf("storage: get attachment: %w", err)
	}
	return a, nil
}

// ListAttachments returns all attachments, newest first.
func (c *CaseDB) ListAttachments(ctx context.Context) ([]model.Attachment, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list attachments: %w", err)
	}
	defer rows.Close()

	var atts []model.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

// DeleteAttachment removes the metadata row; links cascade.
func (c *CaseDB) DeleteAttachment(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete attachment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAttachmentAnalysis stores a model-generated description of the file.
func (c *CaseDB) SetAttachmentAnalysis(ctx context.Context, id int64, analysis string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE attachments
		SET ai_analysis = ?, ai_analyzed_at = datetime('now')
		WHERE id = ?`, analysis, id)
	if err != nil {
		return wrapWrite("set attachment analysis", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkAttachment ties an attachment to a case record. Duplicate links are
// rejected by the unique constraint.
func (c *CaseDB) LinkAttachment(ctx context.Context, attachmentID int64,
	entityType model.LinkEntityType, entityID int64) (model.AttachmentLink, error) {

	if !entityType.Valid() {
		return model.AttachmentLink{}, fmt.Errorf("storage: link attachment: %w",
			model.NewValidationError("entity_type",
				"must be evidence, source, event, hypothesis, or suspect"))
	}
	var l model.AttachmentLink
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO attachment_links (attachment_id, entity_type, entity_id)
		VALUES (?, ?, ?)
		RETURNING id, created_at`,
		attachmentID, entityType, entityID,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return model.AttachmentLink{}, wrapWrite("link attachment", err)
	}
	l.AttachmentID = attachmentID
	l.EntityType = entityType
	l.EntityID = entityID
	return l, nil
}

// UnlinkAttachment removes one attachment link.
func (c *CaseDB) UnlinkAttachment(ctx context.Context, attachmentID int64,
	entityType model.LinkEntityType, entityID int64) error {

	res, err := c.db.ExecContext(ctx, `
		DELETE FROM attachment_links
		WHERE attachment_id = ? AND entity_type = ? AND entity_id = ?`,
		attachmentID, entityType, entityID)
	if err != nil {
		return fmt.Errorf("storage: unlink attachment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachmentLinks returns the links on one attachment.
func (c *CaseDB) AttachmentLinks(ctx context.Context, attachmentID int64) ([]model.AttachmentLink, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, attachment_id, entity_type, entity_id, created_at
		FROM attachment_links WHERE attachment_id = ? ORDER BY id`, attachmentID)
	if err != nil {
		return nil, fmt.Errorf("storage: attachment links: %w", err)
	}
	defer rows.Close()

	var links []model.AttachmentLink
	for rows.Next() {
		var l model.AttachmentLink
		if err := rows.Scan(&l.ID, &l.AttachmentID, &l.EntityType,
			&l.EntityID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan attachment link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// AttachmentsFor returns attachments linked to one case record.
func (c *CaseDB) AttachmentsFor(ctx context.Context, entityType model.LinkEntityType, entityID int64) ([]model.Attachment, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT a.id, a.filename, a.mime_type, a.file_size, a.file_path,
		       a.sha256, a.thumbnail_path, a.description, a.source_url,
		       a.ai_analysis, a.ai_analyzed_at, a.created_at
		FROM attachment_links l
		JOIN attachments a ON a.id = l.attachment_id
		WHERE l.entity_type = ? AND l.entity_id = ?
		ORDER BY a.id`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("storage: attachments for: %w", err)
	}
	defer rows.Close()

	var atts []model.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}
