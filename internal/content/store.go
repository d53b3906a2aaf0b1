// Package content stores case attachments on disk with SHA-256 integrity
// tracking. Metadata lives in the case database; bytes live under the
// case's attachments directory named by attachment ID to avoid collisions.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/casetrace/casetrace/internal/casedir"
	"github.com/casetrace/casetrace/internal/model"
)

// MaxFileSize is the upload ceiling. Case files accumulate scans and
// photos, not video archives.
const MaxFileSize = 50 << 20

// ErrTooLarge is returned when an upload exceeds MaxFileSize.
var ErrTooLarge = errors.New("content: file exceeds size limit")

// Store writes and verifies attachment files for one case.
type Store struct {
	cs     *casedir.Case
	logger *slog.Logger
}

// NewStore returns a Store bound to an open case.
func NewStore(cs *casedir.Case, logger *slog.Logger) *Store {
	return &Store{cs: cs, logger: logger}
}

// Put stores an attachment: metadata row first, then the bytes under a
// name derived from the assigned ID, then the thumbnail for images, then
// the final paths back onto the row. A failed write removes the metadata
// so no row ever points at a file that was never written.
func (s *Store) Put(ctx context.Context, filename, mimeType string, data []byte,
	description, sourceURL *string) (model.Attachment, error) {

	if int64(len(data)) > MaxFileSize {
		return model.Attachment{}, fmt.Errorf("content: put %s: %w", filename, ErrTooLarge)
	}

	sum := sha256.Sum256(data)
	att := model.Attachment{
		Filename:    sanitizeFilename(filename),
		MimeType:    mimeType,
		FileSize:    int64(len(data)),
		FilePath:    "pending",
		SHA256:      hex.EncodeToString(sum[:]),
		Description: description,
		SourceURL:   sourceURL,
	}

	att, err := s.cs.DB.InsertAttachment(ctx, att)
	if err != nil {
		return model.Attachment{}, err
	}

	relPath := fmt.Sprintf("%d_%s", att.ID, att.Filename)
	absPath := filepath.Join(s.cs.AttachmentsDir(), relPath)
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		if delErr := s.cs.DB.DeleteAttachment(ctx, att.ID); delErr != nil {
			s.logger.Warn("content: orphaned attachment row", "id", att.ID, "error", delErr)
		}
		return model.Attachment{}, fmt.Errorf("content: write %s: %w", relPath, err)
	}

	var thumbRel *string
	if strings.HasPrefix(mimeType, "image/") {
		name, err := writeThumbnail(s.cs.ThumbsDir(), att.ID, data)
		if err != nil {
			// Undecodable images still get stored; they just have no preview.
			s.logger.Warn("content: thumbnail failed", "id", att.ID, "error", err)
		} else {
			rel := filepath.Join("thumbs", name)
			thumbRel = &rel
		}
	}

	if err := s.cs.DB.SetAttachmentPaths(ctx, att.ID, relPath, thumbRel); err != nil {
		return model.Attachment{}, err
	}
	att.FilePath = relPath
	att.ThumbnailPath = thumbRel

	s.logger.Info("attachment stored", "id", att.ID, "filename", att.Filename,
		"size", att.FileSize, "sha256", att.SHA256)
	return att, nil
}

// Open returns a reader over the stored bytes of an attachment.
func (s *Store) Open(ctx context.Context, id int64) (io.ReadCloser, model.Attachment, error) {
	att, err := s.cs.DB.GetAttachment(ctx, id)
	if err != nil {
		return nil, model.Attachment{}, err
	}
	f, err := os.Open(filepath.Join(s.cs.AttachmentsDir(), att.FilePath))
	if err != nil {
		return nil, model.Attachment{}, fmt.Errorf("content: open attachment %d: %w", id, err)
	}
	return f, att, nil
}

// Verify recomputes the hash of one stored attachment and compares it to
// the hash recorded at upload.
func (s *Store) Verify(ctx context.Context, id int64) (model.Verification, error) {
	att, err := s.cs.DB.GetAttachment(ctx, id)
	if err != nil {
		return model.Verification{}, err
	}
	return s.verifyOne(att), nil
}

// VerifyAll checks every attachment in the case and returns one result per
// file, tampered and missing files included.
func (s *Store) VerifyAll(ctx context.Context) ([]model.Verification, error) {
	atts, err := s.cs.DB.ListAttachments(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]model.Verification, 0, len(atts))
	for _, att := range atts {
		v := s.verifyOne(att)
		if v.Result != model.VerifyOK {
			s.logger.Warn("attachment integrity check failed",
				"id", att.ID, "filename", att.Filename, "result", v.Result)
		}
		results = append(results, v)
	}
	return results, nil
}

func (s *Store) verifyOne(att model.Attachment) model.Verification {
	v := model.Verification{
		AttachmentID: att.ID,
		Filename:     att.Filename,
		ExpectedHash: att.SHA256,
	}

	f, err := os.Open(filepath.Join(s.cs.AttachmentsDir(), att.FilePath))
	if err != nil {
		v.Result = model.VerifyMissing
		return v
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		v.Result = model.VerifyMissing
		return v
	}
	v.ActualHash = hex.EncodeToString(h.Sum(nil))
	if v.ActualHash == v.ExpectedHash {
		v.Result = model.VerifyOK
		v.ExpectedHash = ""
		v.ActualHash = ""
	} else {
		v.Result = model.VerifyTampered
	}
	return v
}

// Delete removes an attachment's metadata, file, and thumbnail. Missing
// files do not block the delete; the metadata is authoritative.
func (s *Store) Delete(ctx context.Context, id int64) error {
	att, err := s.cs.DB.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.cs.DB.DeleteAttachment(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.cs.AttachmentsDir(), att.FilePath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("content: remove file", "id", id, "error", err)
	}
	if att.ThumbnailPath != nil {
		if err := os.Remove(filepath.Join(s.cs.AttachmentsDir(), *att.ThumbnailPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("content: remove thumbnail", "id", id, "error", err)
		}
	}
	return nil
}

// sanitizeFilename strips path components and characters that do not
// belong in a stored filename.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == ".." {
		return "unnamed"
	}
	return name
}
