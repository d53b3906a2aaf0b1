package model

// LinkEntityType enumerates the record kinds an attachment can be linked to.
type LinkEntityType string

const (
	LinkEvidence   LinkEntityType = "evidence"
	LinkSource     LinkEntityType = "source"
	LinkEvent      LinkEntityType = "event"
	LinkHypothesis LinkEntityType = "hypothesis"
	LinkSuspect    LinkEntityType = "suspect"
)

// Valid reports whether the link target type is known.
func (t LinkEntityType) Valid() bool {
	switch t {
	case LinkEvidence, LinkSource, LinkEvent, LinkHypothesis, LinkSuspect:
		return true
	}
	return false
}

// Attachment is a file stored in the case directory. SHA256 is computed at
// upload time and is the basis for tamper detection.
type Attachment struct {
	ID            int64   `json:"id"`
	Filename      string  `json:"filename"`
	MimeType      string  `json:"mime_type"`
	FileSize      int64   `json:"file_size"`
	FilePath      string  `json:"file_path"`
	SHA256        string  `json:"sha256"`
	ThumbnailPath *string `json:"thumbnail_path,omitempty"`
	Description   *string `json:"description,omitempty"`
	SourceURL     *string `json:"source_url,omitempty"`
	AIAnalysis    *string `json:"ai_analysis,omitempty"`
	AIAnalyzedAt  *string `json:"ai_analyzed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// AttachmentLink ties an attachment to a case record.
type AttachmentLink struct {
	ID           int64          `json:"id"`
	AttachmentID int64          `json:"attachment_id"`
	EntityType   LinkEntityType `json:"entity_type"`
	EntityID     int64          `json:"entity_id"`
	CreatedAt    string         `json:"created_at"`
}

// VerifyResult is the outcome of an integrity check on a stored attachment.
type VerifyResult string

const (
	VerifyOK       VerifyResult = "verified"
	VerifyTampered VerifyResult = "tampered"
	VerifyMissing  VerifyResult = "missing"
)

// Verification reports one attachment's integrity status. For tampered
// files both hashes are included so the mismatch is auditable.
type Verification struct {
	AttachmentID int64        `json:"attachment_id"`
	Filename     string       `json:"filename"`
	Result       VerifyResult `json:"result"`
	ExpectedHash string       `json:"expected_hash,omitempty"`
	ActualHash   string       `json:"actual_hash,omitempty"`
}
