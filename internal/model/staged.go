package model

import "encoding/json"

// StagedItemType names the record kind a staged extraction proposes.
type StagedItemType string

const (
	StagedEntity       StagedItemType = "entity"
	StagedEvidence     StagedItemType = "evidence"
	StagedEvent        StagedItemType = "event"
	StagedRelationship StagedItemType = "relationship"
)

// Valid reports whether the item type is known.
func (t StagedItemType) Valid() bool {
	switch t {
	case StagedEntity, StagedEvidence, StagedEvent, StagedRelationship:
		return true
	}
	return false
}

// StagedStatus is the review state of a staged item.
type StagedStatus string

const (
	StagedPending  StagedStatus = "pending"
	StagedAccepted StagedStatus = "accepted"
	StagedRejected StagedStatus = "rejected"
)

// Valid reports whether the status is known.
func (s StagedStatus) Valid() bool {
	switch s {
	case StagedPending, StagedAccepted, StagedRejected:
		return true
	}
	return false
}

// StagedItem is one machine-extracted record awaiting analyst review.
// ItemData holds the type-specific payload as raw JSON; nothing reaches the
// real case tables until an analyst accepts the item.
type StagedItem struct {
	ID         int64           `json:"id"`
	AnalysisID *int64          `json:"analysis_id,omitempty"`
	SourceID   *int64          `json:"source_id,omitempty"`
	ItemType   StagedItemType  `json:"item_type"`
	ItemData   json.RawMessage `json:"item_data"`
	Status     StagedStatus    `json:"status"`
	CreatedAt  string          `json:"created_at"`
}

// AIAnalysis is one recorded model call, kept for audit whether it
// succeeded or failed.
type AIAnalysis struct {
	ID         int64   `json:"id"`
	EntityType string  `json:"entity_type"`
	EntityID   int64   `json:"entity_id"`
	Mode       string  `json:"mode"`
	Prompt     string  `json:"prompt"`
	Response   *string `json:"response,omitempty"`
	Model      *string `json:"model,omitempty"`
	Success    bool    `json:"success"`
	Error      *string `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
}
