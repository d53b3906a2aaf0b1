package staging

import (
	"encoding/json"
	"fmt"

	"github.com/casetrace/casetrace/internal/model"
)

// EntityPayload is the staged form of an entity proposal.
type EntityPayload struct {
	Name        string  `json:"name"`
	EntityType  string  `json:"entity_type"`
	Description *string `json:"description,omitempty"`
	Confidence  string  `json:"confidence,omitempty"`
}

// EventPayload is the staged form of a timeline event proposal.
type EventPayload struct {
	TimestampStart *string `json:"timestamp_start,omitempty"`
	TimestampEnd   *string `json:"timestamp_end,omitempty"`
	Description    string  `json:"description"`
	Confidence     string  `json:"confidence,omitempty"`
	Layer          string  `json:"layer,omitempty"`
}

// EvidencePayload is the staged form of an evidence proposal.
type EvidencePayload struct {
	Name         string  `json:"name"`
	EvidenceType string  `json:"evidence_type"`
	Description  *string `json:"description,omitempty"`
}

// RelationshipPayload is the staged form of a relationship proposal. The
// endpoints are names, resolved to entities at accept time.
type RelationshipPayload struct {
	EntityA          string  `json:"entity_a"`
	EntityB          string  `json:"entity_b"`
	RelationshipType string  `json:"relationship_type"`
	Description      *string `json:"description,omitempty"`
}

// ParsePayload decodes and validates the payload of a staged item against
// its declared type. Invalid payloads fail here, not at accept time.
func ParsePayload(itemType model.StagedItemType, data json.RawMessage) (any, error) {
	switch itemType {
	case model.StagedEntity:
		var p EntityPayload
		if err := strictUnmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Name == "" || p.EntityType == "" {
			return nil, model.NewValidationError("item_data",
				"entity payload requires name and entity_type")
		}
		return p, nil
	case model.StagedEvent:
		var p EventPayload
		if err := strictUnmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Description == "" {
			return nil, model.NewValidationError("item_data",
				"event payload requires description")
		}
		return p, nil
	case model.StagedEvidence:
		var p EvidencePayload
		if err := strictUnmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			return nil, model.NewValidationError("item_data",
				"evidence payload requires name")
		}
		if !model.EvidenceType(p.EvidenceType).Valid() {
			return nil, model.NewValidationError("item_data",
				fmt.Sprintf("unknown evidence_type %q", p.EvidenceType))
		}
		return p, nil
	case model.StagedRelationship:
		var p RelationshipPayload
		if err := strictUnmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.EntityA == "" || p.EntityB == "" || p.RelationshipType == "" {
			return nil, model.NewValidationError("item_data",
				"relationship payload requires entity_a, entity_b, and relationship_type")
		}
		return p, nil
	default:
		return nil, model.NewValidationError("item_type",
			fmt.Sprintf("unknown staged item type %q", itemType))
	}
}

func strictUnmarshal(data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return model.NewValidationError("item_data", err.Error())
	}
	return nil
}
