// Package staging implements the review queue between machine extraction
// and the case record. Extracted items land here as pending proposals;
// nothing touches the real tables until an analyst accepts them.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/storage"
)

// Service runs extraction and review against one case database.
type Service struct {
	db     *storage.CaseDB
	client *ai.Client
	logger *slog.Logger
}

// NewService returns a staging Service. client may be nil when no model
// backend is configured; extraction then fails cleanly while review of
// already-staged items keeps working.
func NewService(db *storage.CaseDB, client *ai.Client, logger *slog.Logger) *Service {
	return &Service{db: db, client: client, logger: logger}
}

// ErrNoClient is returned when extraction is requested without a model
// backend configured.
var ErrNoClient = errors.New("staging: no model backend configured")

// extractionResult mirrors the JSON shape the extraction prompt requests.
type extractionResult struct {
	Entities      []EntityPayload       `json:"entities"`
	Events        []EventPayload        `json:"events"`
	Evidence      []EvidencePayload     `json:"evidence"`
	Relationships []RelationshipPayload `json:"relationships"`
}

// ExtractFromSource runs model extraction over a source's raw text and
// stages the proposals. The model call is recorded in the audit trail
// whether it succeeds or fails.
func (s *Service) ExtractFromSource(ctx context.Context, sourceID int64) ([]model.StagedItem, error) {
	if s.client == nil {
		return nil, ErrNoClient
	}
	src, err := s.db.GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("staging: extract: %w", err)
	}

	prompt := ai.ExtractionPrompt(src.RawText)
	raw, genErr := s.client.GenerateJSON(ctx, prompt)

	analysis := model.AIAnalysis{
		EntityType: "source",
		EntityID:   sourceID,
		Mode:       "extract",
		Prompt:     prompt,
		Success:    genErr == nil,
	}
	mdl := s.client.Model()
	analysis.Model = &mdl
	if genErr != nil {
		msg := genErr.Error()
		analysis.Error = &msg
	} else {
		analysis.Response = &raw
	}
	recorded, recErr := s.db.RecordAnalysis(ctx, analysis)
	if recErr != nil {
		s.logger.Warn("staging: record analysis failed", "error", recErr)
	}
	if genErr != nil {
		return nil, fmt.Errorf("staging: extract source %d: %w", sourceID, genErr)
	}

	doc, err := ai.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("staging: extract source %d: %w", sourceID, err)
	}
	var result extractionResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("staging: extract source %d: parse result: %w", sourceID, err)
	}

	var analysisID *int64
	if recErr == nil {
		analysisID = &recorded.ID
	}
	items := buildStagedItems(analysisID, &sourceID, result)
	if len(items) == 0 {
		return nil, nil
	}

	staged, err := s.db.InsertStagedItems(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("staging: extract source %d: %w", sourceID, err)
	}
	s.logger.Info("extraction staged", "source_id", sourceID, "items", len(staged))
	return staged, nil
}

func buildStagedItems(analysisID, sourceID *int64, result extractionResult) []model.StagedItem {
	var items []model.StagedItem
	add := func(itemType model.StagedItemType, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		items = append(items, model.StagedItem{
			AnalysisID: analysisID,
			SourceID:   sourceID,
			ItemType:   itemType,
			ItemData:   data,
		})
	}
	for _, p := range result.Entities {
		add(model.StagedEntity, p)
	}
	for _, p := range result.Events {
		add(model.StagedEvent, p)
	}
	for _, p := range result.Evidence {
		add(model.StagedEvidence, p)
	}
	for _, p := range result.Relationships {
		add(model.StagedRelationship, p)
	}
	return items
}

// Stage inserts proposals directly, bypassing the model. Used by imports
// that parse structured pages themselves.
func (s *Service) Stage(ctx context.Context, sourceID int64, result Proposals) ([]model.StagedItem, error) {
	items := buildStagedItems(nil, &sourceID, extractionResult(result))
	if len(items) == 0 {
		return nil, nil
	}
	return s.db.InsertStagedItems(ctx, items)
}

// Proposals is a set of records to stage for review.
type Proposals struct {
	Entities      []EntityPayload       `json:"entities"`
	Events        []EventPayload        `json:"events"`
	Evidence      []EvidencePayload     `json:"evidence"`
	Relationships []RelationshipPayload `json:"relationships"`
}

// AcceptResult reports what an accept produced.
type AcceptResult struct {
	ItemID     int64  `json:"item_id"`
	Applied    bool   `json:"applied"`
	RecordType string `json:"record_type,omitempty"`
	RecordID   int64  `json:"record_id,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// errReviewed signals that another reviewer claimed the item first.
var errReviewed = errors.New("staging: item already reviewed")

// Accept applies one pending staged item to the case record and marks it
// accepted. Items already reviewed are skipped, not re-applied. The status
// change and the record writes commit in one transaction, so a failed
// apply leaves neither a reviewed item nor stray records behind.
func (s *Service) Accept(ctx context.Context, itemID int64) (AcceptResult, error) {
	item, err := s.db.GetStagedItem(ctx, itemID)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("staging: accept %d: %w", itemID, err)
	}
	if item.Status != model.StagedPending {
		return AcceptResult{ItemID: itemID, SkipReason: "already " + string(item.Status)}, nil
	}

	payload, err := ParsePayload(item.ItemType, item.ItemData)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("staging: accept %d: %w", itemID, err)
	}

	var recordType string
	var recordID int64
	err = s.db.WithTx(ctx, func(tx *storage.CaseDB) error {
		// Claim the item first; the rest of the transaction rides on the
		// claim and rolls it back when any write fails.
		moved, err := tx.MarkStagedItem(ctx, itemID, model.StagedAccepted)
		if err != nil {
			return err
		}
		if !moved {
			return errReviewed
		}
		recordType, recordID, err = s.apply(ctx, tx, item, payload)
		return err
	})
	if errors.Is(err, errReviewed) {
		return AcceptResult{ItemID: itemID, SkipReason: "already reviewed"}, nil
	}
	if err != nil {
		return AcceptResult{}, fmt.Errorf("staging: accept %d: %w", itemID, err)
	}
	return AcceptResult{ItemID: itemID, Applied: true, RecordType: recordType, RecordID: recordID}, nil
}

func (s *Service) apply(ctx context.Context, db *storage.CaseDB, item model.StagedItem, payload any) (string, int64, error) {
	switch p := payload.(type) {
	case EntityPayload:
		e, err := db.InsertEntity(ctx, model.Entity{
			Name:        p.Name,
			EntityType:  p.EntityType,
			Description: p.Description,
			SourceID:    item.SourceID,
			Confidence:  model.Confidence(p.Confidence),
		})
		if err != nil {
			return "", 0, err
		}
		return "entity", e.ID, nil
	case EventPayload:
		e, err := db.InsertEvent(ctx, model.Event{
			Start:       p.TimestampStart,
			End:         p.TimestampEnd,
			Description: p.Description,
			Confidence:  model.Confidence(p.Confidence),
			SourceID:    item.SourceID,
			Layer:       p.Layer,
		})
		if err != nil {
			return "", 0, err
		}
		return "event", e.ID, nil
	case EvidencePayload:
		e, err := db.InsertEvidence(ctx, model.EvidenceItem{
			Name:         p.Name,
			EvidenceType: model.EvidenceType(p.EvidenceType),
			Description:  p.Description,
			SourceID:     item.SourceID,
		})
		if err != nil {
			return "", 0, err
		}
		return "evidence", e.ID, nil
	case RelationshipPayload:
		a, err := resolveOrCreateEntity(ctx, db, p.EntityA, item.SourceID)
		if err != nil {
			return "", 0, err
		}
		b, err := resolveOrCreateEntity(ctx, db, p.EntityB, item.SourceID)
		if err != nil {
			return "", 0, err
		}
		r, err := db.InsertRelationship(ctx, model.Relationship{
			EntityAID:        a.ID,
			EntityBID:        b.ID,
			RelationshipType: p.RelationshipType,
			Description:      p.Description,
			SourceID:         item.SourceID,
		})
		if err != nil {
			return "", 0, err
		}
		return "relationship", r.ID, nil
	default:
		return "", 0, model.NewValidationError("item_type", "unsupported payload")
	}
}

// resolveOrCreateEntity finds an entity by exact name, following the alias
// pointer, or creates a low-confidence placeholder when no match exists.
func resolveOrCreateEntity(ctx context.Context, db *storage.CaseDB, name string, sourceID *int64) (model.Entity, error) {
	e, err := db.GetEntityByName(ctx, name)
	if err == nil {
		if e.CanonicalID != nil {
			return db.GetEntity(ctx, *e.CanonicalID)
		}
		return e, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Entity{}, err
	}
	return db.InsertEntity(ctx, model.Entity{
		Name:       name,
		EntityType: "person",
		SourceID:   sourceID,
		Confidence: model.ConfidenceLow,
	})
}

// Reject marks one pending item rejected without touching the case record.
func (s *Service) Reject(ctx context.Context, itemID int64) (bool, error) {
	moved, err := s.db.MarkStagedItem(ctx, itemID, model.StagedRejected)
	if err != nil {
		return false, fmt.Errorf("staging: reject %d: %w", itemID, err)
	}
	return moved, nil
}

// BatchResult summarizes a bulk review.
type BatchResult struct {
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Skipped  int            `json:"skipped"`
	Results  []AcceptResult `json:"results,omitempty"`
}

// AcceptAll applies every pending staged item, skipping ones that fail to
// parse and reporting them individually.
func (s *Service) AcceptAll(ctx context.Context) (BatchResult, error) {
	pending, err := s.db.ListStagedItems(ctx, model.StagedPending)
	if err != nil {
		return BatchResult{}, fmt.Errorf("staging: accept all: %w", err)
	}
	var out BatchResult
	for _, item := range pending {
		res, err := s.Accept(ctx, item.ID)
		if err != nil {
			s.logger.Warn("staging: batch accept item failed", "item_id", item.ID, "error", err)
			out.Skipped++
			out.Results = append(out.Results, AcceptResult{
				ItemID: item.ID, SkipReason: err.Error(),
			})
			continue
		}
		if res.Applied {
			out.Accepted++
		} else {
			out.Skipped++
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// Batch applies one review action to a chosen list of staged items. Items
// that are missing or no longer pending are skipped and reported, never
// failed, so a partially stale id list still reviews the rest.
func (s *Service) Batch(ctx context.Context, action string, ids []int64) (BatchResult, error) {
	if action != "accept" && action != "reject" {
		return BatchResult{}, model.NewValidationError("action",
			fmt.Sprintf("unknown batch action %q", action))
	}
	var out BatchResult
	for _, id := range ids {
		if action == "reject" {
			moved, err := s.Reject(ctx, id)
			if err != nil {
				return out, err
			}
			if moved {
				out.Rejected++
				out.Results = append(out.Results, AcceptResult{ItemID: id})
			} else {
				out.Skipped++
				out.Results = append(out.Results, AcceptResult{
					ItemID: id, SkipReason: "not pending",
				})
			}
			continue
		}
		res, err := s.Accept(ctx, id)
		if err != nil {
			s.logger.Warn("staging: batch accept item failed", "item_id", id, "error", err)
			out.Skipped++
			out.Results = append(out.Results, AcceptResult{
				ItemID: id, SkipReason: err.Error(),
			})
			continue
		}
		if res.Applied {
			out.Accepted++
		} else {
			out.Skipped++
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// RejectAll marks every pending staged item rejected.
func (s *Service) RejectAll(ctx context.Context) (BatchResult, error) {
	pending, err := s.db.ListStagedItems(ctx, model.StagedPending)
	if err != nil {
		return BatchResult{}, fmt.Errorf("staging: reject all: %w", err)
	}
	var out BatchResult
	for _, item := range pending {
		moved, err := s.Reject(ctx, item.ID)
		if err != nil {
			return out, err
		}
		if moved {
			out.Rejected++
		} else {
			out.Skipped++
		}
	}
	return out, nil
}
