package staging_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/staging"
	"github.com/casetrace/casetrace/internal/storage"
	"github.com/casetrace/casetrace/migrations"
)

func openDB(t *testing.T) *storage.CaseDB {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "case.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	return db
}

func newService(t *testing.T, db *storage.CaseDB, client *ai.Client) *staging.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return staging.NewService(db, client, logger)
}

func addSource(t *testing.T, db *storage.CaseDB, text string) model.Source {
	t.Helper()
	src, err := db.InsertSource(context.Background(), model.Source{
		RawText:    text,
		SourceType: model.SourceTypeNews,
	})
	require.NoError(t, err)
	return src
}

func ptr(s string) *string { return &s }

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name     string
		itemType model.StagedItemType
		data     string
		wantErr  bool
	}{
		{"valid entity", model.StagedEntity,
			`{"name":"Dana Holt","entity_type":"person"}`, false},
		{"entity missing name", model.StagedEntity,
			`{"entity_type":"person"}`, true},
		{"valid event", model.StagedEvent,
			`{"description":"last seen at the bus stop","timestamp_start":"1987-06-12"}`, false},
		{"event missing description", model.StagedEvent,
			`{"timestamp_start":"1987-06-12"}`, true},
		{"valid evidence", model.StagedEvidence,
			`{"name":"bus ticket stub","evidence_type":"physical"}`, false},
		{"evidence unknown type", model.StagedEvidence,
			`{"name":"bus ticket stub","evidence_type":"ectoplasm"}`, true},
		{"valid relationship", model.StagedRelationship,
			`{"entity_a":"Dana Holt","entity_b":"Ray Holt","relationship_type":"sibling"}`, false},
		{"relationship missing endpoint", model.StagedRelationship,
			`{"entity_a":"Dana Holt","relationship_type":"sibling"}`, true},
		{"unknown item type", model.StagedItemType("rumor"),
			`{}`, true},
		{"malformed json", model.StagedEntity,
			`{"name":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := staging.ParsePayload(tt.itemType, json.RawMessage(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, model.IsValidation(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStageAndAccept(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "witness account")

	desc := "seen near the river path"
	staged, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Entities: []staging.EntityPayload{
			{Name: "Dana Holt", EntityType: "person", Confidence: "medium"},
		},
		Events: []staging.EventPayload{
			{Description: desc, Confidence: "low"},
		},
		Evidence: []staging.EvidencePayload{
			{Name: "bus ticket stub", EvidenceType: "physical"},
		},
	})
	require.NoError(t, err)
	require.Len(t, staged, 3)
	for _, item := range staged {
		assert.Equal(t, model.StagedPending, item.Status)
		require.NotNil(t, item.SourceID)
		assert.Equal(t, src.ID, *item.SourceID)
	}

	res, err := svc.Accept(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "entity", res.RecordType)

	e, err := db.GetEntityByName(ctx, "Dana Holt")
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceMedium, e.Confidence)

	// Accepting again skips instead of re-applying.
	res, err = svc.Accept(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "already accepted", res.SkipReason)
}

func TestAcceptRelationshipResolvesEntities(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "tip line call")

	canonical, err := db.InsertEntity(ctx, model.Entity{Name: "Dana Holt", EntityType: "person"})
	require.NoError(t, err)
	alias, err := db.InsertEntity(ctx, model.Entity{Name: "D. Holt", EntityType: "person"})
	require.NoError(t, err)
	require.NoError(t, db.SetEntityCanonical(ctx, alias.ID, canonical.ID))

	staged, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Relationships: []staging.RelationshipPayload{
			{EntityA: "D. Holt", EntityB: "Unknown Driver", RelationshipType: "seen with"},
		},
	})
	require.NoError(t, err)
	require.Len(t, staged, 1)

	res, err := svc.Accept(ctx, staged[0].ID)
	require.NoError(t, err)
	require.True(t, res.Applied)
	assert.Equal(t, "relationship", res.RecordType)

	// The alias resolved to its canonical entity.
	rels, err := db.ListRelationships(ctx, canonical.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, canonical.ID, rels[0].EntityAID)

	// The unknown endpoint became a low-confidence placeholder.
	placeholder, err := db.GetEntityByName(ctx, "Unknown Driver")
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceLow, placeholder.Confidence)
	assert.Equal(t, placeholder.ID, rels[0].EntityBID)
}

func TestReject(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "forum post")

	staged, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Entities: []staging.EntityPayload{{Name: "Ghost Witness", EntityType: "person"}},
	})
	require.NoError(t, err)

	moved, err := svc.Reject(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = svc.Reject(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.False(t, moved)

	// Nothing reached the case record.
	_, err = db.GetEntityByName(ctx, "Ghost Witness")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAcceptFailedRelationshipLeavesNoTrace(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "anonymous letter")

	// Both endpoints resolve to the same placeholder, so the relationship
	// insert fails after an entity was already created inside the accept.
	staged, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Relationships: []staging.RelationshipPayload{
			{EntityA: "The Stranger", EntityB: "The Stranger", RelationshipType: "seen with"},
		},
	})
	require.NoError(t, err)
	require.Len(t, staged, 1)

	_, err = svc.Accept(ctx, staged[0].ID)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err), "got %v", err)

	// The placeholder rolled back with the rest of the accept.
	_, err = db.GetEntityByName(ctx, "The Stranger")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rels, err := db.ListRelationships(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rels)

	item, err := db.GetStagedItem(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StagedPending, item.Status)
}

func TestAcceptFailedEventStaysPending(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "clipping")

	staged, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Events: []staging.EventPayload{{
			Description:    "impossible span",
			TimestampStart: ptr("1987-06-12T17:00:00"),
			TimestampEnd:   ptr("1987-06-12T09:00:00"),
		}},
	})
	require.NoError(t, err)
	require.Len(t, staged, 1)

	_, err = svc.Accept(ctx, staged[0].ID)
	require.Error(t, err)

	events, err := db.ListEvents(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, events)

	item, err := db.GetStagedItem(ctx, staged[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StagedPending, item.Status)
}

func TestBatchReviewsSelectedIDs(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "clipping")

	staged, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Entities: []staging.EntityPayload{
			{Name: "Dana Holt", EntityType: "person"},
			{Name: "River Bridge", EntityType: "location"},
			{Name: "Ray Holt", EntityType: "person"},
		},
	})
	require.NoError(t, err)
	require.Len(t, staged, 3)

	// Accept a subset; a stale id is skipped, not fatal.
	out, err := svc.Batch(ctx, "accept", []int64{staged[0].ID, 9999, staged[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Accepted)
	assert.Equal(t, 1, out.Skipped)
	require.Len(t, out.Results, 3)
	assert.Equal(t, int64(9999), out.Results[1].ItemID)
	assert.NotEmpty(t, out.Results[1].SkipReason)

	// Reject the rest; an already-accepted id reports as skipped.
	out, err = svc.Batch(ctx, "reject", []int64{staged[2].ID, staged[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Rejected)
	assert.Equal(t, 1, out.Skipped)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "not pending", out.Results[1].SkipReason)

	// The untouched subset state: two accepted, one rejected, none pending.
	pending, err := db.ListStagedItems(ctx, model.StagedPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = svc.Batch(ctx, "archive", []int64{staged[0].ID})
	assert.True(t, model.IsValidation(err), "got %v", err)
}

func TestAcceptAllSkipsBadPayloads(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "clipping")

	_, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Entities: []staging.EntityPayload{
			{Name: "Dana Holt", EntityType: "person"},
			{Name: "River Bridge", EntityType: "location"},
		},
	})
	require.NoError(t, err)

	// An item whose payload no longer parses.
	bad, err := db.InsertStagedItems(ctx, []model.StagedItem{{
		SourceID: &src.ID,
		ItemType: model.StagedEntity,
		ItemData: json.RawMessage(`{"entity_type":"person"}`),
	}})
	require.NoError(t, err)

	out, err := svc.AcceptAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Accepted)
	assert.Equal(t, 1, out.Skipped)
	require.Len(t, out.Results, 3)

	var skipped *staging.AcceptResult
	for i := range out.Results {
		if out.Results[i].ItemID == bad[0].ID {
			skipped = &out.Results[i]
		}
	}
	require.NotNil(t, skipped)
	assert.False(t, skipped.Applied)
	assert.NotEmpty(t, skipped.SkipReason)

	// The bad item stays pending for manual review.
	item, err := db.GetStagedItem(ctx, bad[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StagedPending, item.Status)
}

func TestRejectAll(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	ctx := context.Background()
	src := addSource(t, db, "clipping")

	_, err := svc.Stage(ctx, src.ID, staging.Proposals{
		Entities: []staging.EntityPayload{
			{Name: "A", EntityType: "person"},
			{Name: "B", EntityType: "person"},
		},
	})
	require.NoError(t, err)

	out, err := svc.RejectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Rejected)
	assert.Zero(t, out.Skipped)

	pending, err := db.ListStagedItems(ctx, model.StagedPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExtractWithoutClient(t *testing.T) {
	db := openDB(t)
	svc := newService(t, db, nil)
	src := addSource(t, db, "text")

	_, err := svc.ExtractFromSource(context.Background(), src.ID)
	assert.ErrorIs(t, err, staging.ErrNoClient)
}

func TestExtractFromSource(t *testing.T) {
	extraction := `{"entities":[{"name":"Dana Holt","entity_type":"person","confidence":"medium"}],` +
		`"events":[{"description":"left work at 5pm","timestamp_start":"1987-06-12T17:00"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		body := fmt.Sprintf("```json\n%s\n```", extraction)
		json.NewEncoder(w).Encode(map[string]any{"response": body, "done": true})
	}))
	defer srv.Close()

	db := openDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := ai.NewClient(srv.URL, "test-model", 5*time.Second, logger)
	svc := newService(t, db, client)
	ctx := context.Background()
	src := addSource(t, db, "Dana Holt left work at 5pm and was not seen again.")

	staged, err := svc.ExtractFromSource(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.Equal(t, model.StagedEntity, staged[0].ItemType)
	assert.Equal(t, model.StagedEvent, staged[1].ItemType)

	// The model call lands in the audit trail and the items point at it.
	analyses, err := db.ListAnalyses(ctx, "source", src.ID)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.True(t, analyses[0].Success)
	require.NotNil(t, staged[0].AnalysisID)
	assert.Equal(t, analyses[0].ID, *staged[0].AnalysisID)
}

func TestExtractRecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	db := openDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := ai.NewClient(srv.URL, "missing", 5*time.Second, logger)
	svc := newService(t, db, client)
	ctx := context.Background()
	src := addSource(t, db, "text")

	_, err := svc.ExtractFromSource(ctx, src.ID)
	require.Error(t, err)
	assert.True(t, ai.IsExternal(err))

	analyses, err := db.ListAnalyses(ctx, "source", src.ID)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.False(t, analyses[0].Success)
	require.NotNil(t, analyses[0].Error)
}
