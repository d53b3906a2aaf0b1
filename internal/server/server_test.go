package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrace/casetrace/internal/ach"
	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/casedir"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/server"
)

type env struct {
	t   *testing.T
	srv *httptest.Server
}

func newEnv(t *testing.T) *env {
	return newEnvWithBackend(t, "")
}

// newEnvWithBackend wires a fake model backend when backendURL is set.
func newEnvWithBackend(t *testing.T, backendURL string) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := casedir.NewManager(t.TempDir(), logger)
	require.NoError(t, err)

	var client *ai.Client
	if backendURL != "" {
		client = ai.NewClient(backendURL, "test-model", 5*time.Second, logger)
	}
	s := server.New(server.ServerConfig{
		Manager:             mgr,
		Client:              client,
		Logger:              logger,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
		MaxUploadBytes:      1 << 20,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Shutdown(context.Background())
	})
	return &env{t: t, srv: srv}
}

// do issues a request and decodes the data half of the response envelope
// into out when the status is below 400, or asserts the error code matches
// wantCode otherwise.
func (e *env) do(method, path string, body, out any, wantStatus int, wantCode string) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	require.Equal(e.t, wantStatus, resp.StatusCode, "%s %s", method, path)

	if wantStatus >= 400 {
		var apiErr model.APIError
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&apiErr))
		assert.Equal(e.t, wantCode, apiErr.Error.Code)
		return
	}
	if out == nil {
		return
	}
	var envl struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&envl))
	require.NoError(e.t, json.Unmarshal(envl.Data, out))
}

func (e *env) createCase(name string) string {
	e.t.Helper()
	var created struct {
		Slug string `json:"slug"`
	}
	e.do(http.MethodPost, "/v1/cases", map[string]string{"name": name},
		&created, http.StatusCreated, "")
	return created.Slug
}

func TestHealthAndEnvelope(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	var envl struct {
		Data map[string]string  `json:"data"`
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envl))
	assert.Equal(t, "ok", envl.Data["status"])
	assert.Equal(t, "test", envl.Data["version"])
	assert.NotEmpty(t, envl.Meta.RequestID)
}

func TestRequestIDPassthrough(t *testing.T) {
	e := newEnv(t)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-me-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-me-123", resp.Header.Get("X-Request-ID"))
}

func TestCaseLifecycle(t *testing.T) {
	e := newEnv(t)

	slug := e.createCase("Jane Doe 1987")
	assert.Equal(t, "jane-doe-1987", slug)

	// Duplicate slug conflicts.
	e.do(http.MethodPost, "/v1/cases", map[string]string{"name": "JANE doe 1987"},
		nil, http.StatusConflict, model.ErrCodeConflict)

	var listed struct {
		Cases []string `json:"cases"`
	}
	e.do(http.MethodGet, "/v1/cases", nil, &listed, http.StatusOK, "")
	assert.Equal(t, []string{"jane-doe-1987"}, listed.Cases)

	e.do(http.MethodDelete, "/v1/cases/jane-doe-1987", nil, nil, http.StatusOK, "")
	e.do(http.MethodDelete, "/v1/cases/jane-doe-1987", nil,
		nil, http.StatusNotFound, model.ErrCodeNotFound)
}

func TestUnknownCaseReturns404(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodGet, "/v1/cases/no-such-case/sources", nil,
		nil, http.StatusNotFound, model.ErrCodeNotFound)
}

func TestSourceRatingFlow(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("Rating Flow")
	base := "/v1/cases/" + slug

	var src model.Source
	e.do(http.MethodPost, base+"/sources", map[string]any{
		"url":         "https://www.namus.gov/MissingPersons/Case#/1",
		"raw_text":    "case page text",
		"source_type": model.SourceTypeOfficial,
	}, &src, http.StatusCreated, "")
	require.NotZero(t, src.ID)
	assert.Nil(t, src.SourceReliability)

	// The machine suggestion knows the domain but stores nothing.
	var sug struct {
		Composite    float64 `json:"composite"`
		AlreadyRated bool    `json:"already_rated"`
	}
	path := fmt.Sprintf("%s/sources/%d/suggestion", base, src.ID)
	e.do(http.MethodGet, path, nil, &sug, http.StatusOK, "")
	assert.False(t, sug.AlreadyRated)
	assert.Greater(t, sug.Composite, 0.5)

	var rated model.Source
	path = fmt.Sprintf("%s/sources/%d/rating", base, src.ID)
	e.do(http.MethodPut, path, map[string]string{
		"reliability": "B",
		"accuracy":    "2",
	}, &rated, http.StatusOK, "")
	require.NotNil(t, rated.SourceReliability)
	assert.Equal(t, model.ReliabilityB, *rated.SourceReliability)
	assert.InDelta(t, 0.8, rated.ReliabilityScore, 1e-9)

	// Out-of-scheme grades are rejected.
	e.do(http.MethodPut, path, map[string]string{
		"reliability": "G",
		"accuracy":    "2",
	}, nil, http.StatusUnprocessableEntity, model.ErrCodeValidation)
}

func TestEntityAliasResolution(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("Alias Case")
	base := "/v1/cases/" + slug

	var canonical, alias model.Entity
	e.do(http.MethodPost, base+"/entities", map[string]string{
		"name": "Dana Holt", "entity_type": "person",
	}, &canonical, http.StatusCreated, "")
	e.do(http.MethodPost, base+"/entities", map[string]string{
		"name": "D. Holt", "entity_type": "person",
	}, &alias, http.StatusCreated, "")

	path := fmt.Sprintf("%s/entities/%d/canonical", base, alias.ID)
	e.do(http.MethodPut, path, map[string]int64{"canonical_id": canonical.ID},
		nil, http.StatusOK, "")

	var resolved model.Entity
	path = fmt.Sprintf("%s/entities/%d?resolve=true", base, alias.ID)
	e.do(http.MethodGet, path, nil, &resolved, http.StatusOK, "")
	assert.Equal(t, canonical.ID, resolved.ID)

	// Chaining aliases is refused.
	var third model.Entity
	e.do(http.MethodPost, base+"/entities", map[string]string{
		"name": "Holt, Dana", "entity_type": "person",
	}, &third, http.StatusCreated, "")
	path = fmt.Sprintf("%s/entities/%d/canonical", base, third.ID)
	e.do(http.MethodPut, path, map[string]int64{"canonical_id": alias.ID},
		nil, http.StatusUnprocessableEntity, model.ErrCodeValidation)
}

func TestMatrixFlow(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("Matrix Case")
	base := "/v1/cases/" + slug

	var h1, h2 model.Hypothesis
	e.do(http.MethodPost, base+"/hypotheses", map[string]string{
		"description": "ran away voluntarily",
	}, &h1, http.StatusCreated, "")
	e.do(http.MethodPost, base+"/hypotheses", map[string]string{
		"description": "stranger abduction",
	}, &h2, http.StatusCreated, "")
	assert.Equal(t, model.TierPlausible, h1.Tier)

	var e1, e2 model.EvidenceItem
	e.do(http.MethodPost, base+"/evidence", map[string]string{
		"name": "packed bag missing", "evidence_type": "circumstantial",
	}, &e1, http.StatusCreated, "")
	e.do(http.MethodPost, base+"/evidence", map[string]string{
		"name": "wallet left behind", "evidence_type": "physical",
	}, &e2, http.StatusCreated, "")

	score := func(hyp, ev int64, c, w string) {
		e.do(http.MethodPut, base+"/ach/scores", map[string]any{
			"hypothesis_id": hyp, "evidence_id": ev,
			"consistency": c, "diagnostic_weight": w,
		}, nil, http.StatusOK, "")
	}
	score(h1.ID, e1.ID, "C", "H")
	score(h1.ID, e2.ID, "I", "H")
	score(h2.ID, e1.ID, "I", "L")
	score(h2.ID, e2.ID, "C", "M")

	var m ach.Matrix
	e.do(http.MethodGet, base+"/ach/matrix", nil, &m, http.StatusOK, "")
	require.Len(t, m.Hypotheses, 2)
	require.Len(t, m.Evidence, 2)
	require.Len(t, m.Summaries, 2)

	// h2 carries less weighted inconsistency (1.0 vs 3.0) and ranks first.
	assert.Equal(t, h2.ID, m.Summaries[0].HypothesisID)
	assert.Equal(t, 1, m.Summaries[0].Rank)
	assert.InDelta(t, 1.0, m.Summaries[0].WeightedInconsistency, 1e-9)
	assert.Equal(t, h1.ID, m.Summaries[1].HypothesisID)
	assert.InDelta(t, 3.0, m.Summaries[1].WeightedInconsistency, 1e-9)

	// Re-scoring a cell replaces it rather than adding a row.
	score(h1.ID, e2.ID, "N", "L")
	var sums []ach.Summary
	e.do(http.MethodGet, base+"/ach/summaries", nil, &sums, http.StatusOK, "")
	require.Len(t, sums, 2)
	assert.Equal(t, h1.ID, sums[0].HypothesisID)
	assert.Zero(t, sums[0].WeightedInconsistency)

	var diags []ach.Diagnosticity
	e.do(http.MethodGet, base+"/ach/diagnosticity", nil, &diags, http.StatusOK, "")
	require.Len(t, diags, 2)
	assert.Equal(t, e1.ID, diags[0].EvidenceID)

	// A cell against a missing hypothesis fails validation, not a silent
	// insert.
	e.do(http.MethodPut, base+"/ach/scores", map[string]any{
		"hypothesis_id": 9999, "evidence_id": e1.ID, "consistency": "C",
	}, nil, http.StatusUnprocessableEntity, model.ErrCodeValidation)
}

func TestImportAndReviewQueue(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("Import Case")
	base := "/v1/cases/" + slug

	page := `<html><body>
<h1>Dana Holt</h1>
<main>
<div class="data-field"><span class="data-label">Legal First Name</span>
<span class="data-value">Dana</span></div>
<div class="data-field"><span class="data-label">Legal Last Name</span>
<span class="data-value">Holt</span></div>
<div class="data-field"><span class="data-label">Location</span>
<span class="data-value">Cedar Falls, IA</span></div>
</main>
</body></html>`

	var res struct {
		Parser string             `json:"parser"`
		Staged []model.StagedItem `json:"staged"`
	}
	e.do(http.MethodPost, base+"/import", map[string]string{
		"url":  "https://www.namus.gov/MissingPersons/Case#/1",
		"html": page,
	}, &res, http.StatusCreated, "")
	assert.Equal(t, "namus", res.Parser)
	require.Len(t, res.Staged, 2)

	// Accept one, reject the rest.
	var accepted struct {
		Applied    bool   `json:"applied"`
		RecordType string `json:"record_type"`
	}
	path := fmt.Sprintf("%s/staged/%d/accept", base, res.Staged[0].ID)
	e.do(http.MethodPost, path, nil, &accepted, http.StatusOK, "")
	assert.True(t, accepted.Applied)
	assert.Equal(t, "entity", accepted.RecordType)

	var batch struct {
		Rejected int `json:"rejected"`
	}
	e.do(http.MethodPost, base+"/staged/reject-all", nil, &batch, http.StatusOK, "")
	assert.Equal(t, 1, batch.Rejected)

	var pending []model.StagedItem
	e.do(http.MethodGet, base+"/staged?status=pending", nil, &pending, http.StatusOK, "")
	assert.Empty(t, pending)

	var entities []model.Entity
	e.do(http.MethodGet, base+"/entities", nil, &entities, http.StatusOK, "")
	require.Len(t, entities, 1)
	assert.Equal(t, "Dana Holt", entities[0].Name)
}

func TestStagedBatchRoute(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("Batch Case")
	base := "/v1/cases/" + slug

	page := `<html><body>
<h1>Dana Holt</h1>
<main>
<div class="data-field"><span class="data-label">Legal First Name</span>
<span class="data-value">Dana</span></div>
<div class="data-field"><span class="data-label">Legal Last Name</span>
<span class="data-value">Holt</span></div>
<div class="data-field"><span class="data-label">Location</span>
<span class="data-value">Cedar Falls, IA</span></div>
</main>
</body></html>`

	var res struct {
		Staged []model.StagedItem `json:"staged"`
	}
	e.do(http.MethodPost, base+"/import", map[string]string{
		"url":  "https://www.namus.gov/MissingPersons/Case#/2",
		"html": page,
	}, &res, http.StatusCreated, "")
	require.Len(t, res.Staged, 2)

	var out struct {
		Accepted int `json:"accepted"`
		Rejected int `json:"rejected"`
		Skipped  int `json:"skipped"`
	}
	e.do(http.MethodPost, base+"/staged/batch", map[string]any{
		"action": "accept", "ids": []int64{res.Staged[0].ID, 9999},
	}, &out, http.StatusOK, "")
	assert.Equal(t, 1, out.Accepted)
	assert.Equal(t, 1, out.Skipped)

	e.do(http.MethodPost, base+"/staged/batch", map[string]any{
		"action": "reject", "ids": []int64{res.Staged[1].ID},
	}, &out, http.StatusOK, "")
	assert.Equal(t, 1, out.Rejected)

	var pending []model.StagedItem
	e.do(http.MethodGet, base+"/staged?status=pending", nil, &pending, http.StatusOK, "")
	assert.Empty(t, pending)

	e.do(http.MethodPost, base+"/staged/batch", map[string]any{
		"action": "accept", "ids": []int64{},
	}, nil, http.StatusUnprocessableEntity, model.ErrCodeValidation)
}

func TestImportBlockedSite(t *testing.T) {
	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer blocked.Close()

	e := newEnv(t)
	slug := e.createCase("Blocked Import")
	e.do(http.MethodPost, "/v1/cases/"+slug+"/import", map[string]string{
		"url": blocked.URL,
	}, nil, http.StatusBadGateway, model.ErrCodeUpstream)
}

func TestValidationErrors(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("Validation Case")
	base := "/v1/cases/" + slug

	// Unknown enum value fails the schema check.
	e.do(http.MethodPost, base+"/evidence", map[string]string{
		"name": "odd item", "evidence_type": "ectoplasm",
	}, nil, http.StatusUnprocessableEntity, model.ErrCodeValidation)

	// Unknown fields are rejected outright.
	e.do(http.MethodPost, base+"/entities", map[string]string{
		"name": "x", "entity_type": "person", "nickname": "unsupported",
	}, nil, http.StatusBadRequest, model.ErrCodeBadRequest)
}

func TestExtractWithoutBackend(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("No Backend")
	base := "/v1/cases/" + slug

	var src model.Source
	e.do(http.MethodPost, base+"/sources", map[string]string{
		"raw_text": "some text", "source_type": "manual",
	}, &src, http.StatusCreated, "")

	path := fmt.Sprintf("%s/sources/%d/extract", base, src.ID)
	e.do(http.MethodPost, path, nil, nil, http.StatusServiceUnavailable, model.ErrCodeUpstream)

	e.do(http.MethodPost, base+"/ai-review", map[string]string{},
		nil, http.StatusServiceUnavailable, model.ErrCodeUpstream)
}

func TestCaseSummaryCounts(t *testing.T) {
	e := newEnv(t)
	slug := e.createCase("Summary Case")
	base := "/v1/cases/" + slug

	e.do(http.MethodPost, base+"/entities", map[string]string{
		"name": "Dana Holt", "entity_type": "person",
	}, nil, http.StatusCreated, "")
	e.do(http.MethodPost, base+"/events", map[string]string{
		"description": "last seen", "timestamp_start": "1987-06-12",
	}, nil, http.StatusCreated, "")

	var summary struct {
		Case   string         `json:"case"`
		Counts map[string]int `json:"counts"`
	}
	e.do(http.MethodGet, base+"/summary", nil, &summary, http.StatusOK, "")
	assert.Equal(t, slug, summary.Case)
	assert.Equal(t, 1, summary.Counts["entities"])
	assert.Equal(t, 1, summary.Counts["events"])
	assert.Zero(t, summary.Counts["sources"])
}

// fakeModel serves a canned completion on the generate endpoint.
func fakeModel(t *testing.T, response string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": response,
			"done":     true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClassifySource(t *testing.T) {
	backend := fakeModel(t, "```json\n{\"reliability\":\"B\",\"accuracy\":\"2\",\"rationale\":\"official missing persons registry\"}\n```")
	e := newEnvWithBackend(t, backend.URL)
	slug := e.createCase("Classify Case")
	base := "/v1/cases/" + slug

	var src model.Source
	e.do(http.MethodPost, base+"/sources", map[string]string{
		"url":         "https://www.namus.gov/MissingPersons/Case#/12345",
		"source_type": "official",
		"raw_text":    "Dana Holt, missing since June 1987.",
	}, &src, http.StatusCreated, "")

	var out struct {
		Reliability  string  `json:"reliability"`
		Accuracy     string  `json:"accuracy"`
		Rationale    string  `json:"rationale"`
		Composite    float64 `json:"composite"`
		AlreadyRated bool    `json:"already_rated"`
	}
	path := fmt.Sprintf("%s/sources/%d/classify", base, src.ID)
	e.do(http.MethodPost, path, nil, &out, http.StatusOK, "")
	assert.Equal(t, "B", out.Reliability)
	assert.Equal(t, "2", out.Accuracy)
	assert.NotEmpty(t, out.Rationale)
	assert.InDelta(t, 0.8, out.Composite, 0.001)
	assert.False(t, out.AlreadyRated)

	// Advisory only: the stored source keeps its blank grades.
	var stored model.Source
	e.do(http.MethodGet, fmt.Sprintf("%s/sources/%d", base, src.ID), nil, &stored, http.StatusOK, "")
	assert.Nil(t, stored.SourceReliability)
	assert.Nil(t, stored.InformationAccuracy)
}

func TestClassifySourceBadGrades(t *testing.T) {
	backend := fakeModel(t, `{"reliability":"G","accuracy":"9","rationale":"made up"}`)
	e := newEnvWithBackend(t, backend.URL)
	slug := e.createCase("Classify Bad Case")
	base := "/v1/cases/" + slug

	var src model.Source
	e.do(http.MethodPost, base+"/sources", map[string]string{
		"source_type": "rumor", "raw_text": "heard it somewhere",
	}, &src, http.StatusCreated, "")

	path := fmt.Sprintf("%s/sources/%d/classify", base, src.ID)
	e.do(http.MethodPost, path, nil, nil, http.StatusBadGateway, model.ErrCodeUpstream)
}

func TestCrossReference(t *testing.T) {
	backend := fakeModel(t, `{"findings":[{"type":"inconsistency","detail":"witness places Dana at the lake after the last confirmed sighting"}]}`)
	e := newEnvWithBackend(t, backend.URL)
	slug := e.createCase("Cross Ref Case")
	base := "/v1/cases/" + slug

	// No statements yet.
	e.do(http.MethodPost, base+"/cross-reference", nil, nil,
		http.StatusUnprocessableEntity, model.ErrCodeValidation)

	e.do(http.MethodPost, base+"/statements", map[string]string{
		"speaker": "R. Mercer", "content": "Saw Dana near the lake around eight.",
		"date": "1987-06-12",
	}, nil, http.StatusCreated, "")
	e.do(http.MethodPost, base+"/events", map[string]string{
		"description": "last confirmed sighting", "timestamp_start": "1987-06-12T17:30:00",
	}, nil, http.StatusCreated, "")

	var out struct {
		Findings []map[string]any `json:"findings"`
	}
	e.do(http.MethodPost, base+"/cross-reference", nil, &out, http.StatusOK, "")
	require.Len(t, out.Findings, 1)
	assert.Equal(t, "inconsistency", out.Findings[0]["type"])
}
