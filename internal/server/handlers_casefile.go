package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/casedir"
	"github.com/casetrace/casetrace/internal/model"
)

// HandleCreateStatement records a witness or subject statement.
func (h *Handlers) HandleCreateStatement(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var s model.Statement
	if err := decodeJSON(r, &s); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	s, err := cs.DB.InsertStatement(r.Context(), s)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, s)
}

// HandleListStatements lists statements, optionally by speaker.
func (h *Handlers) HandleListStatements(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	stmts, err := cs.DB.ListStatements(r.Context(), r.URL.Query().Get("speaker"))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stmts)
}

// HandleCreateAnomaly records a detail that does not fit.
func (h *Handlers) HandleCreateAnomaly(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var a model.Anomaly
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	a, err := cs.DB.InsertAnomaly(r.Context(), a)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, a)
}

// HandleListAnomalies lists recorded anomalies.
func (h *Handlers) HandleListAnomalies(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	anomalies, err := cs.DB.ListAnomalies(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, anomalies)
}

// HandleSetVictimField writes one victimology field.
func (h *Handlers) HandleSetVictimField(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var f model.VictimField
	if err := decodeJSON(r, &f); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	f, err := cs.DB.SetVictimField(r.Context(), f)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, f)
}

// HandleVictimProfile returns the victimology profile.
func (h *Handlers) HandleVictimProfile(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	fields, err := cs.DB.VictimProfile(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, fields)
}

// HandleCreateReviewItem adds a case-review checklist entry.
func (h *Handlers) HandleCreateReviewItem(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var item model.ReviewItem
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	item, err := cs.DB.InsertReviewItem(r.Context(), item)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, item)
}

// HandleListReviewItems returns the review checklist.
func (h *Handlers) HandleListReviewItems(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	items, err := cs.DB.ListReviewItems(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

// HandleSetReviewStatus updates one checklist entry.
func (h *Handlers) HandleSetReviewStatus(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid review item id")
		return
	}

	var req struct {
		Status model.ReviewStatus `json:"status"`
		Notes  *string            `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := cs.DB.SetReviewItemStatus(r.Context(), id, req.Status, req.Notes); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"updated": id})
}

// HandleCrossReference asks the model to compare recorded statements
// against the timeline and report contradictions.
func (h *Handlers) HandleCrossReference(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	if h.client == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUpstream,
			"no model backend configured")
		return
	}
	ctx := r.Context()

	stmts, err := cs.DB.ListStatements(ctx, "")
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if len(stmts) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeValidation,
			"no statements recorded")
		return
	}
	events, err := cs.DB.ListEvents(ctx, "")
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	var sb, tb strings.Builder
	for _, s := range stmts {
		when := "undated"
		if s.Date != nil {
			when = *s.Date
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", s.Speaker, when, s.Content)
	}
	for _, e := range events {
		when := "undated"
		if e.Start != nil {
			when = *e.Start
		}
		fmt.Fprintf(&tb, "- %s: %s\n", when, e.Description)
	}

	prompt := ai.CrossReferencePrompt(sb.String(), tb.String())
	raw, genErr := h.client.GenerateJSON(ctx, prompt)

	analysis := model.AIAnalysis{
		EntityType: "case",
		EntityID:   0,
		Mode:       "cross-reference",
		Prompt:     prompt,
		Success:    genErr == nil,
	}
	mdl := h.client.Model()
	analysis.Model = &mdl
	if genErr != nil {
		msg := genErr.Error()
		analysis.Error = &msg
	} else {
		analysis.Response = &raw
	}
	if _, err := cs.DB.RecordAnalysis(ctx, analysis); err != nil {
		h.logger.Warn("record analysis", "error", err)
	}
	if genErr != nil {
		writeStorageError(w, r, genErr)
		return
	}

	doc, err := ai.ExtractJSON(raw)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstream,
			"model returned no parseable JSON")
		return
	}
	var out struct {
		Findings json.RawMessage `json:"findings"`
	}
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstream,
			"model returned malformed findings")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"findings": out.Findings})
}

// buildCaseSummary composes a plain-text digest of the case record for
// model review prompts.
func buildCaseSummary(ctx context.Context, cs *casedir.Case) (string, error) {
	var b strings.Builder

	hyps, err := cs.DB.ListHypotheses(ctx)
	if err != nil {
		return "", err
	}
	if len(hyps) > 0 {
		b.WriteString("HYPOTHESES:\n")
		for _, hp := range hyps {
			fmt.Fprintf(&b, "- [%s] %s\n", hp.Tier, hp.Description)
		}
	}

	evidence, err := cs.DB.ListEvidence(ctx, "")
	if err != nil {
		return "", err
	}
	if len(evidence) > 0 {
		b.WriteString("\nEVIDENCE:\n")
		for _, ev := range evidence {
			fmt.Fprintf(&b, "- (%s, %s) %s\n", ev.EvidenceType, ev.Status, ev.Name)
		}
	}

	events, err := cs.DB.ListEvents(ctx, "")
	if err != nil {
		return "", err
	}
	if len(events) > 0 {
		b.WriteString("\nTIMELINE:\n")
		for _, ev := range events {
			when := "undated"
			if ev.Start != nil {
				when = *ev.Start
			}
			fmt.Fprintf(&b, "- %s: %s\n", when, ev.Description)
		}
	}

	anomalies, err := cs.DB.ListAnomalies(ctx)
	if err != nil {
		return "", err
	}
	if len(anomalies) > 0 {
		b.WriteString("\nANOMALIES:\n")
		for _, a := range anomalies {
			fmt.Fprintf(&b, "- %s\n", a.Description)
		}
	}

	victim, err := cs.DB.VictimProfile(ctx)
	if err != nil {
		return "", err
	}
	if len(victim) > 0 {
		b.WriteString("\nVICTIM PROFILE:\n")
		for _, f := range victim {
			fmt.Fprintf(&b, "- %s: %s\n", f.FieldName, f.FieldValue)
		}
	}

	if b.Len() == 0 {
		return "The case record is empty.", nil
	}
	return b.String(), nil
}
