package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/reliability"
	"github.com/casetrace/casetrace/internal/staging"
)

// HandleCreateSource ingests a new source.
func (h *Handlers) HandleCreateSource(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var req struct {
		URL        *string `json:"url"`
		RawText    string  `json:"raw_text"`
		SourceType string  `json:"source_type"`
		Notes      *string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	src := model.Source{
		URL:              req.URL,
		RawText:          req.RawText,
		SourceType:       req.SourceType,
		ReliabilityScore: 0.5,
		Notes:            req.Notes,
	}
	src, err := cs.DB.InsertSource(r.Context(), src)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, src)
}

// HandleListSources lists all sources.
func (h *Handlers) HandleListSources(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	sources, err := cs.DB.ListSources(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sources)
}

// HandleGetSource fetches one source.
func (h *Handlers) HandleGetSource(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid source id")
		return
	}
	src, err := cs.DB.GetSource(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, src)
}

// HandleRateSource applies a human Admiralty rating to a source.
func (h *Handlers) HandleRateSource(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid source id")
		return
	}

	var req struct {
		Reliability model.ReliabilityGrade `json:"reliability"`
		Accuracy    model.AccuracyGrade    `json:"accuracy"`
		Access      *string                `json:"access_assessment"`
		Bias        *string                `json:"bias_assessment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	src, err := cs.DB.RateSource(r.Context(), id, req.Reliability, req.Accuracy, req.Access, req.Bias)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, src)
}

// HandleSuggestRating proposes a starting rating without storing it. A
// human rating, once made, is never overwritten by a suggestion.
func (h *Handlers) HandleSuggestRating(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid source id")
		return
	}
	src, err := cs.DB.GetSource(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	sug := reliability.Suggest(src)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"suggestion": sug,
		"composite":  reliability.Composite(sug.Reliability, sug.Accuracy),
		"already_rated": src.SourceReliability != nil &&
			src.InformationAccuracy != nil,
	})
}

// classifyExcerptLimit caps how much raw text goes into the classify prompt.
const classifyExcerptLimit = 3000

// HandleClassifySource asks the model for advisory Admiralty grades. The
// result is returned, never stored; applying it goes through the rating
// endpoint like any human judgment.
func (h *Handlers) HandleClassifySource(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	if h.client == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUpstream,
			"no model backend configured")
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid source id")
		return
	}
	src, err := cs.DB.GetSource(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	excerpt := src.RawText
	if len(excerpt) > classifyExcerptLimit {
		excerpt = excerpt[:classifyExcerptLimit]
	}
	var url string
	if src.URL != nil {
		url = *src.URL
	}
	prompt := ai.ReliabilityPrompt(url, src.SourceType, excerpt)
	raw, genErr := h.client.GenerateJSON(r.Context(), prompt)

	analysis := model.AIAnalysis{
		EntityType: "source",
		EntityID:   id,
		Mode:       "classify",
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
	if _, err := cs.DB.RecordAnalysis(r.Context(), analysis); err != nil {
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
	var sug struct {
		Reliability model.ReliabilityGrade `json:"reliability"`
		Accuracy    model.AccuracyGrade    `json:"accuracy"`
		Rationale   string                 `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(doc), &sug); err != nil {
		writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstream,
			"model returned malformed classification")
		return
	}
	if !sug.Reliability.Valid() || !sug.Accuracy.Valid() {
		writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstream,
			"model returned out-of-scheme grades")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"reliability": sug.Reliability,
		"accuracy":    sug.Accuracy,
		"rationale":   sug.Rationale,
		"composite":   reliability.Composite(sug.Reliability, sug.Accuracy),
		"already_rated": src.SourceReliability != nil &&
			src.InformationAccuracy != nil,
	})
}

// HandleExtractSource runs model extraction over a source's text and
// stages the proposals for review.
func (h *Handlers) HandleExtractSource(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid source id")
		return
	}

	svc := staging.NewService(cs.DB, h.client, h.logger)
	staged, err := svc.ExtractFromSource(r.Context(), id)
	if err != nil {
		if errors.Is(err, staging.ErrNoClient) {
			writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUpstream,
				"no model backend configured")
			return
		}
		writeStorageError(w, r, err)
		return
	}
	if staged == nil {
		staged = []model.StagedItem{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"staged": staged})
}
