package server

import (
	"errors"
	"net/http"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/importer"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/staging"
)

// HandleListStaged lists extraction proposals, optionally by status.
func (h *Handlers) HandleListStaged(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	items, err := cs.DB.ListStagedItems(r.Context(), model.StagedStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

// HandleAcceptStaged applies one staged item to the case record.
func (h *Handlers) HandleAcceptStaged(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid staged item id")
		return
	}
	svc := staging.NewService(cs.DB, h.client, h.logger)
	res, err := svc.Accept(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleRejectStaged marks one staged item rejected.
func (h *Handlers) HandleRejectStaged(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid staged item id")
		return
	}
	svc := staging.NewService(cs.DB, h.client, h.logger)
	moved, err := svc.Reject(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"item_id": id, "rejected": moved})
}

// HandleBatchStaged applies accept or reject to a chosen list of staged
// items and reports the per-item outcome.
func (h *Handlers) HandleBatchStaged(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var req struct {
		Action string  `json:"action"`
		IDs    []int64 `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeValidation, "ids is required")
		return
	}

	svc := staging.NewService(cs.DB, h.client, h.logger)
	res, err := svc.Batch(r.Context(), req.Action, req.IDs)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleAcceptAllStaged applies every pending staged item.
func (h *Handlers) HandleAcceptAllStaged(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	svc := staging.NewService(cs.DB, h.client, h.logger)
	res, err := svc.AcceptAll(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleRejectAllStaged rejects every pending staged item.
func (h *Handlers) HandleRejectAllStaged(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	svc := staging.NewService(cs.DB, h.client, h.logger)
	res, err := svc.RejectAll(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleImport fetches a registry or news page and stages its records.
// When html is supplied the fetch is skipped; that is the fallback for
// sites that block automated requests.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var req struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeValidation, "url is required")
		return
	}

	st := staging.NewService(cs.DB, h.client, h.logger)
	svc := importer.NewService(cs.DB, st, h.logger)

	var res importer.Result
	var err error
	if req.HTML != "" {
		res, err = svc.ImportHTML(r.Context(), req.URL, req.HTML)
	} else {
		res, err = svc.ImportURL(r.Context(), req.URL)
	}
	if err != nil {
		if errors.Is(err, importer.ErrBlocked) {
			writeError(w, r, http.StatusBadGateway, model.ErrCodeUpstream,
				"site blocked the request; retry with pasted page html")
			return
		}
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res)
}

// HandleAIReview runs an analyst-mode review over the case summary.
func (h *Handlers) HandleAIReview(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	if h.client == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUpstream,
			"no model backend configured")
		return
	}

	var req struct {
		Mode    ai.AnalystMode `json:"mode"`
		Summary string         `json:"summary"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Mode == "" {
		req.Mode = ai.ModeACH
	}
	if !req.Mode.Valid() {
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeValidation,
			"unknown analyst mode")
		return
	}

	summary := req.Summary
	if summary == "" {
		built, err := buildCaseSummary(r.Context(), cs)
		if err != nil {
			writeStorageError(w, r, err)
			return
		}
		summary = built
	}

	prompt := ai.ReviewPrompt(req.Mode, summary)
	response, genErr := h.client.Generate(r.Context(), prompt)

	analysis := model.AIAnalysis{
		EntityType: "case",
		EntityID:   0,
		Mode:       string(req.Mode),
		Prompt:     prompt,
		Success:    genErr == nil,
	}
	mdl := h.client.Model()
	analysis.Model = &mdl
	if genErr != nil {
		msg := genErr.Error()
		analysis.Error = &msg
	} else {
		analysis.Response = &response
	}
	if _, err := cs.DB.RecordAnalysis(r.Context(), analysis); err != nil {
		h.logger.Warn("record analysis", "error", err)
	}
	if genErr != nil {
		writeStorageError(w, r, genErr)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"mode":   req.Mode,
		"review": response,
	})
}
