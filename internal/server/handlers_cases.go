package server

import (
	"errors"
	"net/http"

	"github.com/casetrace/casetrace/internal/casedir"
	"github.com/casetrace/casetrace/internal/model"
)

// resolveCase opens the case named in the path, writing the error response
// itself when the case is missing.
func (h *Handlers) resolveCase(w http.ResponseWriter, r *http.Request) (*casedir.Case, bool) {
	slug := r.PathValue("case")
	cs, err := h.caseFor(r.Context(), slug)
	if err != nil {
		if errors.Is(err, casedir.ErrCaseNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "case not found: "+slug)
		} else {
			h.logger.Error("open case", "slug", slug, "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "internal error")
		}
		return nil, false
	}
	return cs, true
}

// limitBody caps JSON request bodies.
func (h *Handlers) limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
}

// HandleHealth reports service liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleCreateCase creates a new case workspace.
func (h *Handlers) HandleCreateCase(w http.ResponseWriter, r *http.Request) {
	h.limitBody(w, r)
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusUnprocessableEntity, model.ErrCodeValidation, "name is required")
		return
	}

	cs, err := h.mgr.Create(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, casedir.ErrCaseExists) {
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "case already exists")
			return
		}
		h.logger.Error("create case", "name", req.Name, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "internal error")
		return
	}

	h.mu.Lock()
	h.open[cs.Slug] = cs
	h.mu.Unlock()

	writeJSON(w, r, http.StatusCreated, map[string]string{
		"slug": cs.Slug,
		"dir":  cs.Dir,
	})
}

// HandleListCases lists case slugs in the workspace.
func (h *Handlers) HandleListCases(w http.ResponseWriter, r *http.Request) {
	slugs, err := h.mgr.List()
	if err != nil {
		h.logger.Error("list cases", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "internal error")
		return
	}
	if slugs == nil {
		slugs = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"cases": slugs})
}

// HandleDeleteCase removes a case and everything in it.
func (h *Handlers) HandleDeleteCase(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("case")
	h.evict(slug)
	if err := h.mgr.Delete(slug); err != nil {
		if errors.Is(err, casedir.ErrCaseNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "case not found: "+slug)
			return
		}
		h.logger.Error("delete case", "slug", slug, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "internal error")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"deleted": slug})
}

// HandleCaseSummary reports record counts across the case.
func (h *Handlers) HandleCaseSummary(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	summary := map[string]int{}
	count := func(key string, n int, err error) bool {
		if err != nil {
			writeStorageError(w, r, err)
			return false
		}
		summary[key] = n
		return true
	}

	sources, err := cs.DB.ListSources(ctx)
	if !count("sources", len(sources), err) {
		return
	}
	entities, err := cs.DB.ListEntities(ctx, "")
	if !count("entities", len(entities), err) {
		return
	}
	events, err := cs.DB.ListEvents(ctx, "")
	if !count("events", len(events), err) {
		return
	}
	evidence, err := cs.DB.ListEvidence(ctx, "")
	if !count("evidence", len(evidence), err) {
		return
	}
	hyps, err := cs.DB.ListHypotheses(ctx)
	if !count("hypotheses", len(hyps), err) {
		return
	}
	atts, err := cs.DB.ListAttachments(ctx)
	if !count("attachments", len(atts), err) {
		return
	}
	pending, err := cs.DB.PendingStagedCount(ctx)
	if !count("pending_staged", pending, err) {
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"case":   cs.Slug,
		"counts": summary,
	})
}
