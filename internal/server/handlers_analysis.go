package server

import (
	"net/http"
	"strconv"

	"github.com/casetrace/casetrace/internal/ach"
	"github.com/casetrace/casetrace/internal/model"
)

// HandleCreateEvidence stores a new evidence item.
func (h *Handlers) HandleCreateEvidence(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var e model.EvidenceItem
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	e, err := cs.DB.InsertEvidence(r.Context(), e)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}

// HandleListEvidence lists evidence, optionally by status.
func (h *Handlers) HandleListEvidence(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	items, err := cs.DB.ListEvidence(r.Context(), model.EvidenceStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

// HandleGetEvidence fetches one evidence item.
func (h *Handlers) HandleGetEvidence(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid evidence id")
		return
	}
	e, err := cs.DB.GetEvidence(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// HandleUpdateEvidence replaces an evidence item's mutable fields.
func (h *Handlers) HandleUpdateEvidence(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid evidence id")
		return
	}

	var e model.EvidenceItem
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	e.ID = id
	if err := cs.DB.UpdateEvidence(r.Context(), e); err != nil {
		writeStorageError(w, r, err)
		return
	}
	updated, err := cs.DB.GetEvidence(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleSetResubmission moves evidence through the lab-resubmission flow.
func (h *Handlers) HandleSetResubmission(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid evidence id")
		return
	}

	var req struct {
		Status model.ResubmissionStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := cs.DB.SetEvidenceResubmission(r.Context(), id, req.Status); err != nil {
		writeStorageError(w, r, err)
		return
	}
	e, err := cs.DB.GetEvidence(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// HandleResubmissionCandidates lists evidence flagged for retesting.
func (h *Handlers) HandleResubmissionCandidates(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	items, err := cs.DB.ResubmissionCandidates(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

// HandleCreateHypothesis stores a new hypothesis.
func (h *Handlers) HandleCreateHypothesis(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var hyp model.Hypothesis
	if err := decodeJSON(r, &hyp); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	hyp, err := cs.DB.InsertHypothesis(r.Context(), hyp)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, hyp)
}

// HandleListHypotheses lists hypotheses ordered by tier.
func (h *Handlers) HandleListHypotheses(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	hyps, err := cs.DB.ListHypotheses(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, hyps)
}

// HandleGetHypothesis fetches one hypothesis.
func (h *Handlers) HandleGetHypothesis(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid hypothesis id")
		return
	}
	hyp, err := cs.DB.GetHypothesis(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, hyp)
}

// HandleUpdateHypothesis replaces a hypothesis's mutable fields.
func (h *Handlers) HandleUpdateHypothesis(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid hypothesis id")
		return
	}

	var hyp model.Hypothesis
	if err := decodeJSON(r, &hyp); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	hyp.ID = id
	if err := cs.DB.UpdateHypothesis(r.Context(), hyp); err != nil {
		writeStorageError(w, r, err)
		return
	}
	updated, err := cs.DB.GetHypothesis(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleSetTier moves a hypothesis between probability tiers.
func (h *Handlers) HandleSetTier(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid hypothesis id")
		return
	}

	var req struct {
		Tier model.Tier `json:"tier"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := cs.DB.SetHypothesisTier(r.Context(), id, req.Tier); err != nil {
		writeStorageError(w, r, err)
		return
	}
	hyp, err := cs.DB.GetHypothesis(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, hyp)
}

// HandleCreateIndicator records an indicator for a hypothesis.
func (h *Handlers) HandleCreateIndicator(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	hypID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid hypothesis id")
		return
	}

	var ind model.Indicator
	if err := decodeJSON(r, &ind); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	ind.HypothesisID = hypID
	ind, err = cs.DB.InsertIndicator(r.Context(), ind)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ind)
}

// HandleListIndicators lists indicators, optionally per hypothesis.
func (h *Handlers) HandleListIndicators(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	var hypID int64
	if v := r.URL.Query().Get("hypothesis_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid hypothesis_id")
			return
		}
		hypID = id
	}
	inds, err := cs.DB.ListIndicators(r.Context(), hypID)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, inds)
}

// HandleSetIndicatorStatus marks an indicator observed or not observed.
func (h *Handlers) HandleSetIndicatorStatus(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid indicator id")
		return
	}

	var req struct {
		Status model.IndicatorStatus `json:"status"`
		Notes  *string               `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := cs.DB.SetIndicatorStatus(r.Context(), id, req.Status, req.Notes); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"updated": id})
}

// HandleSetScore writes one matrix cell, replacing any previous score for
// the same hypothesis/evidence pair.
func (h *Handlers) HandleSetScore(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var s model.Score
	if err := decodeJSON(r, &s); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	engine := ach.NewEngine(cs.DB)
	s, err := engine.SetScore(r.Context(), s)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

// HandleMatrix returns the full hypothesis/evidence grid.
func (h *Handlers) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	m, err := ach.NewEngine(cs.DB).BuildMatrix(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

// HandleSummaries returns per-hypothesis scoring rollups.
func (h *Handlers) HandleSummaries(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	sums, err := ach.NewEngine(cs.DB).Summaries(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sums)
}

// HandleDiagnosticity ranks evidence by how well it discriminates.
func (h *Handlers) HandleDiagnosticity(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	diags, err := ach.NewEngine(cs.DB).EvidenceDiagnosticity(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, diags)
}

// HandleCreatePool stores a new suspect pool.
func (h *Handlers) HandleCreatePool(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var p model.SuspectPool
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	p, err := cs.DB.InsertSuspectPool(r.Context(), p)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

// HandleListPools lists suspect pools by priority.
func (h *Handlers) HandleListPools(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	pools, err := cs.DB.ListSuspectPools(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, pools)
}

// HandleAddPoolMember places an entity in a pool.
func (h *Handlers) HandleAddPoolMember(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	poolID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid pool id")
		return
	}

	var req struct {
		EntityID int64 `json:"entity_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	m, err := cs.DB.AddPoolMember(r.Context(), poolID, req.EntityID)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m)
}

// HandlePoolMembers lists the entities in a pool.
func (h *Handlers) HandlePoolMembers(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	poolID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid pool id")
		return
	}
	members, err := cs.DB.PoolMembers(r.Context(), poolID)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, members)
}

// HandleRemovePoolMember takes an entity out of a pool.
func (h *Handlers) HandleRemovePoolMember(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	poolID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid pool id")
		return
	}
	entityID, err := pathID(r, "entity_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid entity id")
		return
	}
	if err := cs.DB.RemovePoolMember(r.Context(), poolID, entityID); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"removed": entityID})
}

// HandleDeletePool removes a pool and its memberships.
func (h *Handlers) HandleDeletePool(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid pool id")
		return
	}
	if err := cs.DB.DeleteSuspectPool(r.Context(), id); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": id})
}
