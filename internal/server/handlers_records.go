package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/timeline"
)

// HandleCreateEntity stores a new entity.
func (h *Handlers) HandleCreateEntity(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var e model.Entity
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	e, err := cs.DB.InsertEntity(r.Context(), e)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}

// HandleListEntities lists entities, optionally by type.
func (h *Handlers) HandleListEntities(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	entities, err := cs.DB.ListEntities(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entities)
}

// HandleGetEntity fetches one entity, resolving its canonical when asked.
func (h *Handlers) HandleGetEntity(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid entity id")
		return
	}

	var e model.Entity
	if r.URL.Query().Get("resolve") == "true" {
		e, err = cs.DB.ResolveEntity(r.Context(), id)
	} else {
		e, err = cs.DB.GetEntity(r.Context(), id)
	}
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// HandleUpdateEntity replaces an entity's mutable fields.
func (h *Handlers) HandleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid entity id")
		return
	}

	var e model.Entity
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	e.ID = id
	if err := cs.DB.UpdateEntity(r.Context(), e); err != nil {
		writeStorageError(w, r, err)
		return
	}
	updated, err := cs.DB.GetEntity(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleSetCanonical marks an entity as an alias of another.
func (h *Handlers) HandleSetCanonical(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid entity id")
		return
	}

	var req struct {
		CanonicalID int64 `json:"canonical_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := cs.DB.SetEntityCanonical(r.Context(), id, req.CanonicalID); err != nil {
		writeStorageError(w, r, err)
		return
	}
	e, err := cs.DB.GetEntity(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// HandleEntityAliases lists the aliases pointing at an entity.
func (h *Handlers) HandleEntityAliases(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid entity id")
		return
	}
	aliases, err := cs.DB.EntityAliases(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, aliases)
}

// HandleCreateRelationship stores a typed edge between entities.
func (h *Handlers) HandleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var rel model.Relationship
	if err := decodeJSON(r, &rel); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	rel, err := cs.DB.InsertRelationship(r.Context(), rel)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rel)
}

// HandleListRelationships lists edges, optionally those touching one entity.
func (h *Handlers) HandleListRelationships(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	var entityID int64
	if v := r.URL.Query().Get("entity_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid entity_id")
			return
		}
		entityID = id
	}
	rels, err := cs.DB.ListRelationships(r.Context(), entityID)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rels)
}

// HandleConfirmRelationship marks an edge analyst-confirmed.
func (h *Handlers) HandleConfirmRelationship(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid relationship id")
		return
	}
	if err := cs.DB.ConfirmRelationship(r.Context(), id); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"confirmed": id})
}

// HandleDeleteRelationship removes an edge.
func (h *Handlers) HandleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid relationship id")
		return
	}
	if err := cs.DB.DeleteRelationship(r.Context(), id); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": id})
}

// HandleCreateEvent stores a timeline event.
func (h *Handlers) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)

	var e model.Event
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	e, err := cs.DB.InsertEvent(r.Context(), e)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, e)
}

// HandleListEvents lists timeline events, optionally by layer.
func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	events, err := cs.DB.ListEvents(r.Context(), r.URL.Query().Get("layer"))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, events)
}

// HandleUpdateEvent replaces an event's mutable fields.
func (h *Handlers) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid event id")
		return
	}

	var e model.Event
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	e.ID = id
	if err := cs.DB.UpdateEvent(r.Context(), e); err != nil {
		writeStorageError(w, r, err)
		return
	}
	updated, err := cs.DB.GetEvent(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteEvent removes an event.
func (h *Handlers) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid event id")
		return
	}
	if err := cs.DB.DeleteEvent(r.Context(), id); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": id})
}

// HandleTimelineGaps reports unaccounted spans between events.
func (h *Handlers) HandleTimelineGaps(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	threshold := 24 * time.Hour
	if v := r.URL.Query().Get("threshold_hours"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil || hours <= 0 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid threshold_hours")
			return
		}
		threshold = time.Duration(hours * float64(time.Hour))
	}

	report, err := timeline.Gaps(r.Context(), cs.DB, r.URL.Query().Get("layer"), threshold)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}
