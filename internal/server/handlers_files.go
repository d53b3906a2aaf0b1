package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/casetrace/casetrace/internal/ai"
	"github.com/casetrace/casetrace/internal/content"
	"github.com/casetrace/casetrace/internal/model"
)

// HandleUploadFile stores a multipart attachment upload.
func (h *Handlers) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodeTooLarge,
			"upload too large or malformed: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, content.MaxFileSize+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "read upload: "+err.Error())
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	var description, sourceURL *string
	if v := r.FormValue("description"); v != "" {
		description = &v
	}
	if v := r.FormValue("source_url"); v != "" {
		sourceURL = &v
	}

	store := content.NewStore(cs, h.logger)
	att, err := store.Put(r.Context(), header.Filename, mimeType, data, description, sourceURL)
	if err != nil {
		if errors.Is(err, content.ErrTooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, model.ErrCodeTooLarge,
				"file exceeds size limit")
			return
		}
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, att)
}

// HandleListFiles lists attachments.
func (h *Handlers) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	atts, err := cs.DB.ListAttachments(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, atts)
}

// HandleGetFile returns attachment metadata and links.
func (h *Handlers) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid file id")
		return
	}
	att, err := cs.DB.GetAttachment(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	links, err := cs.DB.AttachmentLinks(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"attachment": att,
		"links":      links,
	})
}

// HandleFileContent streams the stored bytes.
func (h *Handlers) HandleFileContent(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid file id")
		return
	}

	store := content.NewStore(cs, h.logger)
	reader, att, err := store.Open(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", att.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.FileSize, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+att.Filename+`"`)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("stream attachment", "id", id, "error", err)
	}
}

// HandleDeleteFile removes an attachment and its files.
func (h *Handlers) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid file id")
		return
	}
	store := content.NewStore(cs, h.logger)
	if err := store.Delete(r.Context(), id); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": id})
}

// HandleVerifyFiles checks the integrity of every stored attachment. The
// response is 200 when all files verify, 409 with INTEGRITY_FAILURE when
// any file is tampered or missing.
func (h *Handlers) HandleVerifyFiles(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	store := content.NewStore(cs, h.logger)
	results, err := store.VerifyAll(r.Context())
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	failed := 0
	for _, v := range results {
		if v.Result != model.VerifyOK {
			failed++
		}
	}
	payload := map[string]any{
		"total":   len(results),
		"failed":  failed,
		"results": results,
	}
	if failed > 0 {
		payload["error_code"] = model.ErrCodeIntegrityFailure
		writeJSON(w, r, http.StatusConflict, payload)
		return
	}
	writeJSON(w, r, http.StatusOK, payload)
}

// HandleLinkFile ties an attachment to a case record.
func (h *Handlers) HandleLinkFile(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid file id")
		return
	}

	var req struct {
		EntityType model.LinkEntityType `json:"entity_type"`
		EntityID   int64                `json:"entity_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	link, err := cs.DB.LinkAttachment(r.Context(), id, req.EntityType, req.EntityID)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, link)
}

// HandleUnlinkFile removes an attachment link.
func (h *Handlers) HandleUnlinkFile(w http.ResponseWriter, r *http.Request) {
	cs, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	h.limitBody(w, r)
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid file id")
		return
	}

	var req struct {
		EntityType model.LinkEntityType `json:"entity_type"`
		EntityID   int64                `json:"entity_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := cs.DB.UnlinkAttachment(r.Context(), id, req.EntityType, req.EntityID); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"unlinked": id})
}

// HandleAnalyzeFile asks the model to describe an attachment's relevance
// and stores the result on the attachment.
func (h *Handlers) HandleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
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
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid file id")
		return
	}

	var req struct {
		Context string `json:"context"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	att, err := cs.DB.GetAttachment(r.Context(), id)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}

	prompt := ai.FileAnalysisPrompt(att.Filename, att.MimeType, req.Context)
	response, genErr := h.client.Generate(r.Context(), prompt)

	analysis := model.AIAnalysis{
		EntityType: "attachment",
		EntityID:   id,
		Mode:       "file-analysis",
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

	if err := cs.DB.SetAttachmentAnalysis(r.Context(), id, response); err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"attachment_id": id,
		"analysis":      response,
	})
}
