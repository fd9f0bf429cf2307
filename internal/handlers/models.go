package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/or-gateway-go/internal/i18n"
	"github.com/or-gateway-go/pkg/markdown"
	"github.com/or-gateway-go/pkg/modelref"
)

// HandleListModels serves the model catalog, refreshing the cache on a
// miss. With format=text the listing is rendered as plain text.
func (h *ToolHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("list_models", status, time.Since(started))
	}()

	snapshot, err := h.ensureSnapshot(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Catalog fetch failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgCatalogUnavailable, nil)
		return
	}

	status = "success"

	if r.URL.Query().Get("format") == "text" {
		var b strings.Builder
		for _, record := range snapshot.Entries {
			b.WriteString(fmt.Sprintf("%s (%s)\n", record.ID, record.Name))
			b.WriteString(fmt.Sprintf("  context: %d tokens, prompt: %s, completion: %s\n",
				record.ContextLength, record.Pricing.Prompt, record.Pricing.Completion))
			if record.Description != "" {
				b.WriteString("  " + markdown.ToPlainText(record.Description) + "\n")
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(b.String()))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":     snapshot.Entries,
		"fetched_at": snapshot.FetchedAt,
	})
}

// HandleModelInfo serves one catalog entry
func (h *ToolHandler) HandleModelInfo(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("model_info", status, time.Since(started))
	}()

	vars := mux.Vars(r)
	modelID := vars["author"] + "/" + vars["slug"]

	record, found, err := h.resolveModel(r.Context(), modelID)
	if err != nil {
		h.logger.WithError(err).Error("Catalog fetch failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgCatalogUnavailable, nil)
		return
	}
	if !found {
		h.writeError(w, r, http.StatusNotFound, i18n.MsgModelNotFound, map[string]interface{}{"Model": modelID})
		return
	}

	status = "success"
	h.writeJSON(w, http.StatusOK, record)
}

// HandleModelEndpoints lists the provider endpoints routing one model
func (h *ToolHandler) HandleModelEndpoints(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("model_endpoints", status, time.Since(started))
	}()

	vars := mux.Vars(r)
	modelID := vars["author"] + "/" + vars["slug"]

	callStarted := time.Now()
	info, err := h.client.FetchModelEndpoints(r.Context(), modelID)
	if err != nil {
		h.metrics.RecordProviderRequest("endpoints", "error", time.Since(callStarted))
		h.logger.WithError(err).WithField("model", modelID).Error("Endpoint fetch failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgError, map[string]interface{}{"Detail": err.Error()})
		return
	}
	h.metrics.RecordProviderRequest("endpoints", "success", time.Since(callStarted))

	status = "success"
	h.writeJSON(w, http.StatusOK, info)
}

type validateRequest struct {
	Model string `json:"model"`
}

// HandleValidateModel reports whether a model id exists in the catalog.
// The routing suffix is stripped before the lookup: catalog entries are
// keyed by bare id.
func (h *ToolHandler) HandleValidateModel(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("validate_model", status, time.Since(started))
	}()

	var req validateRequest
	if err := decodeJSON(r, &req); err != nil || req.Model == "" {
		h.writeError(w, r, http.StatusBadRequest, i18n.MsgMissingModel, nil)
		return
	}

	ref := modelref.Parse(req.Model)
	_, found, err := h.resolveModel(r.Context(), ref.BaseModel)
	if err != nil {
		h.logger.WithError(err).Error("Catalog fetch failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgCatalogUnavailable, nil)
		return
	}

	status = "success"
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"model": req.Model,
		"valid": found,
	})
}

// HandleInvalidateCache forces the next catalog read to refetch
func (h *ToolHandler) HandleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.catalog.Invalidate()
	h.metrics.RecordToolRequest("invalidate_cache", "success", 0)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": h.msg(r, i18n.MsgCacheInvalidated, nil),
	})
}
