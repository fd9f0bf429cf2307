package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/or-gateway-go/internal/i18n"
	"github.com/or-gateway-go/internal/services/conversation"
)

// HandleListConversations serves conversation summaries in insertion order
func (h *ToolHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("list_conversations", status, time.Since(started))
	}()

	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.metrics.RecordConversationOperation("list", "error")
		h.logger.WithError(err).Error("Failed to list conversations")
		h.writeError(w, r, http.StatusInternalServerError, i18n.MsgError, nil)
		return
	}
	h.metrics.RecordConversationOperation("list", "success")
	h.metrics.SetActiveConversations(float64(len(summaries)))

	status = "success"
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": summaries,
	})
}

// HandleGetConversation serves one full conversation history
func (h *ToolHandler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("get_conversation", status, time.Since(started))
	}()

	id := mux.Vars(r)["id"]
	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			h.metrics.RecordConversationOperation("get", "miss")
			h.writeError(w, r, http.StatusNotFound, i18n.MsgConversationNotFound, map[string]interface{}{"ID": id})
			return
		}
		h.metrics.RecordConversationOperation("get", "error")
		h.logger.WithError(err).Error("Failed to get conversation")
		h.writeError(w, r, http.StatusInternalServerError, i18n.MsgError, nil)
		return
	}
	h.metrics.RecordConversationOperation("get", "success")

	status = "success"
	h.writeJSON(w, http.StatusOK, conv)
}

// HandleDeleteConversation destroys a conversation. Deleting an unknown
// id reports not found rather than succeeding silently.
func (h *ToolHandler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("delete_conversation", status, time.Since(started))
	}()

	id := mux.Vars(r)["id"]
	removed, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.metrics.RecordConversationOperation("delete", "error")
		h.logger.WithError(err).Error("Failed to delete conversation")
		h.writeError(w, r, http.StatusInternalServerError, i18n.MsgError, nil)
		return
	}
	if !removed {
		h.metrics.RecordConversationOperation("delete", "miss")
		h.writeError(w, r, http.StatusNotFound, i18n.MsgConversationNotFound, map[string]interface{}{"ID": id})
		return
	}
	h.metrics.RecordConversationOperation("delete", "success")

	status = "success"
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": h.msg(r, i18n.MsgConversationDeleted, map[string]interface{}{"ID": id}),
	})
}
