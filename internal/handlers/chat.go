package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/or-gateway-go/internal/i18n"
	"github.com/or-gateway-go/internal/models"
	"github.com/or-gateway-go/internal/services/conversation"
	"github.com/or-gateway-go/internal/services/provider"
	"github.com/or-gateway-go/internal/services/window"
	"github.com/or-gateway-go/pkg/modelref"
	"github.com/sirupsen/logrus"
)

type chatRequest struct {
	Model           string                     `json:"model,omitempty"`
	Messages        []models.Message           `json:"messages,omitempty"`
	Prompt          string                     `json:"prompt,omitempty"`
	System          string                     `json:"system,omitempty"`
	Temperature     *float64                   `json:"temperature,omitempty"`
	MaxTokens       int                        `json:"max_tokens,omitempty"`
	Seed            *int                       `json:"seed,omitempty"`
	ReasoningEffort string                     `json:"reasoning_effort,omitempty"`
	Provider        *provider.RoutePreferences `json:"provider,omitempty"`
	Extra           map[string]interface{}     `json:"extra,omitempty"`
	ConversationID  string                     `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	ConversationID string       `json:"conversation_id,omitempty"`
	Model          string       `json:"model"`
	Content        string       `json:"content"`
	Usage          models.Usage `json:"usage"`
}

// HandleChat runs the chat completion tool: resolve history, window it
// to the model's context budget, call the provider and persist both
// sides of the exchange.
func (h *ToolHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("chat", status, time.Since(started))
	}()

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, i18n.MsgBadRequest, nil)
		return
	}

	incoming := req.Messages
	if len(incoming) == 0 && req.Prompt != "" {
		incoming = []models.Message{{Role: models.RoleUser, Content: req.Prompt}}
	}
	if len(incoming) == 0 {
		h.writeError(w, r, http.StatusBadRequest, i18n.MsgEmptyMessages, nil)
		return
	}

	model := req.Model
	if model == "" {
		model = h.config.Provider.DefaultModel
	}
	if model == "" {
		h.writeError(w, r, http.StatusBadRequest, i18n.MsgMissingModel, nil)
		return
	}

	ctx := r.Context()
	ref := modelref.Parse(model)

	record, found, err := h.resolveModel(ctx, ref.BaseModel)
	if err != nil {
		h.logger.WithError(err).Error("Catalog fetch failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgCatalogUnavailable, nil)
		return
	}
	if !found {
		h.writeError(w, r, http.StatusNotFound, i18n.MsgModelInvalid, map[string]interface{}{"Model": ref.BaseModel})
		return
	}

	conv, err := h.resolveConversation(r, &req)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			h.writeError(w, r, http.StatusNotFound, i18n.MsgConversationNotFound, map[string]interface{}{"ID": req.ConversationID})
			return
		}
		h.logger.WithError(err).Error("Failed to resolve conversation")
		h.writeError(w, r, http.StatusInternalServerError, i18n.MsgError, nil)
		return
	}

	// Persist the new input before calling out
	for _, msg := range incoming {
		if conv, err = h.store.Append(ctx, conv.ID, msg); err != nil {
			h.metrics.RecordConversationOperation("append", "error")
			h.logger.WithError(err).Error("Failed to append message")
			h.writeError(w, r, http.StatusInternalServerError, i18n.MsgError, nil)
			return
		}
		h.metrics.RecordConversationOperation("append", "success")
	}

	budget := record.ContextLength
	if req.MaxTokens > 0 && req.MaxTokens < budget {
		budget -= req.MaxTokens
	}
	windowed := window.Fit(conv.History, budget)

	h.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"model":           ref.FullModel,
		"history":         len(conv.History),
		"windowed":        len(windowed),
	}).Debug("Dispatching chat completion")

	callStarted := time.Now()
	response, err := h.client.ChatCompletion(ctx, provider.CompletionParams{
		Model:           ref.FullModel,
		Messages:        windowed,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		Seed:            req.Seed,
		ReasoningEffort: req.ReasoningEffort,
		Provider:        req.Provider,
		Extra:           req.Extra,
	})
	if err != nil {
		h.metrics.RecordProviderRequest("chat", "error", time.Since(callStarted))
		h.logger.WithError(err).Error("Chat completion failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgError, map[string]interface{}{"Detail": err.Error()})
		return
	}
	h.metrics.RecordProviderRequest("chat", "success", time.Since(callStarted))

	content := response.FirstContent()
	if conv, err = h.store.Append(ctx, conv.ID, models.Message{
		Role:    models.RoleAssistant,
		Content: content,
	}); err != nil {
		h.metrics.RecordConversationOperation("append", "error")
		h.logger.WithError(err).Error("Failed to persist assistant reply")
		h.writeError(w, r, http.StatusInternalServerError, i18n.MsgError, nil)
		return
	}
	h.metrics.RecordConversationOperation("append", "success")

	status = "success"
	h.writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: conv.ID,
		Model:          response.Model,
		Content:        content,
		Usage:          response.Usage,
	})
}

// resolveConversation fetches the referenced conversation, or creates a
// fresh one when the request carries no reference
func (h *ToolHandler) resolveConversation(r *http.Request, req *chatRequest) (*models.Conversation, error) {
	ctx := r.Context()

	if req.ConversationID != "" {
		conv, err := h.store.Get(ctx, req.ConversationID)
		if err != nil {
			h.metrics.RecordConversationOperation("get", "error")
			return nil, err
		}
		h.metrics.RecordConversationOperation("get", "success")
		return conv, nil
	}

	var initial []models.Message
	if req.System != "" {
		initial = []models.Message{{Role: models.RoleSystem, Content: req.System, Timestamp: time.Now()}}
	}

	conv, err := h.store.Create(ctx, initial)
	if err != nil {
		h.metrics.RecordConversationOperation("create", "error")
		return nil, err
	}
	h.metrics.RecordConversationOperation("create", "success")
	return conv, nil
}

// HandleCompletion runs the single-shot text completion tool. Prompt
// completions are not persisted to a conversation.
func (h *ToolHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := "error"
	defer func() {
		h.metrics.RecordToolRequest("completion", status, time.Since(started))
	}()

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, i18n.MsgBadRequest, nil)
		return
	}
	if req.Prompt == "" {
		h.writeError(w, r, http.StatusBadRequest, i18n.MsgEmptyMessages, nil)
		return
	}

	model := req.Model
	if model == "" {
		model = h.config.Provider.DefaultModel
	}
	if model == "" {
		h.writeError(w, r, http.StatusBadRequest, i18n.MsgMissingModel, nil)
		return
	}

	ctx := r.Context()
	ref := modelref.Parse(model)

	_, found, err := h.resolveModel(ctx, ref.BaseModel)
	if err != nil {
		h.logger.WithError(err).Error("Catalog fetch failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgCatalogUnavailable, nil)
		return
	}
	if !found {
		h.writeError(w, r, http.StatusNotFound, i18n.MsgModelInvalid, map[string]interface{}{"Model": ref.BaseModel})
		return
	}

	callStarted := time.Now()
	response, err := h.client.TextCompletion(ctx, provider.CompletionParams{
		Model:           ref.FullModel,
		Prompt:          req.Prompt,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		Seed:            req.Seed,
		ReasoningEffort: req.ReasoningEffort,
		Provider:        req.Provider,
		Extra:           req.Extra,
	})
	if err != nil {
		h.metrics.RecordProviderRequest("completion", "error", time.Since(callStarted))
		h.logger.WithError(err).Error("Text completion failed")
		h.writeError(w, r, http.StatusBadGateway, i18n.MsgError, map[string]interface{}{"Detail": err.Error()})
		return
	}
	h.metrics.RecordProviderRequest("completion", "success", time.Since(callStarted))

	status = "success"
	h.writeJSON(w, http.StatusOK, chatResponse{
		Model:   response.Model,
		Content: response.FirstText(),
		Usage:   response.Usage,
	})
}
