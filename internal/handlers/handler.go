package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/or-gateway-go/internal/config"
	"github.com/or-gateway-go/internal/i18n"
	"github.com/or-gateway-go/internal/middleware"
	"github.com/or-gateway-go/internal/models"
	"github.com/or-gateway-go/internal/services/catalog"
	"github.com/or-gateway-go/internal/services/conversation"
	"github.com/or-gateway-go/internal/services/provider"
	"github.com/sirupsen/logrus"
)

// ToolHandler serves the tool-dispatch HTTP surface, wiring the
// conversation store, context windower, catalog cache and provider
// client together.
type ToolHandler struct {
	config    *config.Config
	client    provider.Client
	catalog   catalog.Service
	store     conversation.Store
	limiter   middleware.RateLimiter
	metrics   *middleware.Metrics
	localizer *i18n.Localizer
	logger    *logrus.Logger
}

// NewToolHandler creates a new tool handler
func NewToolHandler(
	cfg *config.Config,
	client provider.Client,
	catalogService catalog.Service,
	store conversation.Store,
	limiter middleware.RateLimiter,
	metrics *middleware.Metrics,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *ToolHandler {
	return &ToolHandler{
		config:    cfg,
		client:    client,
		catalog:   catalogService,
		store:     store,
		limiter:   limiter,
		metrics:   metrics,
		localizer: localizer,
		logger:    logger,
	}
}

// Router builds the tool route table
func (h *ToolHandler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.rateLimitMiddleware)

	router.HandleFunc("/v1/tools/chat", h.HandleChat).Methods(http.MethodPost)
	router.HandleFunc("/v1/tools/completion", h.HandleCompletion).Methods(http.MethodPost)
	router.HandleFunc("/v1/tools/models", h.HandleListModels).Methods(http.MethodGet)
	router.HandleFunc("/v1/tools/models/validate", h.HandleValidateModel).Methods(http.MethodPost)
	router.HandleFunc("/v1/tools/models/{author}/{slug}", h.HandleModelInfo).Methods(http.MethodGet)
	router.HandleFunc("/v1/tools/models/{author}/{slug}/endpoints", h.HandleModelEndpoints).Methods(http.MethodGet)
	router.HandleFunc("/v1/conversations", h.HandleListConversations).Methods(http.MethodGet)
	router.HandleFunc("/v1/conversations/{id}", h.HandleGetConversation).Methods(http.MethodGet)
	router.HandleFunc("/v1/conversations/{id}", h.HandleDeleteConversation).Methods(http.MethodDelete)
	router.HandleFunc("/v1/cache/invalidate", h.HandleInvalidateCache).Methods(http.MethodPost)

	return router
}

// rateLimitMiddleware rejects callers over their local request budget
func (h *ToolHandler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := callerID(r)
		if !h.limiter.Allow(caller) {
			h.metrics.RecordRateLimitRejection(caller)
			h.writeError(w, r, http.StatusTooManyRequests, i18n.MsgRateLimitExceeded, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ensureSnapshot returns the valid catalog snapshot, fetching and
// caching a fresh one on a miss. A fetch failure is surfaced as a
// fetch failure, never as the model being invalid.
func (h *ToolHandler) ensureSnapshot(ctx context.Context) (*models.CatalogSnapshot, error) {
	if snapshot, ok := h.catalog.GetSnapshot(); ok {
		h.metrics.RecordCatalogHit()
		return snapshot, nil
	}

	h.metrics.RecordCatalogMiss()
	snapshot, err := h.client.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	return h.catalog.SetSnapshot(snapshot.Entries), nil
}

// resolveModel looks up a base model id, refreshing the catalog on a
// cache miss. The bool reports whether the model exists; the error is
// a fetch failure.
func (h *ToolHandler) resolveModel(ctx context.Context, baseModel string) (*models.ModelRecord, bool, error) {
	if _, err := h.ensureSnapshot(ctx); err != nil {
		return nil, false, err
	}

	record, ok := h.catalog.Lookup(baseModel)
	return record, ok, nil
}

func callerID(r *http.Request) string {
	if caller := r.Header.Get("X-Caller-ID"); caller != "" {
		return caller
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func requestLang(r *http.Request) string {
	lang := r.Header.Get("Accept-Language")
	if idx := strings.IndexAny(lang, ",;-"); idx > 0 {
		lang = lang[:idx]
	}
	return strings.TrimSpace(lang)
}

func (h *ToolHandler) msg(r *http.Request, messageID string, data map[string]interface{}) string {
	if h.localizer == nil {
		return messageID
	}
	return h.localizer.Get(requestLang(r), messageID, data)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *ToolHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *ToolHandler) writeError(w http.ResponseWriter, r *http.Request, status int, messageID string, data map[string]interface{}) {
	payload := map[string]interface{}{
		"error": h.msg(r, messageID, data),
	}
	if detail, ok := data["Detail"]; ok {
		payload["detail"] = detail
	}
	h.writeJSON(w, status, payload)
}
