package models

import (
	"time"
)

// Message roles understood by the provider API
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single conversation turn. Messages are immutable
// once appended to a conversation.
type Message struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
}

// Pricing holds per-token costs as decimal strings, matching the
// provider's wire format
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// Capabilities describes optional model features
type Capabilities struct {
	FunctionCalling bool `json:"function_calling,omitempty"`
	Tools           bool `json:"tools,omitempty"`
	Vision          bool `json:"vision,omitempty"`
	JSONMode        bool `json:"json_mode,omitempty"`
}

// ModelRecord is one entry of the provider's model catalog
type ModelRecord struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Description         string        `json:"description,omitempty"`
	ContextLength       int           `json:"context_length"`
	Pricing             Pricing       `json:"pricing"`
	Capabilities        *Capabilities `json:"capabilities,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

// CatalogSnapshot is one full fetch of the model catalog
type CatalogSnapshot struct {
	Entries   []ModelRecord `json:"entries"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// RateLimitState mirrors the quota the provider last reported.
// The upstream headers are the authority; it is never decremented locally.
type RateLimitState struct {
	Remaining int
	ResetAt   time.Time
	Total     int
}

// Conversation is an append-only message log with lifecycle timestamps
type Conversation struct {
	ID            string            `json:"id"`
	History       []Message         `json:"history"`
	CreatedAt     time.Time         `json:"created_at"`
	LastUpdatedAt time.Time         `json:"last_updated_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ConversationSummary is the listing view of a conversation
type ConversationSummary struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	MessageCount  int       `json:"message_count"`
}

// Usage reports token consumption for one completion
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderError is the error object some responses embed alongside
// an HTTP 200 status
type ProviderError struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// ChoiceMessage is the assistant message inside a chat completion choice
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one completion alternative. Chat completions populate
// Message, text completions populate Text.
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	Text         string        `json:"text,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// ProviderResponse is the raw completion response body from the provider
type ProviderResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   Usage          `json:"usage"`
	Error   *ProviderError `json:"error,omitempty"`
}

// FirstContent returns choices[0].message.content, or "" when absent
func (r *ProviderResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// FirstText returns choices[0].text, or "" when absent
func (r *ProviderResponse) FirstText() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Text
}

// RouteEndpoint describes one provider endpoint serving a model
type RouteEndpoint struct {
	Name                string  `json:"name"`
	ProviderName        string  `json:"provider_name"`
	ContextLength       int     `json:"context_length"`
	Pricing             Pricing `json:"pricing"`
	MaxCompletionTokens int     `json:"max_completion_tokens,omitempty"`
	Status              string  `json:"status,omitempty"`
}

// ProviderRouteInfo lists the endpoints the provider can route a model to
type ProviderRouteInfo struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Endpoints []RouteEndpoint `json:"endpoints"`
}
