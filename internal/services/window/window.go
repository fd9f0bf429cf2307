// Package window fits conversation history into a model's token budget.
package window

import (
	"github.com/or-gateway-go/internal/models"
)

// EstimateTokens approximates the token cost of message content as
// ceil(utf8 bytes / 4). A fixed approximation keeps windowing
// deterministic across models.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// Fit selects the suffix of messages that fits within maxTokens. A
// leading system message is always retained and its cost reserved
// first; the rest are taken newest to oldest, stopping at the first
// message that would exceed the budget.
//
// Dropped messages are the oldest non-system ones. Nothing signals the
// truncation to the model and a retained tool result can lose its
// originating call; the drop policy for matched pairs is deliberately
// left as-is.
func Fit(messages []models.Message, maxTokens int) []models.Message {
	if len(messages) == 0 {
		return nil
	}

	used := 0
	rest := messages
	var system *models.Message
	if messages[0].Role == models.RoleSystem {
		system = &messages[0]
		rest = messages[1:]
		used = EstimateTokens(system.Content)
	}

	// Walk backward collecting the newest turns that still fit
	start := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		cost := EstimateTokens(rest[i].Content)
		if used+cost > maxTokens {
			break
		}
		used += cost
		start = i
	}

	fitted := make([]models.Message, 0, len(rest)-start+1)
	if system != nil {
		fitted = append(fitted, *system)
	}
	fitted = append(fitted, rest[start:]...)
	return fitted
}
