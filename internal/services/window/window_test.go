package window

import (
	"fmt"
	"strings"
	"testing"

	"github.com/or-gateway-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{"héllo", 2}, // byte length, not rune count
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.content), "content %q", tt.content)
	}
}

func TestFitEmpty(t *testing.T) {
	assert.Nil(t, Fit(nil, 100))
	assert.Nil(t, Fit([]models.Message{}, 100))
}

func TestFitPreservesSystemAndRecentSuffix(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleSystem, Content: strings.Repeat("s", 40)}, // 10 tokens
	}
	for i := 1; i <= 100; i++ {
		messages = append(messages, models.Message{
			Role:    models.RoleUser,
			Content: fmt.Sprintf("m%02d-", i) + strings.Repeat("x", 36), // 10 tokens each
		})
	}

	// Room for the system message plus exactly the last two turns
	fitted := Fit(messages, 30)

	require.Len(t, fitted, 3)
	assert.Equal(t, models.RoleSystem, fitted[0].Role)
	assert.True(t, strings.HasPrefix(fitted[1].Content, "m99-"))
	assert.True(t, strings.HasPrefix(fitted[2].Content, "m100"))
}

func TestFitStopsAtFirstOverflow(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: strings.Repeat("a", 4)},   // 1 token, old
		{Role: models.RoleUser, Content: strings.Repeat("b", 400)}, // 100 tokens
		{Role: models.RoleUser, Content: strings.Repeat("c", 4)},   // 1 token, recent
	}

	// The middle message overflows; the walk stops there even though
	// the oldest message alone would still fit
	fitted := Fit(messages, 10)

	require.Len(t, fitted, 1)
	assert.Equal(t, strings.Repeat("c", 4), fitted[0].Content)
}

func TestFitWithoutSystemMessage(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: strings.Repeat("a", 40)},
		{Role: models.RoleAssistant, Content: strings.Repeat("b", 40)},
		{Role: models.RoleUser, Content: strings.Repeat("c", 40)},
	}

	fitted := Fit(messages, 20)

	require.Len(t, fitted, 2)
	assert.Equal(t, models.RoleAssistant, fitted[0].Role)
	assert.Equal(t, models.RoleUser, fitted[1].Role)
}

func TestFitKeepsEverythingWithinBudget(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleSystem, Content: "be brief"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}

	fitted := Fit(messages, 1000)
	assert.Equal(t, messages, fitted)
}

func TestFitOversizedSystemMessageStillRetained(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleSystem, Content: strings.Repeat("s", 400)}, // 100 tokens
		{Role: models.RoleUser, Content: "hi"},
	}

	fitted := Fit(messages, 10)

	require.Len(t, fitted, 1)
	assert.Equal(t, models.RoleSystem, fitted[0].Role)
}

func TestFitSystemOnlyBudgetDropsEverythingElse(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleSystem, Content: strings.Repeat("s", 40)}, // 10 tokens
		{Role: models.RoleUser, Content: strings.Repeat("a", 40)},   // 10 tokens
	}

	fitted := Fit(messages, 10)

	require.Len(t, fitted, 1)
	assert.Equal(t, models.RoleSystem, fitted[0].Role)
}
