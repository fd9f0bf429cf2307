package modelref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Ref
	}{
		{
			name:  "floor suffix",
			input: "openai/gpt-4:floor",
			want:  Ref{BaseModel: "openai/gpt-4", Suffix: SuffixFloor, FullModel: "openai/gpt-4:floor"},
		},
		{
			name:  "nitro suffix",
			input: "meta/llama-3:nitro",
			want:  Ref{BaseModel: "meta/llama-3", Suffix: SuffixNitro, FullModel: "meta/llama-3:nitro"},
		},
		{
			name:  "no suffix",
			input: "openai/gpt-4",
			want:  Ref{BaseModel: "openai/gpt-4", Suffix: SuffixNone, FullModel: "openai/gpt-4"},
		},
		{
			name:  "unknown suffix stays in base id",
			input: "openai/gpt-4:free",
			want:  Ref{BaseModel: "openai/gpt-4:free", Suffix: SuffixNone, FullModel: "openai/gpt-4:free"},
		},
		{
			name:  "suffix word mid-id is not a suffix",
			input: "acme/nitro-model",
			want:  Ref{BaseModel: "acme/nitro-model", Suffix: SuffixNone, FullModel: "acme/nitro-model"},
		},
		{
			name:  "empty string",
			input: "",
			want:  Ref{BaseModel: "", Suffix: SuffixNone, FullModel: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.FullModel, "full model round-trips the input")
		})
	}
}

func TestHasSuffix(t *testing.T) {
	assert.True(t, Parse("openai/gpt-4:floor").HasSuffix())
	assert.False(t, Parse("openai/gpt-4").HasSuffix())
}
