// Package modelref splits model identifiers into a base id and an
// optional provider routing suffix.
package modelref

import (
	"strings"
)

// Suffix is a routing shortcut appended to a model id. It changes
// provider selection, not the model itself.
type Suffix string

const (
	SuffixNone  Suffix = ""
	SuffixFloor Suffix = "floor"
	SuffixNitro Suffix = "nitro"
)

// Ref is a parsed model reference. BaseModel is what catalog lookups
// use; FullModel is what outbound requests carry.
type Ref struct {
	BaseModel string
	Suffix    Suffix
	FullModel string
}

// HasSuffix reports whether a routing suffix was present
func (r Ref) HasSuffix() bool {
	return r.Suffix != SuffixNone
}

// Parse splits model into its base id and routing suffix. Only a
// trailing :floor or :nitro is recognized as a suffix.
func Parse(model string) Ref {
	for _, suffix := range []Suffix{SuffixFloor, SuffixNitro} {
		tail := ":" + string(suffix)
		if strings.HasSuffix(model, tail) {
			return Ref{
				BaseModel: strings.TrimSuffix(model, tail),
				Suffix:    suffix,
				FullModel: model,
			}
		}
	}

	return Ref{BaseModel: model, FullModel: model}
}
