package ai

import (
	"encoding/json"
	"fmt"
)

// The generation endpoints return the answer in one of two shapes: a bare
// JSON string, or an object with a "response" field. The shape is resolved
// once here; downstream code only ever sees the text.

type generationKind int

const (
	generationRawString generationKind = iota
	generationStructured
)

// generation is the tagged result of resolving a generation payload.
type generation struct {
	kind generationKind
	text string
}

// structuredResponse is the object form of a generation result.
type structuredResponse struct {
	Response string `json:"response"`
}

func resolveGeneration(raw json.RawMessage) (generation, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return generation{kind: generationRawString, text: s}, nil
	}

	var obj structuredResponse
	if err := json.Unmarshal(raw, &obj); err != nil {
		return generation{}, fmt.Errorf("result is neither a string nor a response object: %w", err)
	}
	return generation{kind: generationStructured, text: obj.Response}, nil
}
