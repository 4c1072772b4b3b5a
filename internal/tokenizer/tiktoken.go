// Package tokenizer estimates prompt sizes with tiktoken encodings.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultModel selects the p50k_base encoding.
const DefaultModel = "text-davinci-003"

const endOfText = "<|endoftext|>"

// TokenCounter counts tokens for one encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter resolves the encoding used by model. Unknown models fall
// back to p50k_base.
func NewTokenCounter(model string) (*TokenCounter, error) {
	if model == "" {
		model = DefaultModel
	}
	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		codec, err = tokenizer.Get(tokenizer.P50kBase)
		if err != nil {
			return nil, fmt.Errorf("create tokenizer codec for model %s failed: %w", model, err)
		}
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text. The end-of-text marker
// is stripped first so user content cannot smuggle a special token in.
func (tc *TokenCounter) CountTokens(text string) int {
	text = strings.ReplaceAll(text, endOfText, "")
	if tc.codec == nil {
		return len(text) / 4
	}
	ids, _, err := tc.codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}
