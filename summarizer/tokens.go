package summarizer

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates how many tokens a text costs. Local models use
// their own vocabularies, so the GPT-4o encoding gives an approximation.
type TokenCounter struct {
	encoder tokenizer.Codec
}

// NewTokenCounter creates a new token counter for GPT-4o
func NewTokenCounter() (*TokenCounter, error) {
	encoder, err := tokenizer.ForModel(tokenizer.GPT4o)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	return &TokenCounter{encoder: encoder}, nil
}

// Count returns the number of tokens in text. A nil counter counts zero.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil {
		return 0
	}
	tokens, _, _ := tc.encoder.Encode(text)
	return len(tokens)
}
