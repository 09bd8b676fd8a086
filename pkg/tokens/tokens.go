// Package tokens provides token estimation and counting for prompt sizing.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// CharsPerToken is the character-to-token ratio used by Estimate.
// English prose averages roughly four characters per token across the
// models we call; the estimate is for sizing decisions, not billing.
const CharsPerToken = 4

// Estimate approximates the token count of text from its character length,
// rounding up. Deterministic and pure; callers must treat the result as an
// approximation.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// Counter provides tokenizer-backed token counting with a character-based
// fallback when the codec is unavailable.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a counter using the GPT-4 encoding, which approximates
// the tokenization of every model tier we call.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in the given text, falling back to
// Estimate on any codec failure.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return Estimate(text)
	}

	count, err := c.codec.Count(text)
	if err != nil {
		return Estimate(text)
	}
	return count
}
