package chat

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts prompt tokens for history budgeting.
type Tokenizer interface {
	CountTokens(text string) int
}

// EstimateTokenizer approximates one token per four characters. It is the
// fallback when no BPE vocabulary is available (tests, offline runs).
type EstimateTokenizer struct{}

func (EstimateTokenizer) CountTokens(text string) int {
	return len(text) / 4
}

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer creates a tokenizer for the given encoding name
// (e.g. "cl100k_base").
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
