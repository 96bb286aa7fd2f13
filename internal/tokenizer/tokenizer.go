// Package tokenizer provides the one fixed token encoding shared by the
// whole document pipeline. Chunk-time token counts must match embed-time
// counts, so every component counts with the same encoding.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// EncodingName is the BPE vocabulary used across the pipeline (the same
// family the embedding and chat models tokenize with).
const EncodingName = "cl100k_base"

type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(EncodingName)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding failed: %w", EncodingName, err)
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

func (t *Tokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
