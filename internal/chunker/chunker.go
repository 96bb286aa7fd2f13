// Package chunker splits extracted document text into token-bounded,
// overlapping chunks. Paragraphs are the unit of packing; a paragraph is
// only ever split when it alone exceeds the target budget.
package chunker

import (
	"errors"
	"strings"
)

// Chunk method tags stored in chunk metadata.
const (
	MethodParagraph  = "paragraph_boundary"
	MethodTokenSplit = "token_split"
)

var (
	ErrInvalidBudget   = errors.New("target tokens must be positive")
	ErrOverlapTooLarge = errors.New("overlap tokens must be smaller than target tokens")
)

// Tokenizer is the encoding the chunker counts and splits with. Satisfied
// by tokenizer.Tokenizer.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
	Count(text string) int
}

// Chunk is one bounded slice of the input text.
type Chunk struct {
	Text       string
	TokenCount int
	Method     string
}

type Chunker struct {
	tok Tokenizer
}

func New(tok Tokenizer) *Chunker {
	return &Chunker{tok: tok}
}

// Chunk splits text into chunks of at most targetTokens tokens, with
// consecutive chunks sharing a tail/head overlap of overlapTokens tokens.
// Empty or whitespace-only input yields zero chunks.
func (c *Chunker) Chunk(text string, targetTokens, overlapTokens int) ([]Chunk, error) {
	if targetTokens <= 0 {
		return nil, ErrInvalidBudget
	}
	if overlapTokens < 0 || overlapTokens >= targetTokens {
		return nil, ErrOverlapTooLarge
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, nil
	}

	var (
		chunks        []Chunk
		currentTokens []int
		currentTexts  []string
	)

	for _, paragraph := range paragraphs {
		paraTokens := c.tok.Encode(paragraph)

		// Adding this paragraph would push the buffer past the target:
		// flush the buffer first, then seed the next one with the
		// trailing overlap tokens so neighbouring chunks share context.
		if len(currentTokens) > 0 && len(currentTokens)+len(paraTokens) > targetTokens {
			chunks = append(chunks, Chunk{
				Text:       strings.Join(currentTexts, "\n\n"),
				TokenCount: len(currentTokens),
				Method:     MethodParagraph,
			})

			if overlapTokens > 0 && len(currentTokens) > overlapTokens {
				tail := append([]int(nil), currentTokens[len(currentTokens)-overlapTokens:]...)
				currentTokens = tail
				currentTexts = []string{c.tok.Decode(tail)}
			} else {
				currentTokens = nil
				currentTexts = nil
			}
		}

		currentTexts = append(currentTexts, paragraph)
		currentTokens = append(currentTokens, paraTokens...)

		// A single oversized paragraph is force-split at token
		// granularity until the remainder fits the budget.
		for len(currentTokens) > targetTokens {
			head := currentTokens[:targetTokens]
			chunks = append(chunks, Chunk{
				Text:       c.tok.Decode(head),
				TokenCount: len(head),
				Method:     MethodTokenSplit,
			})

			remainingStart := targetTokens - overlapTokens
			if remainingStart < 0 {
				remainingStart = 0
			}
			currentTokens = append([]int(nil), currentTokens[remainingStart:]...)
			currentTexts = []string{c.tok.Decode(currentTokens)}
		}
	}

	if len(currentTokens) > 0 {
		chunks = append(chunks, Chunk{
			Text:       strings.Join(currentTexts, "\n\n"),
			TokenCount: len(currentTokens),
			Method:     MethodParagraph,
		})
	}

	return chunks, nil
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
