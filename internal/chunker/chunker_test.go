package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runeTokenizer treats every rune as one token, which makes token budgets
// easy to reason about in tests.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeTokenizer) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		runes[i] = rune(tok)
	}
	return string(runes)
}

func (runeTokenizer) Count(text string) int {
	return len([]rune(text))
}

func TestChunk_SingleSmallParagraph(t *testing.T) {
	c := New(runeTokenizer{})

	chunks, err := c.Chunk("hello world", 20, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, 11, chunks[0].TokenCount)
	assert.Equal(t, MethodParagraph, chunks[0].Method)
}

func TestChunk_PacksParagraphsUpToTarget(t *testing.T) {
	c := New(runeTokenizer{})

	text := "aaaa\n\nbbbb\n\ncccc"
	chunks, err := c.Chunk(text, 10, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "aaaa\n\nbbbb", chunks[0].Text)
	assert.Equal(t, 8, chunks[0].TokenCount)
	assert.Equal(t, MethodParagraph, chunks[0].Method)

	assert.Equal(t, "cccc", chunks[1].Text)
	assert.Equal(t, 4, chunks[1].TokenCount)
	assert.Equal(t, MethodParagraph, chunks[1].Method)
}

func TestChunk_OverlapSeedsNextChunk(t *testing.T) {
	c := New(runeTokenizer{})

	chunks, err := c.Chunk("aaaa\n\nbbbb\n\ncccc", 10, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "aaaa\n\nbbbb", chunks[0].Text)
	// Next chunk starts with the previous chunk's last 5 tokens.
	assert.Equal(t, "abbbb\n\ncccc", chunks[1].Text)
	assert.Equal(t, 9, chunks[1].TokenCount)
}

func TestChunk_OversizedParagraphTokenSplit(t *testing.T) {
	c := New(runeTokenizer{})

	paragraph := "abcdefghijklmnopqrstuvwxy" // 25 distinct runes
	chunks, err := c.Chunk(paragraph, 10, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	for _, chunk := range chunks[:3] {
		assert.Equal(t, MethodTokenSplit, chunk.Method)
		assert.Equal(t, 10, chunk.TokenCount)
	}
	assert.Equal(t, MethodParagraph, chunks[3].Method)
	assert.Equal(t, 4, chunks[3].TokenCount)

	// Every chunk respects the budget and consecutive chunks share the
	// configured overlap.
	for i, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 10)
		if i > 0 {
			tail := chunks[i-1].Text[len(chunks[i-1].Text)-3:]
			assert.True(t, strings.HasPrefix(chunk.Text, tail),
				"chunk %d should start with previous chunk's tail %q", i, tail)
		}
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(runeTokenizer{})

	chunks, err := c.Chunk("", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk("  \n\n \n\n\t", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_InvalidBudgets(t *testing.T) {
	c := New(runeTokenizer{})

	_, err := c.Chunk("text", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	_, err = c.Chunk("text", -1, 0)
	assert.ErrorIs(t, err, ErrInvalidBudget)

	_, err = c.Chunk("text", 10, 10)
	assert.ErrorIs(t, err, ErrOverlapTooLarge)

	_, err = c.Chunk("text", 10, -1)
	assert.ErrorIs(t, err, ErrOverlapTooLarge)
}

func TestChunk_ParagraphWhitespaceTrimmed(t *testing.T) {
	c := New(runeTokenizer{})

	chunks, err := c.Chunk("  first  \n\n\n\n  second  ", 50, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "first\n\nsecond", chunks[0].Text)
}
