package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEmpty(t *testing.T) {
	assert.Nil(t, Split("", Options{}))
	assert.Nil(t, Split("   \n\t ", Options{}))
}

func TestSplitSingleChunk(t *testing.T) {
	chunks := Split("one two three", Options{MaxTokens: 10})
	assert.Len(t, chunks, 1)
	assert.Equal(t, "one two three", chunks[0].Text)
	assert.Equal(t, 3, chunks[0].TokenCount)
}

func TestSplitWindowsWithOverlap(t *testing.T) {
	words := make([]string, 10)
	for i := range words {
		words[i] = string(rune('a' + i))
	}
	chunks := Split(strings.Join(words, " "), Options{MaxTokens: 4, Overlap: 1})

	assert.Equal(t, "a b c d", chunks[0].Text)
	assert.Equal(t, "d e f g", chunks[1].Text)
	assert.Equal(t, "g h i j", chunks[2].Text)
	assert.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplitDefaults(t *testing.T) {
	// Nonsensical options fall back to sane windows instead of looping.
	chunks := Split("a b c", Options{MaxTokens: 2, Overlap: 5})
	assert.NotEmpty(t, chunks)
	assert.Equal(t, "a b", chunks[0].Text)
}
