package chunker

import (
	"strings"
)

// Options controls how knowledge-base text is chunked.
type Options struct {
	MaxTokens int
	Overlap   int
}

// Chunk represents a slice of the document text.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

// Split performs a sliding word window with overlap. Tokens are approximated
// by whitespace-delimited words; guideline documents are prose, so word
// counts track model tokens closely enough for retrieval purposes.
func Split(text string, opts Options) []Chunk {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 400
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := opts.MaxTokens - opts.Overlap
	if step <= 0 {
		step = opts.MaxTokens
	}

	var chunks []Chunk
	for start := 0; start < len(words); start += step {
		end := start + opts.MaxTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       strings.Join(words[start:end], " "),
			TokenCount: end - start,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}
