// Package retrieval looks up reference passages in the knowledge base for
// inclusion in generation prompts.
package retrieval

import "context"

// Passage is one retrieved slice of reference text.
type Passage struct {
	Text      string  `json:"text"`
	SourceURI string  `json:"source_uri"`
	Score     float32 `json:"score"`
}

// Retriever finds the passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Passage, error)
}
