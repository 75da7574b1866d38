package retrieval

import (
	"context"
	"fmt"

	"care-planner/internal/embeddings"
	"care-planner/internal/store"
)

// KBRetriever embeds the query and runs a vector search over ready
// knowledge-base documents.
type KBRetriever struct {
	store    store.Store
	embedder embeddings.Embedder
}

func NewKBRetriever(st store.Store, embedder embeddings.Embedder) *KBRetriever {
	return &KBRetriever{store: st, embedder: embedder}
}

func (r *KBRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = 3
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := r.store.SearchKB(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge-base search failed: %w", err)
	}
	passages := make([]Passage, len(results))
	for i, res := range results {
		passages[i] = Passage{
			Text:      res.Chunk.Text,
			SourceURI: res.SourceURI,
			Score:     res.Score,
		}
	}
	return passages, nil
}
