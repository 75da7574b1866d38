package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"care-planner/internal/embeddings"
	"care-planner/internal/store"
)

func TestRetrieveMapsResults(t *testing.T) {
	st := new(store.MockStore)
	emb := new(embeddings.MockEmbedder)
	vec := embeddings.Vector{0.1, 0.2}

	emb.On("Embed", mock.Anything, "gout guidelines").Return(vec, nil).Once()
	st.On("SearchKB", mock.Anything, vec, 2).Return([]store.KBSearchResult{
		{Chunk: store.KBChunk{Text: "Allopurinol is first-line."}, Score: 0.91, SourceURI: "kb://gout.pdf"},
		{Chunk: store.KBChunk{Text: "Limit purine intake."}, Score: 0.84, SourceURI: "kb://diet.txt"},
	}, nil).Once()

	got, err := NewKBRetriever(st, emb).Retrieve(context.Background(), "gout guidelines", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Allopurinol is first-line.", got[0].Text)
	assert.Equal(t, "kb://gout.pdf", got[0].SourceURI)
	assert.InDelta(t, 0.91, got[0].Score, 1e-6)

	st.AssertExpectations(t)
	emb.AssertExpectations(t)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	st := new(store.MockStore)
	emb := new(embeddings.MockEmbedder)
	emb.On("Embed", mock.Anything, "q").Return(embeddings.Vector{1}, nil).Once()
	st.On("SearchKB", mock.Anything, mock.Anything, 3).Return([]store.KBSearchResult{}, nil).Once()

	_, err := NewKBRetriever(st, emb).Retrieve(context.Background(), "q", 0)
	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestRetrieveEmbedFailure(t *testing.T) {
	st := new(store.MockStore)
	emb := new(embeddings.MockEmbedder)
	emb.On("Embed", mock.Anything, "q").Return(nil, errors.New("api down")).Once()

	_, err := NewKBRetriever(st, emb).Retrieve(context.Background(), "q", 3)
	require.Error(t, err)
	st.AssertNotCalled(t, "SearchKB", mock.Anything, mock.Anything, mock.Anything)
}
