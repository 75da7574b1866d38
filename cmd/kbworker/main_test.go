package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"care-planner/internal/app"
	"care-planner/internal/config"
	"care-planner/internal/embeddings"
	"care-planner/internal/store"
)

func newWorkerDeps() (app.WorkerDeps, *store.MockStore, *embeddings.MockEmbedder) {
	st := new(store.MockStore)
	emb := new(embeddings.MockEmbedder)
	deps := app.WorkerDeps{
		Config:   config.Config{EmbeddingModel: "text-embedding-3-small"},
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    st,
		Embedder: emb,
	}
	return deps, st, emb
}

func TestHandleIngestSuccess(t *testing.T) {
	deps, st, emb := newWorkerDeps()
	docID := uuid.New()
	chunkID := uuid.New()

	st.On("DeleteKBChunks", mock.Anything, docID).Return(nil).Once()
	st.On("SaveKBChunks", mock.Anything, docID, mock.MatchedBy(func(chunks []store.KBChunk) bool {
		return len(chunks) == 1 && chunks[0].Text == "Allopurinol is first-line urate-lowering therapy."
	})).Return([]store.KBChunk{
		{ID: chunkID, DocumentID: docID, Index: 0, Text: "Allopurinol is first-line urate-lowering therapy.", TokenCount: 6},
	}, nil).Once()

	emb.On("EmbedBatch", mock.Anything, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 1 && texts[0] == "Document: gout.txt\n\nAllopurinol is first-line urate-lowering therapy."
	})).Return([]embeddings.Vector{{0.1, 0.2}}, nil).Once()

	st.On("SaveKBEmbeddings", mock.Anything, mock.MatchedBy(func(embs []store.KBEmbedding) bool {
		return len(embs) == 1 && embs[0].ChunkID == chunkID && embs[0].Model == "text-embedding-3-small"
	})).Return(nil).Once()
	st.On("UpdateKBDocumentStatus", mock.Anything, docID, store.KBStatusReady).Return(nil).Once()

	err := handleIngest(context.Background(), deps, ingestTaskPayload{
		DocumentID: docID,
		Title:      "gout.txt",
		Content:    "Allopurinol is first-line urate-lowering therapy.",
	})

	require.NoError(t, err)
	st.AssertExpectations(t)
	emb.AssertExpectations(t)
}

func TestHandleIngestRetryClearsPreviousChunks(t *testing.T) {
	deps, st, emb := newWorkerDeps()
	docID := uuid.New()

	// An earlier run saved chunks and then failed at the embedding step; the
	// retry must not stack a second copy of the document.
	st.On("DeleteKBChunks", mock.Anything, docID).Return(nil).Once()
	st.On("SaveKBChunks", mock.Anything, docID, mock.Anything).Return([]store.KBChunk{
		{ID: uuid.New(), DocumentID: docID, Index: 0, Text: "retry me", TokenCount: 2},
	}, nil).Once()
	emb.On("EmbedBatch", mock.Anything, mock.Anything).
		Return([]embeddings.Vector{{0.3}}, nil).Once()
	st.On("SaveKBEmbeddings", mock.Anything, mock.Anything).Return(nil).Once()
	st.On("UpdateKBDocumentStatus", mock.Anything, docID, store.KBStatusReady).Return(nil).Once()

	err := handleIngest(context.Background(), deps, ingestTaskPayload{
		DocumentID: docID,
		Title:      "retry.txt",
		Content:    "retry me",
	})

	require.NoError(t, err)
	st.AssertExpectations(t)
}

func TestHandleIngestDeleteFailureMarksFailed(t *testing.T) {
	deps, st, _ := newWorkerDeps()
	docID := uuid.New()

	st.On("DeleteKBChunks", mock.Anything, docID).
		Return(errors.New("db unavailable")).Once()
	st.On("UpdateKBDocumentStatus", mock.Anything, docID, store.KBStatusFailed).Return(nil).Once()

	err := handleIngest(context.Background(), deps, ingestTaskPayload{
		DocumentID: docID,
		Title:      "doc.txt",
		Content:    "some text",
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to clear previous chunks")
	st.AssertNotCalled(t, "SaveKBChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleIngestEmptyDocument(t *testing.T) {
	deps, st, _ := newWorkerDeps()
	docID := uuid.New()
	st.On("UpdateKBDocumentStatus", mock.Anything, docID, store.KBStatusFailed).Return(nil).Once()

	err := handleIngest(context.Background(), deps, ingestTaskPayload{
		DocumentID: docID,
		Title:      "empty.txt",
		Content:    "   \n\t  ",
	})

	require.Error(t, err)
	st.AssertExpectations(t)
}

func TestHandleIngestEmbeddingFailureMarksFailed(t *testing.T) {
	deps, st, emb := newWorkerDeps()
	docID := uuid.New()

	st.On("DeleteKBChunks", mock.Anything, docID).Return(nil).Once()
	st.On("SaveKBChunks", mock.Anything, docID, mock.Anything).Return([]store.KBChunk{
		{ID: uuid.New(), DocumentID: docID, Index: 0, Text: "some text", TokenCount: 2},
	}, nil).Once()
	emb.On("EmbedBatch", mock.Anything, mock.Anything).
		Return(nil, errors.New("embedding provider unavailable")).Once()
	st.On("UpdateKBDocumentStatus", mock.Anything, docID, store.KBStatusFailed).Return(nil).Once()

	err := handleIngest(context.Background(), deps, ingestTaskPayload{
		DocumentID: docID,
		Title:      "doc.txt",
		Content:    "some text",
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to generate embeddings")
	st.AssertExpectations(t)
	emb.AssertExpectations(t)
}

func TestHandleIngestStatusUpdateFailureStillReturnsCause(t *testing.T) {
	deps, st, _ := newWorkerDeps()
	docID := uuid.New()

	st.On("DeleteKBChunks", mock.Anything, docID).Return(nil).Once()
	st.On("SaveKBChunks", mock.Anything, docID, mock.Anything).
		Return(nil, errors.New("db write failed")).Once()
	st.On("UpdateKBDocumentStatus", mock.Anything, docID, store.KBStatusFailed).
		Return(errors.New("db still down")).Once()

	err := handleIngest(context.Background(), deps, ingestTaskPayload{
		DocumentID: docID,
		Title:      "doc.txt",
		Content:    "some text",
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to save chunks")
	st.AssertExpectations(t)
}
