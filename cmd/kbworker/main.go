package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"care-planner/internal/app"
	"care-planner/internal/chunker"
	"care-planner/internal/httputil"
	"care-planner/internal/queue"
	"care-planner/internal/store"
)

type ingestTaskPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
}

func main() {
	deps, err := app.BuildWorker("kbworker")
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("knowledge-base ingestion worker starting")

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeIngest, func(ctx context.Context, task queue.Task) error {
			var payload ingestTaskPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleIngest(ctx, deps, payload)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(deps.Log, deps.Config.Port)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("kbworker stopped", "err", err)
	}
}

// handleIngest chunks and embeds one document. A failed run marks the
// document failed; a successful retry flips it back to ready.
func handleIngest(ctx context.Context, deps app.WorkerDeps, payload ingestTaskPayload) error {
	log := deps.Log.With("document_id", payload.DocumentID)

	err := ingest(ctx, deps, payload)
	if err != nil {
		if upErr := deps.Store.UpdateKBDocumentStatus(ctx, payload.DocumentID, store.KBStatusFailed); upErr != nil {
			log.Error("failed to mark document failed", "err", upErr)
		}
		return err
	}
	log.Info("document ingested")
	return nil
}

func ingest(ctx context.Context, deps app.WorkerDeps, payload ingestTaskPayload) error {
	chunks := chunker.Split(payload.Content, chunker.Options{MaxTokens: 400, Overlap: 40})
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no extractable text", payload.DocumentID)
	}

	// A retried task starts clean; chunks saved by an earlier failed run must
	// not survive as duplicate passages.
	if err := deps.Store.DeleteKBChunks(ctx, payload.DocumentID); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	kbChunks := make([]store.KBChunk, len(chunks))
	for i, c := range chunks {
		kbChunks[i] = store.KBChunk{Index: c.Index, Text: c.Text, TokenCount: c.TokenCount}
	}
	saved, err := deps.Store.SaveKBChunks(ctx, payload.DocumentID, kbChunks)
	if err != nil {
		return fmt.Errorf("failed to save chunks: %w", err)
	}

	// Prefix each chunk with its document title; retrieval quality improves
	// when the embedding carries the source context.
	texts := make([]string, len(saved))
	for i, c := range saved {
		texts[i] = fmt.Sprintf("Document: %s\n\n%s", payload.Title, c.Text)
	}
	vectors, err := deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	embs := make([]store.KBEmbedding, len(saved))
	for i, c := range saved {
		embs[i] = store.KBEmbedding{
			ChunkID: c.ID,
			Vector:  vectors[i],
			Model:   deps.Config.EmbeddingModel,
		}
	}
	if err := deps.Store.SaveKBEmbeddings(ctx, embs); err != nil {
		return fmt.Errorf("failed to save embeddings: %w", err)
	}

	return deps.Store.UpdateKBDocumentStatus(ctx, payload.DocumentID, store.KBStatusReady)
}
