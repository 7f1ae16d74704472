package indexing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/paperdex/internal/chunker"
	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/paper"
)

// --- Mocks ---

type mockEmbedder struct {
	batchFn func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.batchFn != nil {
		return m.batchFn(ctx, texts)
	}
	return vectorsFor(texts), nil
}

type mockStore struct {
	mu       sync.Mutex
	bulkFn   func(ctx context.Context, records []chunk.Record) (chunk.BulkResult, error)
	deleteFn func(ctx context.Context, arxivID string) (int, error)
	countFn  func(ctx context.Context, arxivID string) (int, error)
	stored   []chunk.Record
	deleted  []string
}

func (m *mockStore) BulkUpsert(ctx context.Context, records []chunk.Record) (chunk.BulkResult, error) {
	if m.bulkFn != nil {
		return m.bulkFn(ctx, records)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, records...)
	return chunk.BulkResult{Success: len(records)}, nil
}

func (m *mockStore) DeleteByPaper(ctx context.Context, arxivID string) (int, error) {
	m.mu.Lock()
	m.deleted = append(m.deleted, arxivID)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, arxivID)
	}
	return 0, nil
}

func (m *mockStore) CountPaper(ctx context.Context, arxivID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, arxivID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.stored {
		if m.stored[i].Chunk.ArxivID() == arxivID {
			n++
		}
	}
	return n, nil
}

type mockChunker struct {
	chunkFn func(in chunker.Input) []chunk.Chunk
}

func (m *mockChunker) ChunkPaper(in chunker.Input) []chunk.Chunk {
	return m.chunkFn(in)
}

// --- Helpers ---

func vectorsFor(texts []string) domain.BatchEmbeddingResult {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		out.Embeddings[i] = []float32{float32(i), 0.1, 0.2, 0.3}
		out.TotalTokens += 10
	}
	return out
}

func newTestService(t *testing.T, emb Embedder, store ChunkStore, concurrency int) *Service {
	t.Helper()
	ch, err := chunker.New(chunker.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	return New(ch, emb, store, Options{Concurrency: concurrency, EmbeddingModel: "jina-embeddings-v3"}, nil)
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

// testPaper has no sections and wordCount words of raw text.
func testPaper(arxivID string, wordCount int) paper.Paper {
	return paper.Paper{
		ID:         "42",
		ArxivID:    arxivID,
		Title:      "Attention Is All You Need",
		Abstract:   "We propose the Transformer.",
		Authors:    paper.Authors{"Ashish Vaswani", "Noam Shazeer"},
		Categories: paper.Categories{"cs.CL", "cs.LG"},
		RawText:    words(wordCount),
	}
}
