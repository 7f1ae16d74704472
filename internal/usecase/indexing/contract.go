package indexing

import (
	"context"

	"github.com/kailas-cloud/paperdex/internal/chunker"
	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
)

// Chunker splits a paper into ordered chunks.
type Chunker interface {
	ChunkPaper(in chunker.Input) []chunk.Chunk
}

// Embedder vectorizes chunk texts, returning vectors in input order.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// ChunkStore persists index records.
type ChunkStore interface {
	BulkUpsert(ctx context.Context, records []chunk.Record) (chunk.BulkResult, error)
	DeleteByPaper(ctx context.Context, arxivID string) (int, error)
	CountPaper(ctx context.Context, arxivID string) (int, error)
}
