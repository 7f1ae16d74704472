package search

import (
	"context"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/search/filter"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	SearchKNN(ctx context.Context, vector []float32, filters filter.Expression, topK int) ([]chunk.Hit, error)
	SearchBM25(ctx context.Context, query string, filters filter.Expression, topK int) ([]chunk.Hit, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
