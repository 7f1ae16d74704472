package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/paperdex/internal/db"
	"github.com/kailas-cloud/paperdex/internal/domain"
	domchunk "github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/search/filter"
	"github.com/kailas-cloud/paperdex/internal/repository/chunk"
)

// textFields are the TEXT fields matched by lexical search. Their relative
// boosts live in the index schema.
var textFields = []string{chunk.FieldTitle, chunk.FieldAbstract, chunk.FieldAuthors, chunk.FieldChunkText}

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements usecase/search.Repository over the chunk index.
type Repo struct {
	store     store
	indexName string
}

// New creates a search repository reading from the given FT index.
func New(s store, indexName string) *Repo {
	return &Repo{store: s, indexName: indexName}
}

// SearchKNN returns the topK chunks nearest to vector, pre-filtered by filters.
// Scores are cosine similarities.
func (r *Repo) SearchKNN(
	ctx context.Context, vector []float32, filters filter.Expression, topK int,
) ([]domchunk.Hit, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  chunk.VectorAlias,
		Filters:      filters,
		Vector:       vector,
		K:            topK,
		ReturnFields: chunk.HitFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w: %w", r.indexName, domain.ErrIndexUnavailable, err)
	}
	return parseHits(sr), nil
}

// SearchBM25 returns the topK chunks matching query over title, abstract,
// authors and chunk text. Scores are raw BM25.
func (r *Repo) SearchBM25(
	ctx context.Context, query string, filters filter.Expression, topK int,
) ([]domchunk.Hit, error) {
	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.indexName,
		Query:        query,
		Fields:       textFields,
		Filters:      filters,
		TopK:         topK,
		ReturnFields: chunk.HitFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search bm25 %s: %w: %w", r.indexName, domain.ErrIndexUnavailable, err)
	}
	return parseHits(sr), nil
}

func parseHits(sr *db.SearchResult) []domchunk.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	hits := make([]domchunk.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hits = append(hits, chunk.ParseHit(entry.Fields, entry.Score))
	}
	return hits
}
