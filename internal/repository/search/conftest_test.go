package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/paperdex/internal/db"
	"github.com/kailas-cloud/paperdex/internal/domain/search/filter"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn  func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchBM25Fn func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, "paperdex:chunks:idx")
	return repo, ms
}

func testVector() []float32 {
	return []float32{0.1, 0.1, 0.1, 0.1}
}

func mustMatch(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return c
}

func mustExpression(t *testing.T, must, should []filter.Condition) filter.Expression {
	t.Helper()
	e, err := filter.NewExpression(must, should)
	if err != nil {
		t.Fatalf("NewExpression: %v", err)
	}
	return e
}

func chunkEntry(key, arxivID, idx string, score float64) db.SearchEntry {
	return db.SearchEntry{
		Key:   key,
		Score: score,
		Fields: map[string]string{
			"arxiv_id":       arxivID,
			"paper_id":       "7",
			"chunk_index":    idx,
			"chunk_text":     "Transformers rely on attention.",
			"section_title":  "Introduction",
			"title":          "Attention Is All You Need",
			"authors":        "Ashish Vaswani",
			"abstract":       "We propose the Transformer.",
			"categories":     "cs.CL,cs.LG",
			"published_date": "2017-06-12T00:00:00Z",
		},
	}
}
