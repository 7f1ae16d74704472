package chunk

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/paperdex/internal/db"
	domchunk "github.com/kailas-cloud/paperdex/internal/domain/chunk"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) []error
	delMultiFn    func(ctx context.Context, keys []string) (int, error)
	scanFn        func(ctx context.Context, pattern string) ([]string, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)

	hsetCalls int
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	m.hsetCalls++
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return make([]error, len(items))
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) (int, error) {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	return len(keys), nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

// hashes keeps HSET semantics: fields merge into an existing hash unless the
// item replaces it.
type hashes map[string]map[string]string

func (h hashes) hsetMulti(_ context.Context, items []db.HashSetItem) []error {
	for _, it := range items {
		if it.Replace || h[it.Key] == nil {
			h[it.Key] = make(map[string]string, len(it.Fields))
		}
		for k, v := range it.Fields {
			h[it.Key][k] = v
		}
	}
	return make([]error, len(items))
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, Config{VectorDim: 4, HNSW: HNSWConfig{M: 16, EFConstruct: 200}})
	return repo, ms
}

func testRecord(arxivID string, idx int) domchunk.Record {
	c := domchunk.New("chunk text", domchunk.Metadata{
		ChunkIndex:   idx,
		EndChar:      10,
		WordCount:    2,
		SectionTitle: "Introduction",
	}, arxivID, "42")
	return domchunk.Record{
		Chunk:          c,
		Embedding:      []float32{0.1, 0.2, 0.3, 0.4},
		EmbeddingModel: "jina-embeddings-v3",
		Title:          "Attention Is All You Need",
		Authors:        "Ashish Vaswani, Noam Shazeer",
		Abstract:       "The dominant sequence transduction models...",
		Categories:     []string{"cs.CL", "cs.LG"},
		PublishedDate:  time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC),
	}
}
