package result

import (
	"testing"

	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/search/mode"
)

func TestNew(t *testing.T) {
	hits := []chunk.Hit{{ArxivID: "1706.03762", ChunkIndex: 2, Score: 0.5}}

	p := New("attention", 42, hits, 10, 20, mode.BM25)

	if p.Query() != "attention" {
		t.Errorf("Query() = %q", p.Query())
	}
	if p.Total() != 42 {
		t.Errorf("Total() = %d", p.Total())
	}
	if len(p.Hits()) != 1 || p.Hits()[0].ChunkIndex != 2 {
		t.Errorf("Hits() = %v", p.Hits())
	}
	if p.Size() != 10 || p.From() != 20 {
		t.Errorf("Size() = %d, From() = %d", p.Size(), p.From())
	}
	if p.Mode() != mode.BM25 {
		t.Errorf("Mode() = %q", p.Mode())
	}
}

func TestNew_NoHits(t *testing.T) {
	p := New("q", 0, nil, 10, 0, mode.Hybrid)
	if p.Hits() != nil || p.Total() != 0 {
		t.Errorf("unexpected page %+v", p)
	}
}
