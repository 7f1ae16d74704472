package chunk

import (
	"strconv"
	"time"
)

// Record is a chunk plus its embedding and the paper fields needed to render
// a search hit without a lookup in the paper store.
type Record struct {
	Chunk          Chunk
	Embedding      []float32
	EmbeddingModel string

	Title         string
	Authors       string
	Abstract      string
	Categories    []string
	PublishedDate time.Time // zero when unknown
}

// Hit is a chunk returned by a search, with its denormalized paper fields.
type Hit struct {
	ArxivID       string
	PaperID       string
	ChunkIndex    int
	ChunkText     string
	SectionTitle  string
	Title         string
	Authors       string
	Abstract      string
	Categories    []string
	PublishedDate time.Time
	Score         float64
}

// Key identifies the hit within the index (arxiv id + chunk index).
func (h *Hit) Key() string {
	return h.ArxivID + "#" + strconv.Itoa(h.ChunkIndex)
}

// BulkResult counts the outcome of a bulk upsert. Err holds the first
// per-record failure and is nil when Failed is zero.
type BulkResult struct {
	Success int
	Failed  int
	Err     error
}

// IndexStats describes the chunk index.
type IndexStats struct {
	IndexName  string
	ChunkCount int
}
