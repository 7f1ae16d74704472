package stats

// Stats counts the outcome of indexing one paper.
type Stats struct {
	ChunksCreated       int `json:"chunks_created"`
	ChunksIndexed       int `json:"chunks_indexed"`
	EmbeddingsGenerated int `json:"embeddings_generated"`
	Errors              int `json:"errors"`
}

// Failed is the stats value of a paper that failed before anything was indexed.
func Failed() Stats { return Stats{Errors: 1} }

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		ChunksCreated:       s.ChunksCreated + o.ChunksCreated,
		ChunksIndexed:       s.ChunksIndexed + o.ChunksIndexed,
		EmbeddingsGenerated: s.EmbeddingsGenerated + o.EmbeddingsGenerated,
		Errors:              s.Errors + o.Errors,
	}
}

// Batch aggregates Stats across papers.
type Batch struct {
	PapersProcessed          int `json:"papers_processed"`
	TotalChunksCreated       int `json:"total_chunks_created"`
	TotalChunksIndexed       int `json:"total_chunks_indexed"`
	TotalEmbeddingsGenerated int `json:"total_embeddings_generated"`
	TotalErrors              int `json:"total_errors"`
}

// Add folds one paper's stats into the batch and counts the paper as processed.
func (b *Batch) Add(s Stats) {
	b.PapersProcessed++
	b.TotalChunksCreated += s.ChunksCreated
	b.TotalChunksIndexed += s.ChunksIndexed
	b.TotalEmbeddingsGenerated += s.EmbeddingsGenerated
	b.TotalErrors += s.Errors
}
