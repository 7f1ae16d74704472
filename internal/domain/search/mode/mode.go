package mode

// Mode is the retrieval strategy a search actually ran with.
type Mode string

// Search mode constants.
const (
	// Hybrid fuses vector (KNN) and lexical (BM25) rankings.
	Hybrid Mode = "hybrid"
	// BM25 ranks by lexical relevance only. Hybrid searches degrade to it
	// when the query cannot be embedded.
	BM25 Mode = "bm25"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == BM25
}
