package chunk

// Metadata describes where a chunk came from and how it overlaps its neighbours.
// StartChar/EndChar are approximate offsets into the space-joined source words.
type Metadata struct {
	ChunkIndex          int
	StartChar           int
	EndChar             int
	WordCount           int
	OverlapWithPrevious int
	OverlapWithNext     int
	SectionTitle        string // empty when the chunk is not tied to a section
}

// Chunk is an immutable unit of indexable paper text.
type Chunk struct {
	text    string
	meta    Metadata
	arxivID string
	paperID string
}

// New creates a Chunk.
func New(text string, meta Metadata, arxivID, paperID string) Chunk {
	return Chunk{text: text, meta: meta, arxivID: arxivID, paperID: paperID}
}

// Text returns the literal text that is embedded and indexed.
func (c Chunk) Text() string { return c.text }

// Metadata returns a copy of the chunk metadata.
func (c Chunk) Metadata() Metadata { return c.meta }

// Index returns the position of the chunk within its paper.
func (c Chunk) Index() int { return c.meta.ChunkIndex }

// ArxivID returns the arXiv identifier of the source paper.
func (c Chunk) ArxivID() string { return c.arxivID }

// PaperID returns the database identifier of the source paper.
func (c Chunk) PaperID() string { return c.paperID }

// With returns a copy carrying the given text and metadata. The receiver is unchanged.
func (c Chunk) With(text string, meta Metadata) Chunk {
	return Chunk{text: text, meta: meta, arxivID: c.arxivID, paperID: c.paperID}
}
