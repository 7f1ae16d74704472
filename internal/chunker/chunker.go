// Package chunker splits paper text into overlapping, section-aware chunks.
//
// Chunking is deterministic and performs no I/O: the same input always yields
// the same chunk sequence.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/paper"
)

// ErrInvalidConfig signals chunker parameters that cannot produce valid windows.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Default window parameters, in words.
const (
	DefaultChunkSize    = 600
	DefaultOverlapSize  = 100
	DefaultMinChunkSize = 100
)

// Section sizing thresholds, in words.
const (
	smallSectionWords = 100
	largeSectionWords = 800
	mergeLimitWords   = 200
)

// Config holds the window parameters.
type Config struct {
	ChunkSize    int // target words per chunk
	OverlapSize  int // words shared by adjacent chunks
	MinChunkSize int // below this, text becomes a single chunk
}

// DefaultConfig returns 600/100/100.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		OverlapSize:  DefaultOverlapSize,
		MinChunkSize: DefaultMinChunkSize,
	}
}

// Validate checks that the window can advance.
func (c Config) Validate() error {
	switch {
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk_size must be positive, got %d: %w", c.ChunkSize, ErrInvalidConfig)
	case c.OverlapSize < 0:
		return fmt.Errorf("overlap_size must not be negative, got %d: %w", c.OverlapSize, ErrInvalidConfig)
	case c.MinChunkSize < 0:
		return fmt.Errorf("min_chunk_size must not be negative, got %d: %w", c.MinChunkSize, ErrInvalidConfig)
	case c.OverlapSize >= c.ChunkSize:
		return fmt.Errorf("overlap_size (%d) must be less than chunk_size (%d): %w",
			c.OverlapSize, c.ChunkSize, ErrInvalidConfig)
	}
	return nil
}

// Input is the paper snapshot the chunker works on.
type Input struct {
	ArxivID  string
	PaperID  string
	Title    string
	Abstract string
	FullText string
	Sections paper.Sections
}

// InputFromPaper extracts the chunker input from a decoded paper.
func InputFromPaper(p *paper.Paper) Input {
	return Input{
		ArxivID:  p.ArxivID,
		PaperID:  string(p.ID),
		Title:    p.Title,
		Abstract: p.Abstract,
		FullText: p.Text(),
		Sections: p.Sections,
	}
}

// Chunker produces chunks for papers. It is safe for concurrent use.
type Chunker struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Chunker. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{cfg: cfg, logger: logger}, nil
}

// Config returns the window parameters.
func (c *Chunker) Config() Config { return c.cfg }

// ChunkPaper chunks a paper, section by section when it has usable sections
// and over the full text otherwise. Blank text without sections yields nil.
func (c *Chunker) ChunkPaper(in Input) []chunk.Chunk {
	if len(in.Sections) > 0 {
		chunks := c.chunkBySections(in)
		if len(chunks) > 0 {
			c.logger.Debug("section-based chunks created",
				zap.String("arxiv_id", in.ArxivID),
				zap.Int("chunks", len(chunks)),
			)
			return chunks
		}
		c.logger.Debug("no usable sections, falling back to word chunking",
			zap.String("arxiv_id", in.ArxivID),
		)
	}
	return c.ChunkText(in.FullText, in.ArxivID, in.PaperID)
}

// header is prefixed to every section-based chunk.
func header(title, abstract string) string {
	return title + "\n\nAbstract: " + abstract + "\n\n"
}

func sectionBlock(title, content string) string {
	return "Section: " + title + "\n\n" + content
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
