package chunker

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
)

// ChunkText splits text into windows of ChunkSize words that advance by
// ChunkSize-OverlapSize words. Offsets are character positions in the
// space-joined word sequence.
func (c *Chunker) ChunkText(text, arxivID, paperID string) []chunk.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		c.logger.Debug("empty text", zap.String("arxiv_id", arxivID))
		return nil
	}

	if len(words) < c.cfg.MinChunkSize {
		c.logger.Debug("text below minimum chunk size",
			zap.String("arxiv_id", arxivID),
			zap.Int("words", len(words)),
			zap.Int("min_chunk_size", c.cfg.MinChunkSize),
		)
		return []chunk.Chunk{chunk.New(strings.Join(words, " "), chunk.Metadata{
			ChunkIndex: 0,
			StartChar:  0,
			EndChar:    utf8.RuneCountInString(text),
			WordCount:  len(words),
		}, arxivID, paperID)}
	}

	// offsets[i] is the length of words[:i] joined by single spaces.
	offsets := make([]int, len(words)+1)
	for i, w := range words {
		offsets[i+1] = offsets[i] + utf8.RuneCountInString(w)
		if i > 0 {
			offsets[i+1]++
		}
	}

	step := c.cfg.ChunkSize - c.cfg.OverlapSize
	chunks := make([]chunk.Chunk, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := min(start+c.cfg.ChunkSize, len(words))

		meta := chunk.Metadata{
			ChunkIndex: len(chunks),
			EndChar:    offsets[end],
			WordCount:  end - start,
		}
		if start > 0 {
			meta.StartChar = offsets[start]
			meta.OverlapWithPrevious = min(c.cfg.OverlapSize, start)
		}
		if end < len(words) {
			meta.OverlapWithNext = c.cfg.OverlapSize
		}

		chunks = append(chunks, chunk.New(strings.Join(words[start:end], " "), meta, arxivID, paperID))
		if end >= len(words) {
			break
		}
	}

	c.logger.Debug("word-based chunks created",
		zap.String("arxiv_id", arxivID),
		zap.Int("words", len(words)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}
