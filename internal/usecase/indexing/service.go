package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/paperdex/internal/chunker"
	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/paper"
	"github.com/kailas-cloud/paperdex/internal/domain/stats"
	"github.com/kailas-cloud/paperdex/internal/logger"
	"github.com/kailas-cloud/paperdex/internal/metrics"
)

// DefaultConcurrency is the number of papers indexed at once by a batch.
const DefaultConcurrency = 1

// Options tune the indexing service.
type Options struct {
	// Concurrency bounds the papers of one batch processed in parallel.
	Concurrency int
	// EmbeddingModel is stored on every record.
	EmbeddingModel string
}

// Result is the outcome of indexing one paper. Err is nil on full success.
type Result struct {
	ArxivID string      `json:"arxiv_id"`
	Stats   stats.Stats `json:"stats"`
	// StoredChunks is the paper's chunk count in the index after a reindex.
	StoredChunks int   `json:"stored_chunks,omitempty"`
	Err          error `json:"-"`
}

// BatchResult holds aggregate stats and per-paper results in input order.
type BatchResult struct {
	Stats   stats.Batch
	Results []Result
}

// Service runs papers through chunk -> embed -> store.
type Service struct {
	chunker Chunker
	embed   Embedder
	store   ChunkStore
	opts    Options
	logger  *zap.Logger
}

// New creates an indexing service.
func New(ch Chunker, embed Embedder, store ChunkStore, opts Options, logger *zap.Logger) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{chunker: ch, embed: embed, store: store, opts: opts, logger: logger}
}

// IndexPaper chunks, embeds and stores one paper. Failures are reported in
// the result, never as a panic or a returned error.
func (s *Service) IndexPaper(ctx context.Context, p *paper.Paper) (res Result) {
	start := time.Now()
	res.ArxivID = p.ArxivID
	log := s.log(ctx).With(zap.String("arxiv_id", p.ArxivID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Indexing panicked", zap.Any("panic", r))
			res.Stats = stats.Failed()
			res.Err = fmt.Errorf("index paper %s: panic: %v", p.ArxivID, r)
		}
		metrics.ObservePaper(res.Stats, time.Since(start).Seconds())
	}()

	if p.PublishedDate.Unparsed() {
		log.Warn("Unrecognised published_date, indexing without date",
			zap.String("published_date", p.PublishedDate.Raw))
	}
	if p.ArxivID == "" {
		log.Error("Paper missing arxiv_id", zap.String("paper_id", string(p.ID)))
		res.Stats = stats.Failed()
		res.Err = domain.ErrMissingArxivID
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Stats = stats.Failed()
		res.Err = fmt.Errorf("index paper %s: %w", p.ArxivID, err)
		return res
	}

	chunks := s.chunker.ChunkPaper(chunker.InputFromPaper(p))
	if len(chunks) == 0 {
		log.Warn("No chunks created for paper")
		return res
	}
	n := len(chunks)
	log.Info("Created chunks", zap.Int("chunks", n))

	texts := make([]string, n)
	for i, c := range chunks {
		texts[i] = c.Text()
	}

	emb, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		var mismatch *domain.CountMismatchError
		if errors.As(err, &mismatch) {
			return s.mismatch(log, res, n, mismatch.Embeddings, err)
		}
		log.Error("Failed to embed chunks", zap.Error(err))
		res.Stats = stats.Failed()
		res.Err = fmt.Errorf("embed %d chunks of %s: %w", n, p.ArxivID, err)
		return res
	}
	if len(emb.Embeddings) != n {
		return s.mismatch(log, res, n, len(emb.Embeddings), domain.NewCountMismatch(n, len(emb.Embeddings)))
	}
	domain.UsageFromContext(ctx).Add(emb.TotalTokens, len(emb.Embeddings))

	records := make([]chunk.Record, n)
	for i, c := range chunks {
		records[i] = s.record(p, c, emb.Embeddings[i])
	}

	bulk, err := s.store.BulkUpsert(ctx, records)
	if err != nil {
		log.Error("Failed to store chunks", zap.Error(err))
		res.Stats = stats.Failed()
		res.Err = fmt.Errorf("store %d chunks of %s: %w", n, p.ArxivID, err)
		return res
	}

	res.Stats = stats.Stats{
		ChunksCreated:       n,
		ChunksIndexed:       bulk.Success,
		EmbeddingsGenerated: len(emb.Embeddings),
		Errors:              bulk.Failed,
	}
	if bulk.Failed > 0 {
		res.Err = fmt.Errorf("store %s: %d of %d chunks failed: %w", p.ArxivID, bulk.Failed, n, bulk.Err)
	}
	log.Info("Indexed paper",
		zap.Int("success", bulk.Success),
		zap.Int("failed", bulk.Failed),
	)
	return res
}

func (s *Service) mismatch(log *zap.Logger, res Result, chunks, embeddings int, err error) Result {
	log.Error("Embedding count mismatch", zap.Int("chunks", chunks), zap.Int("embeddings", embeddings))
	res.Stats = stats.Stats{ChunksCreated: chunks, EmbeddingsGenerated: embeddings, Errors: 1}
	res.Err = fmt.Errorf("index paper %s: %w", res.ArxivID, err)
	return res
}

func (s *Service) record(p *paper.Paper, c chunk.Chunk, vec []float32) chunk.Record {
	return chunk.Record{
		Chunk:          c,
		Embedding:      vec,
		EmbeddingModel: s.opts.EmbeddingModel,
		Title:          p.Title,
		Authors:        p.Authors.Joined(),
		Abstract:       p.Abstract,
		Categories:     p.Categories,
		PublishedDate:  p.PublishedDate.Time,
	}
}

// IndexPapersBatch indexes papers with bounded concurrency. When
// replaceExisting is set, the stored chunks of each paper are deleted first;
// a failed delete is logged and indexing proceeds.
func (s *Service) IndexPapersBatch(ctx context.Context, papers []paper.Paper, replaceExisting bool) BatchResult {
	out := BatchResult{Results: make([]Result, len(papers))}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for i := range papers {
		p := &papers[i]
		g.Go(func() error {
			if replaceExisting && p.ArxivID != "" {
				s.deleteExisting(ctx, p.ArxivID)
			}
			res := s.IndexPaper(ctx, p)

			mu.Lock()
			out.Results[i] = res
			out.Stats.Add(res.Stats)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log(ctx).Info("Batch indexing complete",
		zap.Int("papers", out.Stats.PapersProcessed),
		zap.Int("chunks_indexed", out.Stats.TotalChunksIndexed),
		zap.Int("errors", out.Stats.TotalErrors),
	)
	return out
}

// ReindexPaper replaces the stored chunks of arxivID with a fresh indexing of p.
// A paper without its own arxiv_id inherits arxivID; a different one is rejected
// before anything is deleted.
func (s *Service) ReindexPaper(ctx context.Context, arxivID string, p *paper.Paper) Result {
	if p.ArxivID != "" && arxivID != "" && p.ArxivID != arxivID {
		return Result{
			ArxivID: arxivID,
			Stats:   stats.Failed(),
			Err: fmt.Errorf("paper arxiv_id %q does not match %q: %w",
				p.ArxivID, arxivID, domain.ErrInvalidInput),
		}
	}
	if p.ArxivID == "" && arxivID != "" {
		cp := *p
		cp.ArxivID = arxivID
		p = &cp
	}
	if arxivID != "" {
		s.deleteExisting(ctx, arxivID)
	}

	res := s.IndexPaper(ctx, p)
	if res.Stats.ChunksIndexed > 0 {
		n, err := s.store.CountPaper(ctx, res.ArxivID)
		if err != nil {
			s.log(ctx).Warn("Failed to count stored chunks",
				zap.String("arxiv_id", res.ArxivID), zap.Error(err))
			return res
		}
		res.StoredChunks = n
	}
	return res
}

func (s *Service) deleteExisting(ctx context.Context, arxivID string) {
	n, err := s.store.DeleteByPaper(ctx, arxivID)
	if err != nil {
		s.log(ctx).Warn("Failed to delete existing chunks",
			zap.String("arxiv_id", arxivID), zap.Error(err))
		return
	}
	if n > 0 {
		s.log(ctx).Info("Deleted existing chunks",
			zap.String("arxiv_id", arxivID), zap.Int("deleted", n))
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}
