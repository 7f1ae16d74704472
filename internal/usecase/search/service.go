package search

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/search/mode"
	"github.com/kailas-cloud/paperdex/internal/domain/search/request"
	"github.com/kailas-cloud/paperdex/internal/domain/search/result"
)

// cacheLayer labels query-embedding cache metrics.
const cacheLayer = "query"

// Candidate depth per ranking.
const (
	DefaultQueryCacheSize = 1024
	candidateFactor       = 3
	minCandidates         = 30
	maxCandidates         = 300
)

// Options tune the search service.
type Options struct {
	// QueryCacheSize bounds the in-process query embedding cache; negative disables it.
	QueryCacheSize int
}

// Service runs hybrid (KNN + BM25) searches over paper chunks.
type Service struct {
	repo       Repository
	embed      Embedder
	queryCache *lru.Cache[string, []float32]
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a search service.
// cacheTotal is a counter vec with labels "layer" and "result", may be nil.
func New(
	repo Repository, embed Embedder, opts Options,
	cacheTotal *prometheus.CounterVec, logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{repo: repo, embed: embed, cacheTotal: cacheTotal, logger: logger}

	size := opts.QueryCacheSize
	if size == 0 {
		size = DefaultQueryCacheSize
	}
	if size > 0 {
		c, err := lru.New[string, []float32](size)
		if err != nil {
			return nil, fmt.Errorf("query embedding cache: %w", err)
		}
		s.queryCache = c
	}
	return s, nil
}

// Search ranks chunks for req. When hybrid search is requested but the query
// cannot be embedded, it degrades to BM25 and reports mode "bm25".
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Page, error) {
	k := candidates(req.Window())

	var vec []float32
	if req.UseHybrid() {
		var err error
		vec, err = s.queryVector(ctx, req.Query())
		if err != nil {
			s.logger.Warn("Failed to embed query, falling back to BM25",
				zap.String("query", req.Query()), zap.Error(err))
			vec = nil
		}
	}

	var (
		hits []chunk.Hit
		m    mode.Mode
		err  error
	)
	if vec != nil {
		hits, err = s.searchHybrid(ctx, req, vec, k)
		m = mode.Hybrid
	} else {
		hits, err = s.searchBM25(ctx, req, k)
		m = mode.BM25
	}
	if err != nil {
		return result.Page{}, err
	}

	if req.MinScore() > 0 {
		hits = slices.DeleteFunc(hits, func(h chunk.Hit) bool { return h.Score < req.MinScore() })
	}
	if req.Latest() {
		slices.SortStableFunc(hits, func(a, b chunk.Hit) int {
			return b.PublishedDate.Compare(a.PublishedDate)
		})
	}

	total := len(hits)
	from := min(req.From(), total)
	to := min(from+req.Size(), total)
	page := hits[from:to]
	if len(page) == 0 {
		page = nil
	}

	s.logger.Debug("Search completed",
		zap.String("query", req.Query()),
		zap.String("mode", string(m)),
		zap.Int("total", total),
	)
	return result.New(req.Query(), total, page, req.Size(), req.From(), m), nil
}

// searchHybrid runs KNN and BM25 in parallel, then fuses them via RRF.
func (s *Service) searchHybrid(ctx context.Context, req *request.Request, vec []float32, k int) ([]chunk.Hit, error) {
	var knn, bm25 []chunk.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		knn, err = s.repo.SearchKNN(gctx, vec, req.Filters(), k)
		if err != nil {
			return fmt.Errorf("search knn: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bm25, err = s.repo.SearchBM25(gctx, req.Query(), req.Filters(), k)
		if err != nil {
			return fmt.Errorf("search bm25: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped inside the group
	}
	return fuseRRF(knn, bm25), nil
}

func (s *Service) searchBM25(ctx context.Context, req *request.Request, k int) ([]chunk.Hit, error) {
	hits, err := s.repo.SearchBM25(ctx, req.Query(), req.Filters(), k)
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}
	return hits, nil
}

// queryVector embeds the query, consulting the in-process cache first.
func (s *Service) queryVector(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache != nil {
		if vec, ok := s.queryCache.Get(query); ok {
			s.incCache("hit")
			return vec, nil
		}
		s.incCache("miss")
	}

	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("vectorize query: empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	domain.UsageFromContext(ctx).Add(res.TotalTokens, 1)

	if s.queryCache != nil {
		s.queryCache.Add(query, res.Embedding)
	}
	return res.Embedding, nil
}

func (s *Service) incCache(outcome string) {
	if s.cacheTotal != nil {
		s.cacheTotal.WithLabelValues(cacheLayer, outcome).Inc()
	}
}

// candidates is the depth fetched from each ranking to serve window hits.
func candidates(window int) int {
	return min(max(window*candidateFactor, minCandidates), max(maxCandidates, window))
}
