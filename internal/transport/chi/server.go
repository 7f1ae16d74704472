package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/paper"
	"github.com/kailas-cloud/paperdex/internal/domain/search/request"
	"github.com/kailas-cloud/paperdex/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/paperdex/internal/logger"
	"github.com/kailas-cloud/paperdex/internal/metrics"
	healthuc "github.com/kailas-cloud/paperdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/paperdex/internal/usecase/indexing"
	"github.com/kailas-cloud/paperdex/internal/version"
)

// Request body limits.
const (
	DefaultMaxBatchPapers = 100
	DefaultMaxBodyBytes   = 64 << 20
)

// Indexer runs papers through the indexing pipeline.
type Indexer interface {
	IndexPapersBatch(ctx context.Context, papers []paper.Paper, replaceExisting bool) indexinguc.BatchResult
	ReindexPaper(ctx context.Context, arxivID string, p *paper.Paper) indexinguc.Result
}

// Searcher runs hybrid searches.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (result.Page, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// IndexStatsReader reports chunk index statistics.
type IndexStatsReader interface {
	Stats(ctx context.Context) (chunk.IndexStats, error)
}

// Options tune the HTTP surface.
type Options struct {
	// MaxBatchPapers bounds POST /papers/index.
	MaxBatchPapers int
	// ReplaceExisting is used when a batch request omits replace_existing.
	ReplaceExisting bool
	// APIKeys enables bearer authentication when non-empty.
	APIKeys      []string
	MaxBodyBytes int64
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the paperdex HTTP API.
type Server struct {
	indexer       Indexer
	search        Searcher
	health        HealthChecker
	stats         IndexStatsReader
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	indexer Indexer,
	search Searcher,
	health HealthChecker,
	stats IndexStatsReader,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.MaxBatchPapers <= 0 {
		opts.MaxBatchPapers = DefaultMaxBatchPapers
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		indexer: indexer,
		search:  search,
		health:  health,
		stats:   stats,
		opts:    opts,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		invalidInputHandler,
		sentinelHandler(domain.ErrMissingArxivID, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeEmbeddingQuota),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrEmbeddingCountMismatch, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Routes builds the chi router with the full middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/papers/index", s.IndexPapers)
	r.Put("/papers/{arxiv_id}/reindex", s.ReindexPaper)
	r.Post("/hybrid-search", s.HybridSearch)
	r.Get("/index/stats", s.IndexStats)
	return r
}

// IndexPapers handles POST /papers/index.
func (s *Server) IndexPapers(w http.ResponseWriter, r *http.Request) {
	var req indexPapersRequest
	if !s.decode(w, r, &req) {
		return
	}

	if len(req.Papers) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "papers must not be empty")
		return
	}
	if len(req.Papers) > s.opts.MaxBatchPapers {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("too many papers: %d, max %d", len(req.Papers), s.opts.MaxBatchPapers))
		return
	}

	replace := s.opts.ReplaceExisting
	if req.ReplaceExisting != nil {
		replace = *req.ReplaceExisting
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	out := s.indexer.IndexPapersBatch(ctx, req.Papers, replace)

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, batchResultToDTO(out))
}

// ReindexPaper handles PUT /papers/{arxiv_id}/reindex.
func (s *Server) ReindexPaper(w http.ResponseWriter, r *http.Request) {
	arxivID := strings.TrimSpace(chi.URLParam(r, "arxiv_id"))
	if arxivID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "arxiv_id is required")
		return
	}

	var p paper.Paper
	if !s.decode(w, r, &p) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res := s.indexer.ReindexPaper(ctx, arxivID, &p)
	setEmbeddingHeaders(w, usage)

	// частичный успех остаётся 200, ошибка видна в теле
	if res.Err != nil && res.Stats.ChunksIndexed == 0 {
		s.handleDomainError(w, r, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, paperResultToDTO(res))
}

// HybridSearch handles POST /hybrid-search.
func (s *Server) HybridSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}

	searchReq, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	page, err := s.search.Search(ctx, &searchReq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, pageToDTO(&page))
}

// IndexStats handles GET /index/stats.
func (s *Server) IndexStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexStatsResponse{IndexName: st.IndexName, ChunkCount: st.ChunkCount})
}

// HealthCheck handles GET /health. Only an unhealthy report answers 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  report.Status,
		Checks:  report.Checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, vectors := usage.Totals(); vectors > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
		w.Header().Set("X-Embedding-Vectors", strconv.Itoa(vectors))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrMissingArxivID,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrEmbeddingCountMismatch,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// invalidInputHandler reports validation failures with their full message.
func invalidInputHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func (s *Server) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContext(ctx, s.logger)
}
