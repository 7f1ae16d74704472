package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/paper"
	"github.com/kailas-cloud/paperdex/internal/domain/search/mode"
	"github.com/kailas-cloud/paperdex/internal/domain/search/request"
	"github.com/kailas-cloud/paperdex/internal/domain/search/result"
	"github.com/kailas-cloud/paperdex/internal/domain/stats"
	healthuc "github.com/kailas-cloud/paperdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/paperdex/internal/usecase/indexing"
)

// --- Mocks ---

type mockIndexer struct {
	batchFn     func(ctx context.Context, papers []paper.Paper, replace bool) indexinguc.BatchResult
	reindexFn   func(ctx context.Context, arxivID string, p *paper.Paper) indexinguc.Result
	lastReplace bool
	lastPapers  []paper.Paper
}

func (m *mockIndexer) IndexPapersBatch(ctx context.Context, papers []paper.Paper, replace bool) indexinguc.BatchResult {
	m.lastReplace = replace
	m.lastPapers = papers
	if m.batchFn != nil {
		return m.batchFn(ctx, papers, replace)
	}
	out := indexinguc.BatchResult{Results: make([]indexinguc.Result, len(papers))}
	for i, p := range papers {
		st := stats.Stats{ChunksCreated: 2, ChunksIndexed: 2, EmbeddingsGenerated: 2}
		out.Results[i] = indexinguc.Result{ArxivID: p.ArxivID, Stats: st}
		out.Stats.Add(st)
	}
	domain.UsageFromContext(ctx).Add(20*len(papers), 2*len(papers))
	return out
}

func (m *mockIndexer) ReindexPaper(ctx context.Context, arxivID string, p *paper.Paper) indexinguc.Result {
	if m.reindexFn != nil {
		return m.reindexFn(ctx, arxivID, p)
	}
	domain.UsageFromContext(ctx).Add(12, 3)
	return indexinguc.Result{ArxivID: arxivID, Stats: stats.Stats{ChunksCreated: 3, ChunksIndexed: 3, EmbeddingsGenerated: 3}}
}

type mockSearcher struct {
	searchFn func(ctx context.Context, req *request.Request) (result.Page, error)
	lastReq  *request.Request
}

func (m *mockSearcher) Search(ctx context.Context, req *request.Request) (result.Page, error) {
	m.lastReq = req
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	hit := chunk.Hit{
		ArxivID:       "1706.03762",
		ChunkIndex:    2,
		ChunkText:     "The Transformer follows this overall architecture",
		SectionTitle:  "Model Architecture",
		Title:         "Attention Is All You Need",
		Authors:       "Vaswani, Shazeer",
		PublishedDate: time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC),
		Score:         0.87,
	}
	return result.New(req.Query(), 1, []chunk.Hit{hit}, req.Size(), req.From(), mode.Hybrid), nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type mockStats struct {
	stats chunk.IndexStats
	err   error
}

func (m *mockStats) Stats(context.Context) (chunk.IndexStats, error) { return m.stats, m.err }

type testDeps struct {
	indexer *mockIndexer
	search  *mockSearcher
	health  *mockHealth
	stats   *mockStats
}

func newTestServer(t *testing.T, opts Options) (http.Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{
		indexer: &mockIndexer{},
		search:  &mockSearcher{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
		stats: &mockStats{stats: chunk.IndexStats{IndexName: "paperdex:chunks:idx", ChunkCount: 42}},
	}
	srv := NewServer(deps.indexer, deps.search, deps.health, deps.stats, opts, nil)
	return srv.Routes(), deps
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func papersBody(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"arxiv_id":"2401.%05d","title":"Paper %d","abstract":"abstract"}`, i, i)
	}
	return `{"papers":[` + strings.Join(items, ",") + `]}`
}

// --- Health & stats ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			h, deps := newTestServer(t, Options{})
			deps.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
			}

			rr := do(t, h, http.MethodGet, "/health", "")
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			resp := decodeBody[healthResponse](t, rr)
			if resp.Status != tt.status || resp.Checks["database"] != healthuc.CheckOK {
				t.Errorf("unexpected body %+v", resp)
			}
		})
	}
}

func TestIndexStats(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/index/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody[indexStatsResponse](t, rr)
	if resp.IndexName != "paperdex:chunks:idx" || resp.ChunkCount != 42 {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestIndexStats_Unavailable(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	deps.stats.err = fmt.Errorf("search count: %w: %w", domain.ErrIndexUnavailable, errors.New("conn refused"))

	rr := do(t, h, http.MethodGet, "/index/stats", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	resp := decodeBody[errorResponse](t, rr)
	if resp.Code != codeIndexUnavailable {
		t.Errorf("code = %s", resp.Code)
	}
	if strings.Contains(resp.Message, "conn refused") {
		t.Errorf("internal detail leaked: %q", resp.Message)
	}
}

// --- Indexing ---

func TestIndexPapers(t *testing.T) {
	h, deps := newTestServer(t, Options{})

	rr := do(t, h, http.MethodPost, "/papers/index", papersBody(2))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[indexPapersResponse](t, rr)
	if resp.Stats.PapersProcessed != 2 || resp.Stats.TotalChunksIndexed != 4 {
		t.Errorf("unexpected stats %+v", resp.Stats)
	}
	if len(resp.Results) != 2 || resp.Results[1].ArxivID != "2401.00001" {
		t.Errorf("unexpected results %+v", resp.Results)
	}
	if deps.indexer.lastReplace {
		t.Error("replace_existing should default to the server option (false)")
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "40" {
		t.Errorf("X-Embedding-Tokens = %q, want 40", got)
	}
}

func TestIndexPapers_ReplaceExisting(t *testing.T) {
	h, deps := newTestServer(t, Options{ReplaceExisting: true})

	do(t, h, http.MethodPost, "/papers/index", papersBody(1))
	if !deps.indexer.lastReplace {
		t.Error("expected server default replace_existing=true")
	}

	do(t, h, http.MethodPost, "/papers/index", `{"papers":[{"arxiv_id":"x"}],"replace_existing":false}`)
	if deps.indexer.lastReplace {
		t.Error("explicit replace_existing=false must win")
	}
}

func TestIndexPapers_PerPaperError(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	deps.indexer.batchFn = func(_ context.Context, papers []paper.Paper, _ bool) indexinguc.BatchResult {
		out := indexinguc.BatchResult{Results: []indexinguc.Result{
			{ArxivID: "", Stats: stats.Failed(), Err: domain.ErrMissingArxivID},
		}}
		out.Stats.Add(stats.Failed())
		return out
	}

	rr := do(t, h, http.MethodPost, "/papers/index", `{"papers":[{"title":"no id"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody[indexPapersResponse](t, rr)
	if resp.Stats.TotalErrors != 1 || resp.Results[0].Error == "" {
		t.Errorf("expected the per-paper error in the body, got %+v", resp)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("no embedding header expected without vectors")
	}
}

func TestIndexPapers_UnrecognisedDateKeepsBatch(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	body := `{"papers":[
		{"arxiv_id":"2401.00001","published_date":"2024-01-05"},
		{"arxiv_id":"2401.00002","published_date":"Jan 5, 2024"}
	]}`

	rr := do(t, h, http.MethodPost, "/papers/index", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(deps.indexer.lastPapers) != 2 {
		t.Fatalf("expected both papers to reach the indexer, got %d", len(deps.indexer.lastPapers))
	}
	if deps.indexer.lastPapers[0].PublishedDate.Year() != 2024 {
		t.Errorf("first date = %v", deps.indexer.lastPapers[0].PublishedDate)
	}
	if !deps.indexer.lastPapers[1].PublishedDate.IsZero() {
		t.Errorf("odd date must decode to zero, got %v", deps.indexer.lastPapers[1].PublishedDate)
	}
}

func TestIndexPapers_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"papers":`, http.StatusBadRequest},
		{"empty list", `{"papers":[]}`, http.StatusBadRequest},
		{"too many papers", papersBody(4), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, deps := newTestServer(t, Options{MaxBatchPapers: 3})
			rr := do(t, h, http.MethodPost, "/papers/index", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if deps.indexer.lastPapers != nil {
				t.Error("indexer must not run")
			}
		})
	}
}

func TestIndexPapers_BodyTooLarge(t *testing.T) {
	h, _ := newTestServer(t, Options{MaxBodyBytes: 64})

	rr := do(t, h, http.MethodPost, "/papers/index", papersBody(5))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestReindexPaper(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	var gotID string
	deps.indexer.reindexFn = func(ctx context.Context, arxivID string, p *paper.Paper) indexinguc.Result {
		gotID = arxivID
		domain.UsageFromContext(ctx).Add(9, 3)
		return indexinguc.Result{
			ArxivID:      arxivID,
			Stats:        stats.Stats{ChunksCreated: 3, ChunksIndexed: 3, EmbeddingsGenerated: 3},
			StoredChunks: 3,
		}
	}

	rr := do(t, h, http.MethodPut, "/papers/1706.03762/reindex", `{"title":"Attention Is All You Need"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if gotID != "1706.03762" {
		t.Errorf("arxiv id = %q", gotID)
	}
	resp := decodeBody[paperResult](t, rr)
	if resp.Stats.ChunksIndexed != 3 || resp.StoredChunks != 3 || resp.Error != "" {
		t.Errorf("unexpected body %+v", resp)
	}
	if rr.Header().Get("X-Embedding-Vectors") != "3" {
		t.Errorf("X-Embedding-Vectors = %q", rr.Header().Get("X-Embedding-Vectors"))
	}
}

func TestReindexPaper_IDMismatch(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	var gotBodyID string
	deps.indexer.reindexFn = func(_ context.Context, arxivID string, p *paper.Paper) indexinguc.Result {
		gotBodyID = p.ArxivID
		return indexinguc.Result{
			ArxivID: arxivID,
			Stats:   stats.Failed(),
			Err:     fmt.Errorf("paper arxiv_id %q does not match %q: %w", p.ArxivID, arxivID, domain.ErrInvalidInput),
		}
	}

	rr := do(t, h, http.MethodPut, "/papers/1706.03762/reindex", `{"arxiv_id":"2401.00001"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if gotBodyID != "2401.00001" {
		t.Errorf("body arxiv_id = %q", gotBodyID)
	}
	resp := decodeBody[errorResponse](t, rr)
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestReindexPaper_Failure(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	deps.indexer.reindexFn = func(_ context.Context, arxivID string, _ *paper.Paper) indexinguc.Result {
		return indexinguc.Result{
			ArxivID: arxivID,
			Stats:   stats.Failed(),
			Err:     fmt.Errorf("embed 3 chunks: %w", domain.ErrEmbeddingProviderError),
		}
	}

	rr := do(t, h, http.MethodPut, "/papers/1706.03762/reindex", `{}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	resp := decodeBody[errorResponse](t, rr)
	if resp.Code != codeEmbeddingProviderError {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestReindexPaper_PartialSuccess(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	deps.indexer.reindexFn = func(_ context.Context, arxivID string, _ *paper.Paper) indexinguc.Result {
		return indexinguc.Result{
			ArxivID: arxivID,
			Stats:   stats.Stats{ChunksCreated: 3, ChunksIndexed: 2, EmbeddingsGenerated: 3, Errors: 1},
			Err:     errors.New("store: 1 of 3 chunks failed"),
		}
	}

	rr := do(t, h, http.MethodPut, "/papers/1706.03762/reindex", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	resp := decodeBody[paperResult](t, rr)
	if resp.Error == "" || resp.Stats.Errors != 1 {
		t.Errorf("unexpected body %+v", resp)
	}
}

// --- Search ---

func TestHybridSearch(t *testing.T) {
	h, deps := newTestServer(t, Options{})

	rr := do(t, h, http.MethodPost, "/hybrid-search", `{"query":"transformer attention","categories":["cs.CL"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	req := deps.search.lastReq
	if !req.UseHybrid() || req.Size() != request.DefaultSize || req.From() != 0 {
		t.Errorf("unexpected defaults: hybrid=%v size=%d from=%d", req.UseHybrid(), req.Size(), req.From())
	}
	if len(req.Categories()) != 1 {
		t.Errorf("categories = %v", req.Categories())
	}

	resp := decodeBody[searchResponse](t, rr)
	if resp.SearchMode != "hybrid" || resp.Total != 1 || resp.Size != 10 {
		t.Errorf("unexpected page meta %+v", resp)
	}
	hit := resp.Hits[0]
	if hit.ChunkID != "1706.03762#2" || hit.SectionName != "Model Architecture" {
		t.Errorf("unexpected hit %+v", hit)
	}
	if hit.PublishedDate != "2017-06-12" || hit.PDFURL != "https://arxiv.org/pdf/1706.03762" {
		t.Errorf("unexpected hit %+v", hit)
	}
}

func TestHybridSearch_BM25Only(t *testing.T) {
	h, deps := newTestServer(t, Options{})

	do(t, h, http.MethodPost, "/hybrid-search", `{"query":"q","use_hybrid":false,"latest_papers":true,"size":5,"from":10}`)
	req := deps.search.lastReq
	if req.UseHybrid() || !req.Latest() || req.Size() != 5 || req.From() != 10 {
		t.Errorf("request not passed through: %+v", req)
	}
}

func TestHybridSearch_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"query":`},
		{"empty query", `{"query":"  "}`},
		{"size too large", `{"query":"q","size":51}`},
		{"negative from", `{"query":"q","from":-1}`},
		{"min score out of range", `{"query":"q","min_score":1.5}`},
		{"bad date", `{"query":"q","published_after":"12/06/2017"}`},
		{"inverted dates", `{"query":"q","published_after":"2020-01-01","published_before":"2019-01-01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, deps := newTestServer(t, Options{})
			rr := do(t, h, http.MethodPost, "/hybrid-search", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if deps.search.lastReq != nil {
				t.Error("search must not run")
			}
		})
	}
}

func TestHybridSearch_PublishedWindow(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	rr := do(t, h, http.MethodPost, "/hybrid-search",
		`{"query":"attention","published_after":"2017-01-01","published_before":"2018-01-01"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	since, until := deps.search.lastReq.Published()
	if since.Format(time.DateOnly) != "2017-01-01" || until.Format(time.DateOnly) != "2018-01-01" {
		t.Errorf("published window = %v..%v", since, until)
	}
	if len(deps.search.lastReq.Filters().Must()) != 1 {
		t.Errorf("expected one range condition, got %+v", deps.search.lastReq.Filters().Must())
	}
}

func TestHybridSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		want     errorCode
	}{
		{"index unavailable", fmt.Errorf("search knn: %w", domain.ErrIndexUnavailable), http.StatusServiceUnavailable, codeIndexUnavailable},
		{"rate limited", fmt.Errorf("embed: %w", domain.ErrRateLimited), http.StatusTooManyRequests, codeRateLimited},
		{"search after budget", fmt.Errorf("bm25: %w", domain.ErrEmbeddingQuotaExceeded), http.StatusPaymentRequired, codeEmbeddingQuota},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, deps := newTestServer(t, Options{})
			deps.search.searchFn = func(context.Context, *request.Request) (result.Page, error) {
				return result.Page{}, tt.err
			}

			rr := do(t, h, http.MethodPost, "/hybrid-search", `{"query":"q"}`)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if resp := decodeBody[errorResponse](t, rr); resp.Code != tt.want {
				t.Errorf("code = %s, want %s", resp.Code, tt.want)
			}
		})
	}
}

// --- Routing & middleware ---

func TestRoutes_NotFound(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeBody[errorResponse](t, rr); resp.Code != codeNotFound {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/hybrid-search", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRoutes_Auth(t *testing.T) {
	h, _ := newTestServer(t, Options{APIKeys: []string{"secret"}})

	if rr := do(t, h, http.MethodPost, "/hybrid-search", `{"query":"q"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/hybrid-search", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rr.Code)
	}
}

func TestRoutes_RequestID(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRoutes_PanicRecovered(t *testing.T) {
	h, deps := newTestServer(t, Options{})
	deps.search.searchFn = func(context.Context, *request.Request) (result.Page, error) {
		panic("boom")
	}

	rr := do(t, h, http.MethodPost, "/hybrid-search", `{"query":"q"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if resp := decodeBody[errorResponse](t, rr); resp.Code != codeInternalError {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestRoutes_Metrics(t *testing.T) {
	h, _ := newTestServer(t, Options{})

	do(t, h, http.MethodGet, "/health", "")
	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Error("expected HTTP metrics in the exposition")
	}
}
