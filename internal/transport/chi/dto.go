package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/paper"
	"github.com/kailas-cloud/paperdex/internal/domain/search/request"
	"github.com/kailas-cloud/paperdex/internal/domain/search/result"
	"github.com/kailas-cloud/paperdex/internal/domain/stats"
	healthuc "github.com/kailas-cloud/paperdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/paperdex/internal/usecase/indexing"
)

type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeValidationFailed       errorCode = "validation_failed"
	codeUnauthorized           errorCode = "unauthorized"
	codeNotFound               errorCode = "not_found"
	codeRateLimited            errorCode = "rate_limited"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeEmbeddingQuota         errorCode = "embedding_quota_exceeded"
	codeIndexUnavailable       errorCode = "index_unavailable"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type healthResponse struct {
	Status  healthuc.Status                 `json:"status"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
	Version string                          `json:"version"`
}

type indexPapersRequest struct {
	Papers          []paper.Paper `json:"papers"`
	ReplaceExisting *bool         `json:"replace_existing,omitempty"`
}

type paperResult struct {
	ArxivID      string      `json:"arxiv_id"`
	Stats        stats.Stats `json:"stats"`
	StoredChunks int         `json:"stored_chunks,omitempty"`
	Error        string      `json:"error,omitempty"`
}

type indexPapersResponse struct {
	Stats   stats.Batch   `json:"stats"`
	Results []paperResult `json:"results"`
}

type searchRequest struct {
	Query        string   `json:"query"`
	Size         int      `json:"size"`
	From         int      `json:"from"`
	Categories   []string `json:"categories,omitempty"`
	LatestPapers bool     `json:"latest_papers"`
	UseHybrid    *bool    `json:"use_hybrid,omitempty"`
	MinScore     float64  `json:"min_score"`
	// YYYY-MM-DD, after is inclusive and before is exclusive.
	PublishedAfter  string `json:"published_after,omitempty"`
	PublishedBefore string `json:"published_before,omitempty"`
}

type searchHit struct {
	ArxivID       string   `json:"arxiv_id"`
	Title         string   `json:"title"`
	Authors       string   `json:"authors,omitempty"`
	Abstract      string   `json:"abstract,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	PDFURL        string   `json:"pdf_url"`
	Score         float64  `json:"score"`
	ChunkID       string   `json:"chunk_id"`
	ChunkIndex    int      `json:"chunk_index"`
	ChunkText     string   `json:"chunk_text"`
	SectionName   string   `json:"section_name,omitempty"`
}

type searchResponse struct {
	Query      string      `json:"query"`
	Total      int         `json:"total"`
	Hits       []searchHit `json:"hits"`
	Size       int         `json:"size"`
	From       int         `json:"from"`
	SearchMode string      `json:"search_mode"`
}

type indexStatsResponse struct {
	IndexName  string `json:"index_name"`
	ChunkCount int    `json:"chunk_count"`
}

func paperResultToDTO(r indexinguc.Result) paperResult {
	out := paperResult{ArxivID: r.ArxivID, Stats: r.Stats, StoredChunks: r.StoredChunks}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func batchResultToDTO(b indexinguc.BatchResult) indexPapersResponse {
	results := make([]paperResult, len(b.Results))
	for i, r := range b.Results {
		results[i] = paperResultToDTO(r)
	}
	return indexPapersResponse{Stats: b.Stats, Results: results}
}

func (r *searchRequest) toDomain() (request.Request, error) {
	useHybrid := true
	if r.UseHybrid != nil {
		useHybrid = *r.UseHybrid
	}
	req, err := request.New(r.Query, r.Categories, r.Size, r.From, r.MinScore, r.LatestPapers, useHybrid)
	if err != nil {
		return request.Request{}, err //nolint:wrapcheck // validation message goes to the client
	}
	since, err := parseDate("published_after", r.PublishedAfter)
	if err != nil {
		return request.Request{}, err
	}
	until, err := parseDate("published_before", r.PublishedBefore)
	if err != nil {
		return request.Request{}, err
	}
	return req.WithPublished(since, until) //nolint:wrapcheck // validation message goes to the client
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD: %w", field, domain.ErrInvalidInput)
	}
	return t, nil
}

func pageToDTO(p *result.Page) searchResponse {
	hits := make([]searchHit, len(p.Hits()))
	for i := range p.Hits() {
		hits[i] = hitToDTO(&p.Hits()[i])
	}
	return searchResponse{
		Query:      p.Query(),
		Total:      p.Total(),
		Hits:       hits,
		Size:       p.Size(),
		From:       p.From(),
		SearchMode: string(p.Mode()),
	}
}

func hitToDTO(h *chunk.Hit) searchHit {
	out := searchHit{
		ArxivID:     h.ArxivID,
		Title:       h.Title,
		Authors:     h.Authors,
		Abstract:    h.Abstract,
		Categories:  h.Categories,
		PDFURL:      "https://arxiv.org/pdf/" + h.ArxivID,
		Score:       h.Score,
		ChunkID:     h.Key(),
		ChunkIndex:  h.ChunkIndex,
		ChunkText:   h.ChunkText,
		SectionName: h.SectionTitle,
	}
	if !h.PublishedDate.IsZero() {
		out.PublishedDate = h.PublishedDate.Format(time.DateOnly)
	}
	return out
}
