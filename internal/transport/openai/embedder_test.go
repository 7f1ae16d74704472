package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// openaiEmbeddingResponse mirrors the OpenAI-compatible API embedding response.
type openaiEmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingItem `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func writeEmbeddings(w http.ResponseWriter, items []embeddingItem, tokens int) {
	resp := openaiEmbeddingResponse{Object: "list", Model: "test-model", Data: items}
	resp.Usage.PromptTokens = tokens
	resp.Usage.TotalTokens = tokens
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestEmbedder(url string, batchSize int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-model",
		Dimensions: 4,
		Provider:   "test",
		BatchSize:  batchSize,
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		writeEmbeddings(w, []embeddingItem{{Object: "embedding", Embedding: expectedVec}}, 42)
	}))
	defer server.Close()

	result, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(result.Embedding) != len(expectedVec) {
		t.Fatalf("expected %d dimensions, got %d", len(expectedVec), len(result.Embedding))
	}
	for i, v := range result.Embedding {
		if v != expectedVec[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, expectedVec[i])
		}
	}
	if result.PromptTokens != 42 || result.TotalTokens != 42 {
		t.Errorf("usage = %d/%d, expected 42/42", result.PromptTokens, result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_RestoresOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Возвращаем 2 вектора в обратном порядке, проверяем сортировку по Index
		writeEmbeddings(w, []embeddingItem{
			{Object: "embedding", Embedding: []float32{0.3, 0.4}, Index: 1},
			{Object: "embedding", Embedding: []float32{0.1, 0.2}, Index: 0},
		}, 20)
	}))
	defer server.Close()

	result, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}

	if len(result.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(result.Embeddings))
	}
	if result.Embeddings[0][0] != 0.1 || result.Embeddings[1][0] != 0.3 {
		t.Errorf("order not restored: %v", result.Embeddings)
	}
	if result.TotalTokens != 20 {
		t.Errorf("expected TotalTokens=20, got %d", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_SubBatches(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) > 2 {
			t.Errorf("sub-batch too large: %d", len(req.Input))
		}
		items := make([]embeddingItem, len(req.Input))
		for i, text := range req.Input {
			// vector encodes the text so that ordering can be checked
			items[i] = embeddingItem{Object: "embedding", Embedding: []float32{float32(text[0])}, Index: i}
		}
		writeEmbeddings(w, items, len(req.Input))
	}))
	defer server.Close()

	texts := []string{"a", "b", "c", "d", "e"}
	result, err := newTestEmbedder(server.URL, 2).BatchEmbed(context.Background(), texts)
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}

	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
	if len(result.Embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	for i, text := range texts {
		if result.Embeddings[i][0] != float32(text[0]) {
			t.Errorf("embedding %d belongs to another text", i)
		}
	}
	if result.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", result.TotalTokens)
	}
}

func TestEmbedder_BatchEmbed_Empty(t *testing.T) {
	result, err := newTestEmbedder("http://unused", 0).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embeddings != nil {
		t.Errorf("expected nil embeddings for empty input, got %v", result.Embeddings)
	}
}

func TestEmbedder_BatchEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Возвращаем 1 вектор вместо 2
		writeEmbeddings(w, []embeddingItem{{Object: "embedding", Embedding: []float32{0.1}}}, 5)
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingCountMismatch) {
		t.Fatalf("expected ErrEmbeddingCountMismatch, got %v", err)
	}
	var mismatch *domain.CountMismatchError
	if !errors.As(err, &mismatch) || mismatch.Chunks != 2 || mismatch.Embeddings != 1 {
		t.Errorf("unexpected mismatch detail: %v", err)
	}
}

func TestEmbedder_APIError_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "rate limit exceeded",
				"type":    "rate_limit_error",
			},
		})
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("429 must also wrap ErrRateLimited, got %v", err)
	}
}

func TestEmbedder_APIError_Detail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"input too long"}`))
	}))
	defer server.Close()

	_, err := newTestEmbedder(server.URL, 0).Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if errors.Is(err, domain.ErrRateLimited) {
		t.Error("422 must not be reported as rate limited")
	}
}

func TestEmbedder_RateLimiterHonoursContext(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		writeEmbeddings(w, []embeddingItem{{Object: "embedding", Embedding: []float32{0.1}}}, 1)
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Model:     "test-model",
		Provider:  "test",
		RateLimit: 0.001, // one token, then ~17 minutes per request
	})

	if _, err := emb.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := emb.Embed(ctx, "second"); err == nil {
		t.Fatal("expected limiter error for cancelled context")
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}
