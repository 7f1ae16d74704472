package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
	healthErr   error
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

func (s *stubBatchEmbedder) HealthCheck(context.Context) error { return s.healthErr }

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	result, err := emb.Embed(context.Background(), "sparse attention")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "query: sparse attention" {
		t.Errorf("expected prepended text, got %q", inner.got[0])
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestBatchFallback_KeepsOrderAndSumsTokens(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	res, err := BatchFallback(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 15 || res.PromptTokens != 15 {
		t.Errorf("expected 15/15 tokens, got %d/%d", res.PromptTokens, res.TotalTokens)
	}
	if inner.got[0] != "a" || inner.got[2] != "c" {
		t.Errorf("texts embedded out of order: %v", inner.got)
	}
}

func TestBatchFallback_Error(t *testing.T) {
	innerErr := errors.New("fail")
	_, err := BatchFallback(context.Background(), &stubEmbedder{err: innerErr}, []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestBatchFallback_Empty(t *testing.T) {
	res, err := BatchFallback(context.Background(), &stubEmbedder{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 {
		t.Errorf("expected 0 embeddings, got %d", len(res.Embeddings))
	}
}

func TestBatchEmbeddingResult_Append(t *testing.T) {
	var r BatchEmbeddingResult
	r.Append(BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}, PromptTokens: 4, TotalTokens: 4})
	r.Append(BatchEmbeddingResult{Embeddings: [][]float32{{3}}, PromptTokens: 1, TotalTokens: 2})

	if len(r.Embeddings) != 3 || r.Embeddings[2][0] != 3 {
		t.Fatalf("unexpected embeddings: %v", r.Embeddings)
	}
	if r.PromptTokens != 5 || r.TotalTokens != 6 {
		t.Errorf("expected 5/6 tokens, got %d/%d", r.PromptTokens, r.TotalTokens)
	}
}

func TestInstructionEmbedder_BatchEmbed_WithBatchInner(t *testing.T) {
	inner := &stubBatchEmbedder{
		batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{0.1}, {0.2}}, TotalTokens: 20},
	}
	emb := NewInstructionEmbedder(inner, "passage: ")

	res, err := emb.BatchEmbed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if inner.batchTexts[0] != "passage: hello" || inner.batchTexts[1] != "passage: world" {
		t.Errorf("expected prefixed texts, got %v", inner.batchTexts)
	}
}

func TestInstructionEmbedder_BatchEmbed_EmptyInstructionPassesThrough(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{1}}}}
	emb := NewInstructionEmbedder(inner, "")

	if _, err := emb.BatchEmbed(context.Background(), []string{"raw"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchTexts[0] != "raw" {
		t.Errorf("expected untouched text, got %q", inner.batchTexts[0])
	}
}

func TestInstructionEmbedder_BatchEmbed_FallbackToSingle(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 3}}
	emb := NewInstructionEmbedder(inner, "q: ")

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 6 {
		t.Errorf("expected TotalTokens=6, got %d", res.TotalTokens)
	}
}

func TestInstructionEmbedder_BatchEmbed_Error(t *testing.T) {
	innerErr := errors.New("batch fail")
	emb := NewInstructionEmbedder(&stubBatchEmbedder{batchErr: innerErr}, "x: ")

	_, err := emb.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestInstructionEmbedder_HealthCheck(t *testing.T) {
	down := errors.New("down")
	emb := NewInstructionEmbedder(&stubBatchEmbedder{healthErr: down}, "")
	if err := emb.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected delegated health error, got %v", err)
	}

	plain := NewInstructionEmbedder(&stubEmbedder{}, "")
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil for inner without health check, got %v", err)
	}
}

func TestCountMismatchError(t *testing.T) {
	err := NewCountMismatch(3, 5)
	if !errors.Is(err, ErrEmbeddingCountMismatch) {
		t.Fatalf("expected ErrEmbeddingCountMismatch, got %v", err)
	}
	var cm *CountMismatchError
	if !errors.As(err, &cm) || cm.Chunks != 3 || cm.Embeddings != 5 {
		t.Errorf("unexpected mismatch details: %+v", cm)
	}
}
