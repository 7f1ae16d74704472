package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed request or record.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingArxivID signals a paper without an arXiv identifier.
	ErrMissingArxivID = errors.New("paper has no arxiv_id")
	// ErrEmbeddingCountMismatch signals that the provider returned a different
	// number of vectors than texts were sent.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding token budget exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexUnavailable signals that the index store rejected or could not serve a request.
	ErrIndexUnavailable = errors.New("index unavailable")
)

// CountMismatchError wraps ErrEmbeddingCountMismatch with the observed counts.
type CountMismatchError struct {
	Chunks     int
	Embeddings int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s: %d chunks, %d embeddings", ErrEmbeddingCountMismatch.Error(), e.Chunks, e.Embeddings)
}

func (e *CountMismatchError) Unwrap() error { return ErrEmbeddingCountMismatch }

// NewCountMismatch creates a count mismatch error.
func NewCountMismatch(chunks, embeddings int) error {
	return &CountMismatchError{Chunks: chunks, Embeddings: embeddings}
}
