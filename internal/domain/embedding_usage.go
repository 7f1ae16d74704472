package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects token usage for a single request.
// The handler puts a pointer into the context, the services add to it after
// every embedding call and the handler reports it in response headers.
type EmbeddingUsage struct {
	mu      sync.Mutex
	tokens  int
	vectors int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// Add records consumed tokens and produced vectors. Safe on a nil receiver
// and from concurrent batch workers.
func (u *EmbeddingUsage) Add(tokens, vectors int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.tokens += tokens
	u.vectors += vectors
	u.mu.Unlock()
}

// Totals returns the recorded token and vector counts.
func (u *EmbeddingUsage) Totals() (tokens, vectors int) {
	if u == nil {
		return 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens, u.vectors
}
