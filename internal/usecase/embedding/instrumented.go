package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/metrics"
)

// Embedder roles, used as the metrics label.
const (
	RoleDocument = "document"
	RoleQuery    = "query"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEmbedder wraps an embedder with budget enforcement, per-role
// vector counts and logging. Transport metrics live in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	role     string
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, role, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		role:     role,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Embed checks the budget, delegates and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)
	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("role", p.role),
			zap.String("provider", p.provider),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", p.role, err)
	}

	p.record(res.TotalTokens, 1)
	p.logger.Debug("Embedding request completed",
		zap.String("role", p.role),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed checks the budget once for the whole batch, then delegates.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := p.checkBudget(ctx, len(texts)); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	start := time.Now()
	res, err := domain.BatchOf(ctx, p.inner, texts)
	duration := time.Since(start)
	if err != nil {
		p.logger.Error("Batch embedding request failed",
			zap.String("role", p.role),
			zap.String("provider", p.provider),
			zap.Int("batch_size", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed %s: %w", p.role, err)
	}

	p.record(res.TotalTokens, len(res.Embeddings))
	p.logger.Debug("Batch embedding completed",
		zap.String("role", p.role),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// HealthCheck delegates to inner when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent delegation
	}
	return nil
}

func (p *InstrumentedEmbedder) checkBudget(ctx context.Context, texts int) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		p.logger.Error("Budget exceeded",
			zap.String("role", p.role),
			zap.String("provider", p.provider),
			zap.Int("texts", texts),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) record(tokens, vectors int) {
	metrics.EmbeddingVectorsTotal.WithLabelValues(p.role).Add(float64(vectors))
	if p.budget == nil || tokens <= 0 {
		return
	}
	p.budget.Record(int64(tokens))
	remaining := metrics.EmbeddingBudgetTokensRemaining
	remaining.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
	remaining.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
}
