package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/chunker"
	"github.com/kailas-cloud/paperdex/internal/config"
	"github.com/kailas-cloud/paperdex/internal/db"
	dbRedis "github.com/kailas-cloud/paperdex/internal/db/redis"
	"github.com/kailas-cloud/paperdex/internal/domain"
	logpkg "github.com/kailas-cloud/paperdex/internal/logger"
	"github.com/kailas-cloud/paperdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/paperdex/internal/repository/budget"
	chunkrepo "github.com/kailas-cloud/paperdex/internal/repository/chunk"
	"github.com/kailas-cloud/paperdex/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/paperdex/internal/repository/search"
	"github.com/kailas-cloud/paperdex/internal/source"
	openaiEmb "github.com/kailas-cloud/paperdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/paperdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/paperdex/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/paperdex/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/paperdex/internal/usecase/search"
	"github.com/kailas-cloud/paperdex/internal/version"
)

// embedder is the outermost link of an embedding chain.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
	domain.HealthChecker
}

// app is the composition root shared by all commands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    db.Store
	chunks   *chunkrepo.Repo
	reader   *source.Reader
	indexing *indexinguc.Service
	search   *searchuc.Service
	health   *healthuc.Service
}

// newApp loads config, applies command-line overrides and wires all services.
func newApp(ctx context.Context, root *rootOptions, overrides ...func(*config.Config)) (*app, error) {
	env := root.env
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, o := range overrides {
		o(&cfg)
	}

	logger, err := logpkg.New(logpkg.Options{Env: env, Level: cfg.Logging.Level, Component: root.command})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting paperdex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Password:   cfg.Database.Password,
		ClientName: "paperdex",
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("create database store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	if err := a.store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	a.logger.Info("Connected to database")

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIndexingMetrics()

	budget, err := a.buildBudget(ctx)
	if err != nil {
		return err
	}
	// nil interface, not a typed nil pointer
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	docEmbedder := a.buildEmbedder(embeddinguc.RoleDocument, cfg.Embedding.DocumentInstruction, budgetChecker)
	queryEmbedder := a.buildEmbedder(embeddinguc.RoleQuery, cfg.Embedding.QueryInstruction, budgetChecker)
	a.logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
		zap.Bool("budget", budget != nil),
	)

	a.chunks = chunkrepo.New(a.store, chunkrepo.Config{
		Prefix:    cfg.Index.KeyPrefix,
		VectorDim: cfg.Embedding.Dimensions,
		Distance:  cfg.Index.DistanceMetric,
		Algorithm: cfg.Index.Algorithm,
		HNSW: chunkrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
		WriteBatch: cfg.Indexing.WriteBatch,
	})
	if cfg.Index.Recreate {
		a.logger.Warn("Recreating chunk index", zap.String("index", a.chunks.IndexName()))
		if err := a.chunks.RecreateIndex(ctx); err != nil {
			return fmt.Errorf("recreate chunk index: %w", err)
		}
	} else if err := a.chunks.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure chunk index: %w", err)
	}

	ch, err := chunker.New(cfg.Chunking.Chunker(), a.logger)
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}

	a.indexing = indexinguc.New(ch, docEmbedder, a.chunks, indexinguc.Options{
		Concurrency:    cfg.Indexing.Concurrency,
		EmbeddingModel: cfg.Embedding.Model,
	}, a.logger)

	a.search, err = searchuc.New(
		searchrepo.New(a.store, a.chunks.IndexName()),
		queryEmbedder,
		searchuc.Options{QueryCacheSize: cfg.Search.QueryCacheSize},
		metrics.EmbeddingCacheTotal,
		a.logger,
	)
	if err != nil {
		return fmt.Errorf("create search service: %w", err)
	}

	a.health = healthuc.New(a.store, a.chunks, docEmbedder, a.logger)
	a.reader = source.NewReader(source.PDFExtractor{}, cfg.Source.PDFMaxPages, a.logger)
	return nil
}

// buildBudget returns nil when no token limit is configured.
func (a *app) buildBudget(ctx context.Context) (*embeddinguc.BudgetTracker, error) {
	bc := a.cfg.Embedding.Budget
	if !bc.Enabled() {
		return nil, nil
	}
	action, err := embeddinguc.ParseBudgetAction(bc.Action)
	if err != nil {
		return nil, fmt.Errorf("embedding budget: %w", err)
	}
	tracker := embeddinguc.NewBudgetTracker(
		a.cfg.Embedding.Provider, bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, a.logger,
	)
	// shared across processes: CLI runs and the server count against one quota
	return tracker.WithStore(ctx, budgetrepo.New(a.store, a.cfg.Index.KeyPrefix)), nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func (a *app) buildEmbedder(role, instruction string, budget embeddinguc.BudgetChecker) embedder {
	ec := a.cfg.Embedding

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		BatchSize:  ec.BatchSize,
		RateLimit:  ec.RateLimit,
		Logger:     a.logger,
	})

	var inner domain.Embedder = base
	if ec.Cache.Enabled {
		inner = embcache.New(base, a.store, embcache.Options{
			Prefix: a.cfg.Index.KeyPrefix + "emb_cache:",
			Model:  ec.Model,
			TTL:    time.Duration(ec.Cache.TTLHours) * time.Hour,
		}, metrics.EmbeddingCacheTotal, a.logger)
	}

	out := embeddinguc.NewInstrumentedEmbedder(inner, role, ec.Provider, ec.Model, budget, a.logger)

	// instruction is outermost so the cache key includes it
	if instruction != "" {
		return domain.NewInstructionEmbedder(out, instruction)
	}
	return out
}

// Close releases the database connection and flushes the logger.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}
