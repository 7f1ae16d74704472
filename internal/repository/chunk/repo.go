package chunk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/paperdex/internal/db"
	"github.com/kailas-cloud/paperdex/internal/domain"
	domchunk "github.com/kailas-cloud/paperdex/internal/domain/chunk"
)

// DefaultPrefix is the key namespace used when Config.Prefix is empty.
const DefaultPrefix = "paperdex:"

// defaultWriteBatch bounds how many HSETs go into one pipeline.
const defaultWriteBatch = 500

// store is the consumer interface for chunk records (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) []error
	DelMulti(ctx context.Context, keys []string) (int, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config describes the key layout and the vector field of the chunk index.
type Config struct {
	Prefix     string
	VectorDim  int
	Distance   string
	Algorithm  string
	HNSW       HNSWConfig
	WriteBatch int
}

// IndexName returns the FT index name, e.g. "paperdex:chunks:idx".
func (c Config) IndexName() string {
	return c.prefix() + "chunks:idx"
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

func (c Config) keyPrefix() string {
	return c.prefix() + "chunk:"
}

// Key returns the hash key of one chunk: {prefix}chunk:{arxiv_id}:{chunk_index}.
func (c Config) Key(arxivID string, chunkIndex int) string {
	return c.keyPrefix() + arxivID + ":" + strconv.Itoa(chunkIndex)
}

// Repo implements the chunk index store used by the indexing usecase.
type Repo struct {
	store store
	cfg   Config
}

// New creates a chunk repository.
func New(s store, cfg Config) *Repo {
	if cfg.WriteBatch <= 0 {
		cfg.WriteBatch = defaultWriteBatch
	}
	return &Repo{store: s, cfg: cfg}
}

// IndexName returns the FT index backing the repository.
func (r *Repo) IndexName() string { return r.cfg.IndexName() }

// EnsureIndex creates the chunk index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.cfg.IndexName(), err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.cfg)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// RecreateIndex drops the chunk index and builds it again from the current
// config. Stored chunk hashes are kept and re-indexed by the database.
func (r *Repo) RecreateIndex(ctx context.Context) error {
	err := r.store.DropIndex(ctx, r.cfg.IndexName())
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.cfg.IndexName(), err)
	}
	return r.EnsureIndex(ctx)
}

// BulkUpsert writes records in pipelined batches and counts per-record outcomes.
// Each record replaces its hash as a whole.
// Records without an arxiv id or embedding, or with a vector of the wrong size,
// are counted as failed without being sent. The error is non-nil only when the
// context ends before every record was attempted.
func (r *Repo) BulkUpsert(ctx context.Context, records []domchunk.Record) (domchunk.BulkResult, error) {
	var res domchunk.BulkResult
	fail := func(err error) {
		res.Failed++
		if res.Err == nil {
			res.Err = err
		}
	}

	items := make([]db.HashSetItem, 0, min(len(records), r.cfg.WriteBatch))
	flush := func() {
		if len(items) == 0 {
			return
		}
		for _, err := range r.store.HSetMulti(ctx, items) {
			if err != nil {
				fail(err)
				continue
			}
			res.Success++
		}
		items = items[:0]
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			res.Failed += len(records) - i
			return res, fmt.Errorf("bulk upsert: %w", err)
		}

		rec := &records[i]
		if err := r.validate(rec); err != nil {
			fail(err)
			continue
		}

		items = append(items, db.HashSetItem{
			Key:     r.cfg.Key(rec.Chunk.ArxivID(), rec.Chunk.Index()),
			Fields:  buildHashFields(rec),
			Replace: true,
		})
		if len(items) >= r.cfg.WriteBatch {
			flush()
		}
	}
	flush()

	return res, nil
}

func (r *Repo) validate(rec *domchunk.Record) error {
	if rec.Chunk.ArxivID() == "" {
		return domain.ErrMissingArxivID
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("chunk %d: %w: empty embedding", rec.Chunk.Index(), domain.ErrVectorDimMismatch)
	}
	if r.cfg.VectorDim > 0 && len(rec.Embedding) != r.cfg.VectorDim {
		return fmt.Errorf("chunk %d: %w: got %d, want %d",
			rec.Chunk.Index(), domain.ErrVectorDimMismatch, len(rec.Embedding), r.cfg.VectorDim)
	}
	return nil
}

// DeleteByPaper removes every chunk of a paper and returns how many were deleted.
func (r *Repo) DeleteByPaper(ctx context.Context, arxivID string) (int, error) {
	if arxivID == "" {
		return 0, domain.ErrMissingArxivID
	}

	pattern := r.cfg.keyPrefix() + escapeGlob(arxivID) + ":*"
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.store.DelMulti(ctx, keys)
	if err != nil {
		return n, fmt.Errorf("delete chunks of %s: %w", arxivID, err)
	}
	return n, nil
}

// Count returns the number of indexed chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.cfg.IndexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("search count: %w: %w", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Stats reports the index name and its total chunk count.
func (r *Repo) Stats(ctx context.Context) (domchunk.IndexStats, error) {
	n, err := r.Count(ctx)
	if err != nil {
		return domchunk.IndexStats{}, err
	}
	return domchunk.IndexStats{IndexName: r.cfg.IndexName(), ChunkCount: n}, nil
}

// IndexReady returns an error when the chunk index is missing or unreachable.
func (r *Repo) IndexReady(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.cfg.IndexName(), err)
	}
	if !exists {
		return fmt.Errorf("index %s: %w", r.cfg.IndexName(), db.ErrIndexNotFound)
	}
	return nil
}

// CountPaper returns the number of indexed chunks of one paper.
func (r *Repo) CountPaper(ctx context.Context, arxivID string) (int, error) {
	query := fmt.Sprintf("@%s:{%s}", FieldArxivID, escapeTag(arxivID))
	n, err := r.store.SearchCount(ctx, r.cfg.IndexName(), query)
	if err != nil {
		return 0, fmt.Errorf("search count %s: %w", arxivID, err)
	}
	return n, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`, `.`, `\.`, `-`, `\-`, `/`, `\/`, `:`, `\:`, ` `, `\ `,
	`{`, `\{`, `}`, `\}`, `|`, `\|`, `@`, `\@`, `*`, `\*`,
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}
