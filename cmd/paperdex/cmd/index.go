package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/config"
	"github.com/kailas-cloud/paperdex/internal/domain/stats"
	indexinguc "github.com/kailas-cloud/paperdex/internal/usecase/indexing"
)

type indexOptions struct {
	replace     bool
	concurrency int
	recreate    bool
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <papers.jsonl>",
		Short: "Index papers from a JSON Lines file",
		Long: `Index papers from a JSON Lines file, one paper object per line.

A paper with a pdf_path and no raw_text gets its text extracted from the PDF.
Relative PDF paths resolve against the directory of the JSONL file.

Examples:
  paperdex index papers.jsonl
  paperdex index papers.jsonl --replace --concurrency 4
  paperdex index papers.jsonl --recreate-index   # after changing embedding.dimensions`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd.OutOrStdout(), root, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.replace, "replace", false, "Delete stored chunks of each paper before indexing")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "Papers indexed in parallel (default from config)")
	cmd.Flags().BoolVar(&opts.recreate, "recreate-index", false, "Drop and rebuild the chunk index before indexing")
	return cmd
}

func newReindexCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <arxiv_id> <paper.json>",
		Short: "Replace the stored chunks of one paper",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd.OutOrStdout(), root, args[0], args[1])
		},
	}
}

// indexOutput is the JSON printed by index and reindex.
type indexOutput struct {
	Stats   stats.Batch   `json:"stats"`
	Results []paperOutput `json:"results"`
}

type paperOutput struct {
	ArxivID      string      `json:"arxiv_id"`
	Stats        stats.Stats `json:"stats"`
	StoredChunks int         `json:"stored_chunks,omitempty"`
	Error        string      `json:"error,omitempty"`
}

func toPaperOutput(r indexinguc.Result) paperOutput {
	out := paperOutput{ArxivID: r.ArxivID, Stats: r.Stats, StoredChunks: r.StoredChunks}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func toIndexOutput(b indexinguc.BatchResult) indexOutput {
	out := indexOutput{Stats: b.Stats, Results: make([]paperOutput, len(b.Results))}
	for i, r := range b.Results {
		out.Results[i] = toPaperOutput(r)
	}
	return out
}

func runIndex(ctx context.Context, w io.Writer, root *rootOptions, path string, opts indexOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, root, func(c *config.Config) {
		if opts.concurrency > 0 {
			c.Indexing.Concurrency = opts.concurrency
		}
		if opts.recreate {
			c.Index.Recreate = true
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	papers, err := a.reader.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read papers: %w", err)
	}
	a.logger.Info("Indexing papers", zap.String("file", path), zap.Int("papers", len(papers)))

	res := a.indexing.IndexPapersBatch(ctx, papers, opts.replace || a.cfg.Indexing.ReplaceExisting)
	if err := writeJSON(w, toIndexOutput(res)); err != nil {
		return err
	}
	if res.Stats.TotalErrors > 0 {
		return fmt.Errorf("%d of %d papers had errors", failedPapers(res.Results), len(res.Results))
	}
	return nil
}

func runReindex(ctx context.Context, w io.Writer, root *rootOptions, arxivID, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.reader.ReadPaperFile(path)
	if err != nil {
		return fmt.Errorf("read paper: %w", err)
	}

	res := a.indexing.ReindexPaper(ctx, arxivID, &p)
	if err := writeJSON(w, toPaperOutput(res)); err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("reindex %s: %w", arxivID, res.Err)
	}
	return nil
}

func failedPapers(results []indexinguc.Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
