package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/paperdex/internal/domain/search/request"
	"github.com/kailas-cloud/paperdex/internal/domain/search/result"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	size       int
	from       int
	categories []string
	latest     bool
	bm25Only   bool
	minScore   float64
	since      string // YYYY-MM-DD, inclusive
	until      string // YYYY-MM-DD, exclusive
	format     string // "text", "json"
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed paper chunks",
		Long: `Search indexed paper chunks with hybrid retrieval.

KNN and BM25 rankings are combined with Reciprocal Rank Fusion. When the
query cannot be embedded the search falls back to BM25.

Examples:
  paperdex search "transformer attention"
  paperdex search "graph neural networks" --category cs.LG --category stat.ML
  paperdex search "diffusion models" --latest --format json
  paperdex search "BERT" --since 2018-01-01 --until 2019-01-01`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd.OutOrStdout(), root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.size, "size", "n", request.DefaultSize, "Number of hits")
	cmd.Flags().IntVar(&opts.from, "from", 0, "Offset of the first hit")
	cmd.Flags().StringSliceVarP(&opts.categories, "category", "c", nil, "Filter by arXiv category (repeatable, any-of)")
	cmd.Flags().BoolVar(&opts.latest, "latest", false, "Order hits by publication date, newest first")
	cmd.Flags().BoolVar(&opts.bm25Only, "bm25-only", false, "Use keyword search only (skip the query embedding)")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "Drop hits scoring below this threshold (0..1)")
	cmd.Flags().StringVar(&opts.since, "since", "", "Only papers published on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.until, "until", "", "Only papers published before this date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func (o searchOptions) request(query string) (request.Request, error) {
	switch o.format {
	case "text", "json":
	default:
		return request.Request{}, fmt.Errorf("unknown format %q, want text or json", o.format)
	}
	req, err := request.New(query, o.categories, o.size, o.from, o.minScore, o.latest, !o.bm25Only)
	if err != nil {
		return request.Request{}, err //nolint:wrapcheck // message is user-facing
	}
	since, err := parseDateFlag("since", o.since)
	if err != nil {
		return request.Request{}, err
	}
	until, err := parseDateFlag("until", o.until)
	if err != nil {
		return request.Request{}, err
	}
	return req.WithPublished(since, until) //nolint:wrapcheck // message is user-facing
}

func parseDateFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", name, v)
	}
	return t, nil
}

func runSearch(ctx context.Context, w io.Writer, root *rootOptions, query string, opts searchOptions) error {
	req, err := opts.request(query)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, root)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.search.Search(ctx, &req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if opts.format == "json" {
		return writeJSON(w, toSearchOutput(&page))
	}
	return writeSearchText(w, &page)
}

type searchOutput struct {
	Query      string      `json:"query"`
	Total      int         `json:"total"`
	Size       int         `json:"size"`
	From       int         `json:"from"`
	SearchMode string      `json:"search_mode"`
	Hits       []hitOutput `json:"hits"`
}

type hitOutput struct {
	ArxivID       string   `json:"arxiv_id"`
	Title         string   `json:"title"`
	Categories    []string `json:"categories,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Score         float64  `json:"score"`
	ChunkIndex    int      `json:"chunk_index"`
	SectionName   string   `json:"section_name,omitempty"`
	ChunkText     string   `json:"chunk_text"`
}

func toSearchOutput(p *result.Page) searchOutput {
	out := searchOutput{
		Query:      p.Query(),
		Total:      p.Total(),
		Size:       p.Size(),
		From:       p.From(),
		SearchMode: string(p.Mode()),
		Hits:       make([]hitOutput, 0, len(p.Hits())),
	}
	for _, h := range p.Hits() {
		ho := hitOutput{
			ArxivID:     h.ArxivID,
			Title:       h.Title,
			Categories:  h.Categories,
			Score:       h.Score,
			ChunkIndex:  h.ChunkIndex,
			SectionName: h.SectionTitle,
			ChunkText:   h.ChunkText,
		}
		if !h.PublishedDate.IsZero() {
			ho.PublishedDate = h.PublishedDate.Format(time.DateOnly)
		}
		out.Hits = append(out.Hits, ho)
	}
	return out
}

const snippetRunes = 200

func writeSearchText(w io.Writer, p *result.Page) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d results for %q (%s)\n", p.Total(), p.Query(), p.Mode())
	for i, h := range p.Hits() {
		fmt.Fprintf(&b, "\n%d. [%.4f] %s  %s", p.From()+i+1, h.Score, h.ArxivID, h.Title)
		if !h.PublishedDate.IsZero() {
			fmt.Fprintf(&b, " (%s)", h.PublishedDate.Format(time.DateOnly))
		}
		b.WriteString("\n")
		if h.SectionTitle != "" {
			fmt.Fprintf(&b, "   section: %s\n", h.SectionTitle)
		}
		fmt.Fprintf(&b, "   %s\n", snippet(h.ChunkText, snippetRunes))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// snippet collapses whitespace and cuts s to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
