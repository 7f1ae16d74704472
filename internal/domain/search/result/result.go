package result

import (
	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
	"github.com/kailas-cloud/paperdex/internal/domain/search/mode"
)

// Page is one page of ranked search hits.
type Page struct {
	query string
	total int
	hits  []chunk.Hit
	size  int
	from  int
	mode  mode.Mode
}

// New creates a result page. total counts every ranked hit, not only this page.
func New(query string, total int, hits []chunk.Hit, size, from int, m mode.Mode) Page {
	return Page{query: query, total: total, hits: hits, size: size, from: from, mode: m}
}

// Query returns the normalized query text.
func (p *Page) Query() string { return p.query }

// Total returns the number of ranked hits across all pages.
func (p *Page) Total() int { return p.total }

// Hits returns the hits of this page.
func (p *Page) Hits() []chunk.Hit { return p.hits }

// Size returns the requested page size.
func (p *Page) Size() int { return p.size }

// From returns the page offset.
func (p *Page) From() int { return p.from }

// Mode returns the strategy the search actually ran with.
func (p *Page) Mode() mode.Mode { return p.mode }
