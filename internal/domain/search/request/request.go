package request

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/paperdex/internal/domain"
	"github.com/kailas-cloud/paperdex/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length, in characters.
	MaxQueryLength = 500
	DefaultSize    = 10
	MaxSize        = 50
	// MaxCategories bounds the any-of category filter.
	MaxCategories = filter.MaxConditionsPerGroup
)

// Index fields the pre-filter is built on.
const (
	// CategoryField is the tag field matched by the category filter.
	CategoryField = "categories"
	// PublishedField is the numeric unix-seconds field of the publication date.
	PublishedField = "published_ts"
)

// Request is a validated hybrid search query.
type Request struct {
	query      string
	categories []string
	filters    filter.Expression
	size       int
	from       int
	minScore   float64
	latest     bool
	useHybrid  bool
	since      time.Time
	until      time.Time
}

// New validates and normalizes search parameters.
// Defaults: size=10. Categories match any-of; blank entries are dropped.
func New(
	query string,
	categories []string,
	size, from int,
	minScore float64,
	latest, useHybrid bool,
) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidInput)
	}
	if size == 0 {
		size = DefaultSize
	}
	if size < 1 || size > MaxSize {
		return Request{}, fmt.Errorf("size must be between 1 and %d: %w", MaxSize, domain.ErrInvalidInput)
	}
	if from < 0 {
		return Request{}, fmt.Errorf("from must not be negative: %w", domain.ErrInvalidInput)
	}
	if minScore < 0 || minScore > 1 {
		return Request{}, fmt.Errorf("min_score must be between 0 and 1: %w", domain.ErrInvalidInput)
	}

	cats, filters, err := categoryFilter(categories)
	if err != nil {
		return Request{}, err
	}

	return Request{
		query:      query,
		categories: cats,
		filters:    filters,
		size:       size,
		from:       from,
		minScore:   minScore,
		latest:     latest,
		useHybrid:  useHybrid,
	}, nil
}

func categoryFilter(categories []string) ([]string, filter.Expression, error) {
	var blank int
	for _, c := range categories {
		if strings.TrimSpace(c) == "" {
			blank++
		}
	}
	if len(categories)-blank > MaxCategories {
		return nil, filter.Expression{}, fmt.Errorf("too many categories (max %d): %w", MaxCategories, domain.ErrInvalidInput)
	}
	expr, cats, err := filter.AnyOf(CategoryField, categories)
	if err != nil {
		return nil, filter.Expression{}, fmt.Errorf("categories: %w: %w", domain.ErrInvalidInput, err)
	}
	return cats, expr, nil
}

// WithPublished restricts hits to papers published in [since, until).
// A zero bound is open; papers without a publication date never match.
func (r Request) WithPublished(since, until time.Time) (Request, error) {
	if since.IsZero() && until.IsZero() {
		return r, nil
	}
	rng, err := filter.TimeRange(since, until)
	if err != nil {
		return Request{}, fmt.Errorf("published range: %w: %w", domain.ErrInvalidInput, err)
	}
	cond, err := filter.NewRange(PublishedField, rng)
	if err != nil {
		return Request{}, fmt.Errorf("published range: %w", err)
	}
	filters, err := r.filters.And(cond)
	if err != nil {
		return Request{}, fmt.Errorf("published range: %w: %w", domain.ErrInvalidInput, err)
	}
	r.filters = filters
	r.since, r.until = since, until
	return r, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Categories returns the normalized category filter values.
func (r *Request) Categories() []string { return r.categories }

// Published returns the publication window, zero bounds are open.
func (r *Request) Published() (since, until time.Time) { return r.since, r.until }

// Filters returns the pre-filter expression built from the categories and the publication window.
func (r *Request) Filters() filter.Expression { return r.filters }

// Size returns the page size.
func (r *Request) Size() int { return r.size }

// From returns the page offset.
func (r *Request) From() int { return r.from }

// Window returns how many ranked hits are needed to serve the page.
func (r *Request) Window() int { return r.from + r.size }

// MinScore returns the minimum score threshold.
func (r *Request) MinScore() float64 { return r.minScore }

// Latest reports whether hits are ordered by publication date, newest first.
func (r *Request) Latest() bool { return r.latest }

// UseHybrid reports whether vector retrieval is requested.
func (r *Request) UseHybrid() bool { return r.useHybrid }
