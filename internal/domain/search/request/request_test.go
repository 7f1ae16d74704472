package request

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/paperdex/internal/domain"
)

func TestNew_Defaults(t *testing.T) {
	r, err := New("  transformers  ", nil, 0, 0, 0, false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Query() != "transformers" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.Size() != DefaultSize {
		t.Errorf("Size() = %d, want %d", r.Size(), DefaultSize)
	}
	if r.From() != 0 || r.Window() != DefaultSize {
		t.Errorf("From() = %d, Window() = %d", r.From(), r.Window())
	}
	if !r.Filters().IsEmpty() {
		t.Error("expected empty filters without categories")
	}
	if r.Latest() || !r.UseHybrid() {
		t.Errorf("Latest() = %v, UseHybrid() = %v", r.Latest(), r.UseHybrid())
	}
}

func TestNew_ExplicitValues(t *testing.T) {
	r, err := New("attention", []string{"cs.AI", " ", "cs.CL"}, 20, 40, 0.3, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Size() != 20 || r.From() != 40 || r.Window() != 60 {
		t.Errorf("size=%d from=%d window=%d", r.Size(), r.From(), r.Window())
	}
	if r.MinScore() != 0.3 {
		t.Errorf("MinScore() = %f", r.MinScore())
	}
	if strings.Join(r.Categories(), ",") != "cs.AI,cs.CL" {
		t.Errorf("Categories() = %v", r.Categories())
	}
	should := r.Filters().Should()
	if len(should) != 2 || should[0].Key() != CategoryField || should[1].Match() != "cs.CL" {
		t.Errorf("unexpected should group %+v", should)
	}
	if len(r.Filters().Must()) != 0 {
		t.Error("categories must be any-of, not all-of")
	}
}

func TestNew_Invalid(t *testing.T) {
	tooMany := make([]string, MaxCategories+1)
	for i := range tooMany {
		tooMany[i] = "cs.AI"
	}

	tests := []struct {
		name       string
		query      string
		categories []string
		size, from int
		minScore   float64
	}{
		{name: "empty query", query: "  "},
		{name: "query too long", query: strings.Repeat("a", MaxQueryLength+1)},
		{name: "size too large", query: "q", size: MaxSize + 1},
		{name: "negative size", query: "q", size: -1},
		{name: "negative from", query: "q", from: -1},
		{name: "min score above one", query: "q", minScore: 1.5},
		{name: "negative min score", query: "q", minScore: -0.1},
		{name: "too many categories", query: "q", categories: tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.query, tt.categories, tt.size, tt.from, tt.minScore, false, true)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNew_QueryLengthCountsCharacters(t *testing.T) {
	q := strings.Repeat("ü", MaxQueryLength)
	if _, err := New(q, nil, 0, 0, 0, false, true); err != nil {
		t.Errorf("query of %d characters rejected: %v", MaxQueryLength, err)
	}
}

func TestWithPublished(t *testing.T) {
	r, err := New("attention", []string{"cs.CL"}, 0, 0, 0, false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	since := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := r.WithPublished(since, until)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	must := got.Filters().Must()
	if len(must) != 1 || must[0].Key() != PublishedField || !must[0].IsRange() {
		t.Fatalf("unexpected must group %+v", must)
	}
	if len(got.Filters().Should()) != 1 {
		t.Error("category filter must survive")
	}
	if s, u := got.Published(); !s.Equal(since) || !u.Equal(until) {
		t.Errorf("Published() = %v..%v", s, u)
	}
	if len(r.Filters().Must()) != 0 {
		t.Error("WithPublished must not modify the receiver")
	}

	same, err := r.WithPublished(time.Time{}, time.Time{})
	if err != nil || len(same.Filters().Must()) != 0 {
		t.Errorf("open window: must=%v err=%v", same.Filters().Must(), err)
	}

	if _, err := r.WithPublished(until, since); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for inverted window, got %v", err)
	}
}
