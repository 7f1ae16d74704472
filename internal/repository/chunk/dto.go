package chunk

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	domchunk "github.com/kailas-cloud/paperdex/internal/domain/chunk"
)

// Hash field names of a chunk record. The index schema and the search
// projection are both built from these.
const (
	FieldArxivID        = "arxiv_id"
	FieldPaperID        = "paper_id"
	FieldChunkIndex     = "chunk_index"
	FieldChunkText      = "chunk_text"
	FieldWordCount      = "chunk_word_count"
	FieldStartChar      = "start_char"
	FieldEndChar        = "end_char"
	FieldOverlapPrev    = "overlap_prev"
	FieldOverlapNext    = "overlap_next"
	FieldSectionTitle   = "section_title"
	FieldTitle          = "title"
	FieldAuthors        = "authors"
	FieldAbstract       = "abstract"
	FieldCategories     = "categories"
	FieldPublishedDate  = "published_date"
	FieldPublishedTS    = "published_ts"
	FieldEmbedding      = "embedding"
	FieldEmbeddingModel = "embedding_model"
)

// VectorAlias is the name the vector field is queried through.
const VectorAlias = "vector"

// CategorySeparator joins categories inside the TAG field.
const CategorySeparator = ","

// HitFields is the projection returned by searches: everything but the vector.
var HitFields = []string{
	FieldArxivID, FieldPaperID, FieldChunkIndex, FieldChunkText, FieldSectionTitle,
	FieldTitle, FieldAuthors, FieldAbstract, FieldCategories, FieldPublishedDate,
}

// buildHashFields flattens a record into HSET field-value pairs.
// Empty optional fields are left out so TAG filters never see blanks.
func buildHashFields(r *domchunk.Record) map[string]string {
	meta := r.Chunk.Metadata()

	m := map[string]string{
		FieldArxivID:     r.Chunk.ArxivID(),
		FieldChunkIndex:  strconv.Itoa(meta.ChunkIndex),
		FieldChunkText:   r.Chunk.Text(),
		FieldWordCount:   strconv.Itoa(meta.WordCount),
		FieldStartChar:   strconv.Itoa(meta.StartChar),
		FieldEndChar:     strconv.Itoa(meta.EndChar),
		FieldOverlapPrev: strconv.Itoa(meta.OverlapWithPrevious),
		FieldOverlapNext: strconv.Itoa(meta.OverlapWithNext),
		FieldTitle:       r.Title,
		FieldAuthors:     r.Authors,
		FieldAbstract:    r.Abstract,
		FieldEmbedding:   vectorToBytes(r.Embedding),
	}
	setIfNotEmpty(m, FieldPaperID, r.Chunk.PaperID())
	setIfNotEmpty(m, FieldSectionTitle, meta.SectionTitle)
	setIfNotEmpty(m, FieldEmbeddingModel, r.EmbeddingModel)
	setIfNotEmpty(m, FieldCategories, joinCategories(r.Categories))

	if !r.PublishedDate.IsZero() {
		ts := r.PublishedDate.UTC()
		m[FieldPublishedDate] = ts.Format(time.RFC3339)
		m[FieldPublishedTS] = strconv.FormatInt(ts.Unix(), 10)
	}

	return m
}

// ParseHit converts the projected fields of a search entry into a Hit.
func ParseHit(fields map[string]string, score float64) domchunk.Hit {
	h := domchunk.Hit{
		ArxivID:      fields[FieldArxivID],
		PaperID:      fields[FieldPaperID],
		ChunkText:    fields[FieldChunkText],
		SectionTitle: fields[FieldSectionTitle],
		Title:        fields[FieldTitle],
		Authors:      fields[FieldAuthors],
		Abstract:     fields[FieldAbstract],
		Score:        score,
	}
	if idx, err := strconv.Atoi(fields[FieldChunkIndex]); err == nil {
		h.ChunkIndex = idx
	}
	if cats := fields[FieldCategories]; cats != "" {
		h.Categories = strings.Split(cats, CategorySeparator)
	}
	if ts, err := time.Parse(time.RFC3339, fields[FieldPublishedDate]); err == nil {
		h.PublishedDate = ts
	}
	return h
}

func setIfNotEmpty(m map[string]string, k, v string) {
	if v != "" {
		m[k] = v
	}
}

// joinCategories drops blanks and separator characters so that the TAG
// field splits back into the same values.
func joinCategories(cats []string) string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		c = strings.TrimSpace(strings.ReplaceAll(c, CategorySeparator, ""))
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, CategorySeparator)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
