package chunk

import (
	"github.com/kailas-cloud/paperdex/internal/db"
)

// Field weights mirror the lexical boosts of the search endpoint:
// title matches count three times, abstract matches twice.
const (
	titleWeight    = 3
	abstractWeight = 2
)

// buildIndex creates the FT definition covering every chunk hash under the prefix.
func buildIndex(cfg Config) (*db.IndexDefinition, error) {
	distance, err := db.ParseDistance(cfg.Distance)
	if err != nil {
		return nil, err
	}
	algo, err := db.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	return db.NewIndex(cfg.IndexName()).
		Prefix(cfg.keyPrefix()).
		Tag(FieldArxivID).
		Tag(FieldPaperID).
		TagWithSeparator(FieldCategories, CategorySeparator).
		Tag(FieldSectionTitle).
		Numeric(FieldChunkIndex).
		SortableNumeric(FieldPublishedTS).
		TextWeighted(FieldTitle, titleWeight).
		TextWeighted(FieldAbstract, abstractWeight).
		Text(FieldAuthors).
		Text(FieldChunkText).
		Vector(FieldEmbedding, VectorAlias, cfg.VectorDim, algo, distance).
		HNSWParams(cfg.HNSW.M, cfg.HNSW.EFConstruct).
		Build()
}
