package search

import (
	"sort"

	"github.com/kailas-cloud/paperdex/internal/domain/chunk"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// rrfMax is the best fused score: rank 1 in both rankings.
const rrfMax = 2.0 / float64(rrfK+1)

// fuseRRF merges KNN and BM25 hits via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears,
// divided by rrfMax so that fused scores fall in (0, 1].
// Ties keep the order of first appearance, KNN before BM25.
func fuseRRF(knn, bm25 []chunk.Hit) []chunk.Hit {
	type scored struct {
		hit   chunk.Hit
		score float64
		order int
	}

	merged := make(map[string]*scored, len(knn)+len(bm25))
	add := func(hits []chunk.Hit) {
		for rank, h := range hits {
			s := 1.0 / float64(rrfK+rank+1)
			if existing, ok := merged[h.Key()]; ok {
				existing.score += s
				continue
			}
			merged[h.Key()] = &scored{hit: h, score: s, order: len(merged)}
		}
	}
	add(knn)
	add(bm25)

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})

	results := make([]chunk.Hit, len(all))
	for i, s := range all {
		results[i] = s.hit
		results[i].Score = s.score / rrfMax
	}
	return results
}
