package retrieval

import "sort"

// fuse computes spec.md §4.4's reciprocal-rank fusion over arms' ranked
// hits: score(e) = Σ_arm w_arm × 1/(kRRF + rank_arm(e)), rank 1-based,
// ∞ (i.e. no contribution) for arms that didn't return e. A pure function
// of its inputs for testability (property 8.1.7). Ties broken by episode
// id; recency tie-breaking happens one layer up once episodes are
// hydrated (internal/fractalmemory.recall already re-ranks the union of
// all tiers by recency as its own final tie-break).
func fuse(arms []armResult, weights map[string]float64, kRRF float64) []Hit {
	scores := make(map[string]float64)
	for _, arm := range arms {
		if arm.err != nil {
			continue
		}
		w := weights[arm.name]
		for rank, hit := range arm.hits {
			scores[hit.EpisodeID] += w * (1.0 / (kRRF + float64(rank+1)))
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{EpisodeID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].EpisodeID < hits[j].EpisodeID
	})
	return hits
}
