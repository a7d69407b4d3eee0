// Package retrieval implements the Hybrid Retriever: fan-out over the
// Graph Store's three search primitives, fused by reciprocal-rank,
// degraded-mode on partial arm failure, per spec.md §4.4.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/embedding"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/metrics"
	"github.com/fractalcore/agentmem/internal/model"
)

// ErrRetrieverUnavailable is returned when every search arm failed.
var ErrRetrieverUnavailable = errors.New("retrieval: all arms failed")

const defaultKRRF = 60.0

// Hit is one fused result: an episode id and its reciprocal-rank-fused
// score (not comparable across queries or weight configurations).
type Hit struct {
	EpisodeID string
	Score     float64
}

// Result is the outcome of one Search call.
type Result struct {
	Hits     []Hit
	Degraded bool
}

// Retriever runs the three Graph Store search primitives concurrently and
// fuses them via reciprocal-rank fusion.
type Retriever struct {
	store    graphstore.Store
	embedder embedding.Embedder // nil disables the vector arm
	weights  config.RetrievalWeights
	kRRF     float64
}

// New constructs a Retriever. embedder may be nil, in which case the
// vector arm is skipped (the remaining arms still produce results,
// matching spec.md §4.4's "If vector arm is disabled, result still
// contains E1 and E3 with degraded=true" scenario).
func New(store graphstore.Store, embedder embedding.Embedder, weights config.RetrievalWeights) *Retriever {
	return &Retriever{store: store, embedder: embedder, weights: weights, kRRF: defaultKRRF}
}

// armResult is one arm's ranked hits, kept separate until fusion so RRF
// can be tested as a pure function over this shape (property 8.1.7).
type armResult struct {
	name string
	hits []graphstore.SearchHit
	err  error
}

// Search fans out vector_search, keyword_search, and graph_search
// concurrently, fuses them, drops deleted episodes (handled upstream by
// the Graph Store's own live-only filters), and returns the top limit
// hits.
func (r *Retriever) Search(ctx context.Context, userID, query string, limit int) (Result, error) {
	kArm := limit * 3
	if kArm <= 0 {
		kArm = 15
	}

	arms := make([]armResult, 3)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		arms[0] = r.runVectorArm(gctx, userID, query, kArm)
		return nil
	})
	g.Go(func() error {
		hits, err := r.store.KeywordSearch(gctx, userID, query, kArm)
		arms[1] = armResult{name: "keyword", hits: hits, err: err}
		return nil
	})
	g.Go(func() error {
		seeds := seedEntityIDs(userID, query)
		hits, err := r.store.GraphSearch(gctx, userID, seeds, kArm, 2)
		arms[2] = armResult{name: "graph", hits: hits, err: err}
		return nil
	})
	_ = g.Wait() // arm goroutines never return an error themselves; failures are captured per-arm

	failures := 0
	for _, a := range arms {
		if a.err != nil {
			failures++
		}
	}
	if failures == len(arms) {
		return Result{}, fmt.Errorf("%w", ErrRetrieverUnavailable)
	}

	weights := map[string]float64{"vector": r.weights.Vector, "keyword": r.weights.Keyword, "graph": r.weights.Graph}
	fused := fuse(arms, weights, r.kRRF)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return Result{Hits: fused, Degraded: failures > 0}, nil
}

func (r *Retriever) runVectorArm(ctx context.Context, userID, query string, kArm int) armResult {
	if r.embedder == nil {
		return armResult{name: "vector", err: fmt.Errorf("vector arm disabled: no embedder configured")}
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		metrics.RetrieverArmFailures.WithLabelValues("vector").Inc()
		return armResult{name: "vector", err: fmt.Errorf("embed query: %w", err)}
	}
	hits, err := r.store.VectorSearch(ctx, userID, vecs[0], kArm)
	return armResult{name: "vector", hits: hits, err: err}
}

func seedEntityIDs(userID, query string) []string {
	names := model.ExtractEntityNames(query)
	ids := make([]string, len(names))
	for i, n := range names {
		ids[i] = model.EntityID(userID, n)
	}
	return ids
}
