package fractalmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/model"
)

// recencyHalfLife is the kernel used to score L0/L1 hits by importance ×
// recency, matching the decay half-lives those tiers already use.
const recencyHalfLife = mediumHalfLife

// lowerTierBudgetReduction is the default proportional reduction applied
// to the L2/L3 budget once L0/L1 already produced limit high-scoring
// hits, per spec.md §4.3's "tunable, default half".
const lowerTierBudgetReduction = 0.5

// Result is one recall hit.
type Result struct {
	Content    string
	Score      float64
	Source     model.Tier
	CreatedAt  time.Time
	Metadata   map[string]any
	episodeID  string
}

// Recall runs the cascade policy of spec.md §4.3: L0 (substring + recency)
// first, then L1 (substring on summaries), then L2/L3 via the Hybrid
// Retriever, with the lower-tier budget reduced once higher tiers already
// satisfy limit. Results are unioned, re-ranked by a normalised score, and
// access-count/last-accessed are updated best-effort for L2/L3 hits.
func (m *Memory) Recall(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}
	q := strings.ToLower(strings.TrimSpace(query))
	now := time.Now()

	var results []Result

	l0Hits, err := m.recallL0(ctx, q, now)
	if err != nil {
		m.log.Warn(ctx, "recall l0 scan failed", zap.Error(err))
	}
	results = append(results, l0Hits...)

	budget := limit
	if len(highScoring(results, limit)) >= limit {
		budget = int(float64(limit) * lowerTierBudgetReduction)
		if budget < 1 {
			budget = 1
		}
	}

	l1Hits, err := m.recallL1(ctx, q, now)
	if err != nil {
		m.log.Warn(ctx, "recall l1 scan failed", zap.Error(err))
	}
	results = append(results, l1Hits...)

	if budget == limit && len(highScoring(results, limit)) >= limit {
		budget = int(float64(budget) * lowerTierBudgetReduction)
		if budget < 1 {
			budget = 1
		}
	}

	if m.retriever != nil {
		lowerHits, err := m.recallLowerTiers(ctx, query, budget)
		if err != nil {
			m.log.Warn(ctx, "recall l2/l3 retrieval failed", zap.Error(err))
		}
		results = append(results, lowerHits...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].episodeID < results[j].episodeID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	m.touchAccessed(ctx, results)

	return results, nil
}

func highScoring(results []Result, limit int) []Result {
	const highScoreThreshold = 0.6
	var out []Result
	for _, r := range results {
		if r.Score >= highScoreThreshold {
			out = append(out, r)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (m *Memory) recallL0(ctx context.Context, q string, now time.Time) ([]Result, error) {
	episodes, err := m.volatile.L0Read(ctx, m.cfg.UserID, m.cfg.L0Capacity)
	if err != nil {
		return nil, err
	}
	var hits []Result
	for _, ep := range episodes {
		if q != "" && !strings.Contains(strings.ToLower(ep.Content), q) {
			continue
		}
		score := ep.Importance * recencyFactor(now.Sub(ep.LastAccessedAt))
		hits = append(hits, Result{
			Content:   ep.Content,
			Score:     score,
			Source:    model.TierL0,
			CreatedAt: ep.CreatedAt,
			Metadata:  ep.Metadata,
			episodeID: ep.ID,
		})
	}
	return hits, nil
}

func (m *Memory) recallL1(ctx context.Context, q string, now time.Time) ([]Result, error) {
	records, err := m.volatile.L1List(ctx, m.cfg.UserID, 0)
	if err != nil {
		return nil, err
	}
	var hits []Result
	for _, rec := range records {
		if q != "" && !strings.Contains(strings.ToLower(rec.Summary), q) {
			continue
		}
		score := rec.Importance * recencyFactor(now.Sub(rec.CreatedAt))
		hits = append(hits, Result{
			Content:   rec.Summary,
			Score:     score,
			Source:    model.TierL1,
			CreatedAt: rec.CreatedAt,
			Metadata:  rec.Extra,
			episodeID: rec.SessionID,
		})
	}
	return hits, nil
}

func (m *Memory) recallLowerTiers(ctx context.Context, query string, budget int) ([]Result, error) {
	res, err := m.retriever.Search(ctx, m.cfg.UserID, query, budget)
	if err != nil {
		return nil, fmt.Errorf("hybrid retriever search: %w", err)
	}

	hits := make([]Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		ep, ok, err := m.graph.GetEpisode(ctx, m.cfg.UserID, h.EpisodeID)
		if err != nil || !ok || ep.Deleted {
			continue
		}
		hits = append(hits, Result{
			Content:   ep.Content,
			Score:     normalizedFusedScore(h.Score),
			Source:    ep.Tier,
			CreatedAt: ep.CreatedAt,
			Metadata:  ep.Metadata,
			episodeID: ep.ID,
		})
	}
	return hits, nil
}

// recencyFactor maps elapsed time to (0,1] via the same half-life kernel
// used for decay, so importance × recency stays comparable to the
// retriever's fused score range.
func recencyFactor(elapsed time.Duration) float64 {
	return decayedImportance(1.0, elapsed, recencyHalfLife)
}

// normalizedFusedScore squashes an RRF score (which has no fixed upper
// bound) into (0,1] so it's comparable to the L0/L1 importance×recency
// scores recall unions it with.
func normalizedFusedScore(rrf float64) float64 {
	return rrf / (rrf + 1)
}

// touchAccessed updates access-count/last-accessed for returned L2/L3
// records, best-effort: a failure here must not poison the read. L0 and
// L1 records are not updated.
func (m *Memory) touchAccessed(ctx context.Context, results []Result) {
	for _, r := range results {
		switch r.Source {
		case model.TierL2, model.TierL3:
			ep, ok, err := m.graph.GetEpisode(ctx, m.cfg.UserID, r.episodeID)
			if err != nil || !ok {
				continue
			}
			ep.AccessCount++
			ep.LastAccessedAt = time.Now()
			if err := m.graph.UpsertEpisode(ctx, ep, nil); err != nil {
				m.log.Warn(ctx, "best-effort access touch failed", zap.String("episode_id", r.episodeID), zap.Error(err))
			}
		}
		// L0/L1 hits keep their access count and last-accessed time: the
		// Volatile Store's reads do not update them, and it exposes no
		// per-episode update primitive for L0 short of rewriting the log.
	}
}
