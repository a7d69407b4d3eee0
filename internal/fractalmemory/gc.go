package fractalmemory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/metrics"
)

const hardDeleteBatchLimit = 500

// GCCounters is garbage_collect's return shape.
type GCCounters struct {
	SoftDeleted int
	HardDeleted int
}

// GarbageCollect hard-deletes already-soft-deleted nodes past grace first
// (honouring invariant 5: a hard delete is never skipped once due), then
// sweeps live, low-importance, zero-access, aged episodes to soft-deleted.
func (m *Memory) GarbageCollect(ctx context.Context, grace time.Duration) (GCCounters, error) {
	if grace <= 0 {
		grace = 7 * 24 * time.Hour
	}

	var counters GCCounters

	hardDeleted, err := m.graph.HardDeleteExpired(ctx, m.cfg.UserID, grace, hardDeleteBatchLimit)
	if err != nil {
		return counters, fmt.Errorf("garbage_collect: hard delete: %w", err)
	}
	counters.HardDeleted = hardDeleted
	if hardDeleted > 0 {
		metrics.ConsolidationForgotten.WithLabelValues("hard_delete").Add(float64(hardDeleted))
	}

	episodes, err := m.graph.ListEpisodes(ctx, m.cfg.UserID, nil)
	if err != nil {
		return counters, fmt.Errorf("garbage_collect: list episodes: %w", err)
	}

	now := time.Now()
	for _, ep := range episodes {
		aged := now.Sub(ep.CreatedAt) >= 30*24*time.Hour
		if ep.Importance < m.cfg.ImportanceThreshold && ep.AccessCount == 0 && aged {
			if err := m.graph.SoftDelete(ctx, m.cfg.UserID, ep.ID); err != nil {
				m.log.Warn(ctx, "garbage_collect soft delete failed", zap.String("episode_id", ep.ID), zap.Error(err))
				continue
			}
			counters.SoftDeleted++
		}
	}
	if counters.SoftDeleted > 0 {
		metrics.ConsolidationForgotten.WithLabelValues("soft_delete").Add(float64(counters.SoftDeleted))
	}

	return counters, nil
}
