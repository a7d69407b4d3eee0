package fractalmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/fractalcore/agentmem/internal/model"
)

// TierItem is one row of the GET /memory/{level} HTTP surface's listing
// (spec.md §6.1): Label is a short display summary, Content is the full
// text, Connections are entity ids the item mentions (graph tiers only —
// L0/L1 have no entity extraction yet).
type TierItem struct {
	ID          string
	Label       string
	Content     string
	Level       string
	Importance  float64
	CreatedAt   time.Time
	Connections []string
}

// ListLevel returns the items stored at level ("all", "l0", "l1", "l2", or
// "l3"), for the GET /memory/{level} HTTP surface.
func (m *Memory) ListLevel(ctx context.Context, level string) ([]TierItem, error) {
	switch level {
	case "l0":
		return m.listL0(ctx)
	case "l1":
		return m.listL1(ctx)
	case "l2":
		return m.listGraphTier(ctx, model.TierL2, "l2")
	case "l3":
		return m.listGraphTier(ctx, model.TierL3, "l3")
	case "all", "":
		var out []TierItem
		for _, lvl := range []string{"l0", "l1", "l2", "l3"} {
			items, err := m.ListLevel(ctx, lvl)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("list_level: unknown level %q", level)
	}
}

func (m *Memory) listL0(ctx context.Context) ([]TierItem, error) {
	episodes, err := m.volatile.L0Read(ctx, m.cfg.UserID, m.cfg.L0Capacity)
	if err != nil {
		return nil, fmt.Errorf("list_level l0: %w", err)
	}
	out := make([]TierItem, len(episodes))
	for i, ep := range episodes {
		out[i] = episodeToTierItem(ep, "l0")
	}
	return out, nil
}

func (m *Memory) listL1(ctx context.Context) ([]TierItem, error) {
	records, err := m.volatile.L1List(ctx, m.cfg.UserID, 0)
	if err != nil {
		return nil, fmt.Errorf("list_level l1: %w", err)
	}
	out := make([]TierItem, len(records))
	for i, r := range records {
		out[i] = TierItem{
			ID:         r.SessionID,
			Label:      firstSentence(r.Summary),
			Content:    r.Summary,
			Level:      "l1",
			Importance: r.Importance,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

func (m *Memory) listGraphTier(ctx context.Context, tier model.Tier, level string) ([]TierItem, error) {
	episodes, err := m.graph.ListEpisodes(ctx, m.cfg.UserID, &tier)
	if err != nil {
		return nil, fmt.Errorf("list_level %s: %w", level, err)
	}
	out := make([]TierItem, len(episodes))
	for i, ep := range episodes {
		item := episodeToTierItem(ep, level)
		if conns, err := m.graph.Connections(ctx, m.cfg.UserID, ep.ID); err == nil {
			item.Connections = conns
		}
		out[i] = item
	}
	return out, nil
}

func episodeToTierItem(ep model.Episode, level string) TierItem {
	label := ep.Summary
	if label == "" {
		label = firstSentence(ep.Content)
	}
	return TierItem{
		ID:         ep.ID,
		Label:      label,
		Content:    ep.Content,
		Level:      level,
		Importance: ep.Importance,
		CreatedAt:  ep.CreatedAt,
	}
}
