// Package migrate tracks and applies schema migrations for the memory
// core's stores (Qdrant/chromem collections, Redis key conventions),
// mirroring the teacher's cmd/migrate-collection and cmd/migrate-tenant
// tooling (SPEC_FULL.md §6.5), but as an idempotent, in-process registry
// rather than one-shot data-munging scripts.
package migrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/model"
)

// migrationSource marks the graph-store episodes used as the metadata
// collection's migration ledger, distinguishing them from user memories.
const migrationSource = "agentmem_migration"

// Migration is one applied schema migration, per spec.md §6.5.
type Migration struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// Step is one migration's forward action. Apply must be idempotent: Run
// skips any step whose Version is already recorded.
type Step struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, graph graphstore.Store, userID string) error
}

// Steps is the ordered migration history. New migrations are appended;
// Version must strictly increase.
var Steps = []Step{
	{
		Version: 1,
		Name:    "ensure_vector_collection",
		Apply: func(ctx context.Context, graph graphstore.Store, userID string) error {
			// The vector index's collection is created lazily by
			// graphstore.NewVectorIndex/NewChromemIndex/NewQdrantIndex
			// (EnsureCollection-equivalent happens at construction), so
			// this step only has to confirm the store answers reads.
			_, err := graph.ListEpisodes(ctx, userID, nil)
			return err
		},
	},
}

// Applied returns the migrations already recorded against graph, oldest
// first.
func Applied(ctx context.Context, graph graphstore.Store, userID string) ([]Migration, error) {
	episodes, err := graph.ListEpisodes(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("migrate: list applied migrations: %w", err)
	}
	var out []Migration
	for _, ep := range episodes {
		if ep.Source != migrationSource {
			continue
		}
		m, err := decodeMigration(ep)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Run applies every Steps entry not yet recorded against graph, in
// version order, recording a Migration row after each success.
func Run(ctx context.Context, graph graphstore.Store, userID string) ([]Migration, error) {
	applied, err := Applied(ctx, graph, userID)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	steps := append([]Step(nil), Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })

	var newlyApplied []Migration
	for _, step := range steps {
		if done[step.Version] {
			continue
		}
		if err := step.Apply(ctx, graph, userID); err != nil {
			return newlyApplied, fmt.Errorf("migrate: step %d (%s): %w", step.Version, step.Name, err)
		}
		m := Migration{Version: step.Version, Name: step.Name, AppliedAt: time.Now()}
		if err := record(ctx, graph, userID, m); err != nil {
			return newlyApplied, fmt.Errorf("migrate: record step %d: %w", step.Version, err)
		}
		newlyApplied = append(newlyApplied, m)
	}
	return newlyApplied, nil
}

func record(ctx context.Context, graph graphstore.Store, userID string, m Migration) error {
	ep := model.Episode{
		ID:             fmt.Sprintf("migration-%d", m.Version),
		UserID:         userID,
		Content:        m.Name,
		Source:         migrationSource,
		CreatedAt:      m.AppliedAt,
		LastAccessedAt: m.AppliedAt,
		Importance:     0,
		Tier:           model.TierL3,
		Metadata: map[string]any{
			"version":    m.Version,
			"name":       m.Name,
			"applied_at": m.AppliedAt.Format(time.RFC3339),
		},
	}
	return graph.UpsertEpisode(ctx, ep, nil)
}

func decodeMigration(ep model.Episode) (Migration, error) {
	version, ok := ep.Metadata["version"]
	if !ok {
		// The graph store does not persist Episode.Metadata, so fall back
		// to the version encoded in the ledger row's id by record.
		var v int
		if _, err := fmt.Sscanf(ep.ID, "migration-%d", &v); err != nil {
			return Migration{}, fmt.Errorf("migrate: episode %s missing version", ep.ID)
		}
		return Migration{Version: v, Name: ep.Content, AppliedAt: ep.CreatedAt}, nil
	}
	v, ok := toInt(version)
	if !ok {
		return Migration{}, fmt.Errorf("migrate: episode %s has non-numeric version", ep.ID)
	}
	return Migration{Version: v, Name: ep.Content, AppliedAt: ep.CreatedAt}, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
