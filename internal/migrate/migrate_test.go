package migrate_test

import (
	"context"
	"testing"

	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/graphstore/graphstoretest"
	"github.com/fractalcore/agentmem/internal/migrate"
)

func newTestGraph() graphstore.Store {
	return graphstore.NewStore(graphstoretest.New(), nil)
}

func TestRun_AppliesEveryStepOnce(t *testing.T) {
	ctx := context.Background()
	graph := newTestGraph()

	applied, err := migrate.Run(ctx, graph, "u1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(applied) != len(migrate.Steps) {
		t.Fatalf("applied %d steps, want %d", len(applied), len(migrate.Steps))
	}

	second, err := migrate.Run(ctx, graph, "u1")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second Run re-applied %d steps, want 0 (idempotent)", len(second))
	}
}

func TestApplied_ReturnsRecordedMigrationsInVersionOrder(t *testing.T) {
	ctx := context.Background()
	graph := newTestGraph()

	if _, err := migrate.Run(ctx, graph, "u1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	applied, err := migrate.Applied(ctx, graph, "u1")
	if err != nil {
		t.Fatalf("Applied: %v", err)
	}
	if len(applied) != len(migrate.Steps) {
		t.Fatalf("Applied returned %d, want %d", len(applied), len(migrate.Steps))
	}
	for i := 1; i < len(applied); i++ {
		if applied[i].Version <= applied[i-1].Version {
			t.Fatalf("Applied not sorted by version: %v", applied)
		}
	}
}

func TestApplied_EmptyBeforeRun(t *testing.T) {
	ctx := context.Background()
	graph := newTestGraph()

	applied, err := migrate.Applied(ctx, graph, "u1")
	if err != nil {
		t.Fatalf("Applied: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("Applied = %v before Run, want empty", applied)
	}
}
