// Package fractalmemory implements the Fractal Memory orchestrator:
// remember/recall/consolidate/garbage_collect/get_stats/close over the
// Volatile Store and Graph Store tiers, enforcing every invariant of
// spec.md §3.3, per spec.md §4.3.
package fractalmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/completion"
	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/embedding"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/retrieval"
	"github.com/fractalcore/agentmem/internal/volatile"
)

// Retriever is the narrow seam Recall uses for L2/L3 search, satisfied by
// *retrieval.Retriever. Declared here (consumer side) so fractalmemory
// depends only on the shapes it needs.
type Retriever interface {
	Search(ctx context.Context, userID, query string, limit int) (retrieval.Result, error)
}

// Deps are Memory's constructor dependencies. Volatile/Graph ownership is
// tracked explicitly so Close only releases adapters this Memory created,
// matching the Agent Facade's ownership-tracking pattern (§4.6) applied
// one level down.
type Deps struct {
	Volatile     volatile.Store
	OwnsVolatile bool
	Graph        graphstore.Store
	OwnsGraph    bool
	Retriever    Retriever
	Embedder     embedding.Embedder // nil disables embeddings on remember
	Completion   completion.Provider
	Logger       *logging.Logger
}

// Memory is the Fractal Memory orchestrator.
type Memory struct {
	cfg        config.Config
	volatile   volatile.Store
	graph      graphstore.Store
	retriever  Retriever
	embedder   embedding.Embedder
	completion completion.Provider
	log        *logging.Logger

	ownsVolatile bool
	ownsGraph    bool

	mu                  sync.Mutex
	lastConsolidationAt time.Time
}

// New constructs a Memory over the given tiers.
func New(cfg config.Config, deps Deps) *Memory {
	log := deps.Logger
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	return &Memory{
		cfg:          cfg,
		volatile:     deps.Volatile,
		graph:        deps.Graph,
		retriever:    deps.Retriever,
		embedder:     deps.Embedder,
		completion:   deps.Completion,
		log:          log,
		ownsVolatile: deps.OwnsVolatile,
		ownsGraph:    deps.OwnsGraph,
	}
}

// Remember creates a fresh Episode at L0 for the configured user. When an
// embedder is configured it is called inline, before the volatile-store
// append, so Remember waits for the embedding request as well; embedding
// failures are logged and swallowed (embeddings are optional per spec.md
// §3.1).
func (m *Memory) Remember(ctx context.Context, content string, importance float64, metadata map[string]any) (string, error) {
	now := time.Now()
	ep := model.Episode{
		ID:             uuid.NewString(),
		UserID:         m.cfg.UserID,
		Content:        content,
		CreatedAt:      now,
		LastAccessedAt: now,
		Importance:     importance,
		Tier:           model.TierL0,
		Outcome:        model.OutcomeNone,
		Scale:          model.ScaleMicro,
		Metadata:       metadata,
	}

	if m.embedder != nil {
		vecs, err := m.embedder.Embed(ctx, []string{content})
		if err != nil {
			m.log.Warn(ctx, "embedding failed for remembered episode", zap.String("episode_id", ep.ID), zap.Error(err))
		} else if len(vecs) == 1 {
			ep.Embedding = vecs[0]
		}
	}

	if err := m.volatile.L0Append(ctx, m.cfg.UserID, ep, m.cfg.L0Capacity); err != nil {
		return "", fmt.Errorf("remember: l0 append: %w", err)
	}

	log, err := m.volatile.L0Read(ctx, m.cfg.UserID, m.cfg.L0Capacity)
	if err == nil && len(log) >= m.cfg.L0Capacity {
		go func() {
			tickCtx, cancel := context.WithTimeout(context.Background(), m.cfg.ConsolidationInterval())
			defer cancel()
			if _, err := m.Consolidate(tickCtx); err != nil {
				m.log.Warn(tickCtx, "async consolidation tick triggered by l0 capacity failed", zap.Error(err))
			}
		}()
	}

	return ep.ID, nil
}

// GetStats reports per-tier counts and the last successful consolidation
// time.
func (m *Memory) GetStats(ctx context.Context) (Stats, error) {
	l0, err := m.volatile.L0Read(ctx, m.cfg.UserID, m.cfg.L0Capacity)
	if err != nil {
		return Stats{}, fmt.Errorf("get_stats: l0 read: %w", err)
	}
	l1, err := m.volatile.L1List(ctx, m.cfg.UserID, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("get_stats: l1 list: %w", err)
	}
	l2Tier := model.TierL2
	l2, err := m.graph.ListEpisodes(ctx, m.cfg.UserID, &l2Tier)
	if err != nil {
		return Stats{}, fmt.Errorf("get_stats: l2 list: %w", err)
	}
	l3Tier := model.TierL3
	l3, err := m.graph.ListEpisodes(ctx, m.cfg.UserID, &l3Tier)
	if err != nil {
		return Stats{}, fmt.Errorf("get_stats: l3 list: %w", err)
	}

	m.mu.Lock()
	lastConsolidation := m.lastConsolidationAt
	m.mu.Unlock()

	return Stats{
		L0Size:              len(l0),
		L1Size:              len(l1),
		L2Size:              len(l2),
		L3Size:              len(l3),
		LastConsolidationAt: lastConsolidation,
	}, nil
}

// Close releases only the adapters this Memory owns.
func (m *Memory) Close() error {
	var firstErr error
	if m.ownsVolatile {
		if err := m.volatile.Close(); err != nil {
			firstErr = err
		}
	}
	if m.ownsGraph {
		if err := m.graph.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats is get_stats's return shape.
type Stats struct {
	L0Size              int
	L1Size              int
	L2Size              int
	L3Size              int
	LastConsolidationAt time.Time
}
