// Package agent implements the Agent Facade (spec.md §4.6): it composes
// Fractal Memory, the Hybrid Retriever, the Reasoning Bank, and a
// completion provider behind a single per-turn Chat entry point, and
// drives the background slow path (periodic consolidate/garbage_collect
// ticks). Grounded on the teacher's dependencies struct + Close() pattern
// in cmd/contextd/main.go, generalized with the ownership-tracking
// convention fractalmemory.Deps already established one layer down.
package agent

import (
	"context"
	"fmt"

	"github.com/fractalcore/agentmem/internal/completion"
	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/fractalmemory"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/reasoningbank"
)

// Deps are Agent's constructor dependencies. Memory and Completion are the
// two pieces cheap default-construction cannot cover (Memory composes its
// own volatile/graph/retriever/embedder stack; a completion provider needs
// an API key) and so must always be pre-built by the caller, matching
// fractalmemory.Deps's own refusal to auto-construct its store adapters
// one layer down. Bank is genuinely optional per spec.md §4.6
// ("accepts an optional pre-built ... reasoning bank; any omitted ones
// are constructed internally"): when nil, New builds one directly from
// Graph, which is shared with Memory's own graph connection per spec.md
// §5's single-pool policy.
type Deps struct {
	Memory     *fractalmemory.Memory
	OwnsMemory bool
	Graph      graphstore.Store // used only to construct a default Bank when Bank is nil
	Bank       *reasoningbank.Bank
	Completion completion.Provider
	Logger     *logging.Logger
}

// Agent is the Agent Facade.
type Agent struct {
	cfg        config.Config
	memory     *fractalmemory.Memory
	ownsMemory bool
	bank       *reasoningbank.Bank
	completion completion.Provider
	log        *logging.Logger
	events     *eventBus
	scheduler  *scheduler
}

// New constructs an Agent. cfg is a typed Config already decoded by
// internal/config, whose koanf-backed loader ignores unrecognised keys;
// New itself only ever reads known fields, so it never raises on an
// unknown one either, satisfying spec.md §4.6's forward-compatibility
// requirement.
func New(cfg config.Config, deps Deps) (*Agent, error) {
	if deps.Memory == nil {
		return nil, fmt.Errorf("agent: a memory is required (construct one via fractalmemory.New and pass it in Deps)")
	}
	if deps.Completion == nil {
		return nil, fmt.Errorf("agent: a completion provider is required")
	}

	log := deps.Logger
	if log == nil {
		log = logging.FromContext(context.Background())
	}

	bank := deps.Bank
	if bank == nil {
		if deps.Graph == nil {
			return nil, fmt.Errorf("agent: no reasoning bank given and no graph to build one from")
		}
		bank = reasoningbank.New(deps.Graph, cfg, log)
	}

	a := &Agent{
		cfg:        cfg,
		memory:     deps.Memory,
		ownsMemory: deps.OwnsMemory,
		bank:       bank,
		completion: deps.Completion,
		log:        log,
		events:     newEventBus(cfg.NATSURL, log),
	}
	a.scheduler = newScheduler(a, log)
	return a, nil
}

// Memory returns the underlying Fractal Memory orchestrator, for callers
// (the HTTP surface) that need get_stats/list_level/consolidate/remember
// directly rather than through the per-turn Chat path.
func (a *Agent) Memory() *fractalmemory.Memory {
	return a.memory
}

// Start launches the background slow path (consolidation + garbage
// collection ticks). Returns an error if it is already running.
func (a *Agent) Start() error {
	return a.scheduler.start()
}

// Stop halts the background slow path without closing owned components.
func (a *Agent) Stop() error {
	return a.scheduler.stop()
}

// Close stops the background slow path, closes the event bus connection,
// and releases the memory only if this Agent owns it.
func (a *Agent) Close() error {
	_ = a.scheduler.stop()
	a.events.close()
	if a.ownsMemory {
		return a.memory.Close()
	}
	return nil
}
