package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/agent"
	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/fractalmemory"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/graphstore/graphstoretest"
	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/reasoningbank"
	"github.com/fractalcore/agentmem/internal/retrieval"
	"github.com/fractalcore/agentmem/internal/volatile/volatiletest"
)

type stubCompletion struct {
	reply       string
	lastSystem  string
	lastMessage string
	calls       int
}

func (s *stubCompletion) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	s.calls++
	s.lastSystem = systemPrompt
	s.lastMessage = userMessage
	return s.reply, nil
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.UserID = "u1"
	cfg.GraphURI = "chromem://local"
	cfg.VolatileURL = "memory://local"
	cfg.L0Capacity = 100
	cfg.BatchSize = 50
	cfg.MinExperiencesForStrategy = 2
	cfg.ExperienceBufferSize = 2
	cfg.ExplorationRate = 0
	return cfg
}

func newTestAgent(t *testing.T, cfg config.Config, completion *stubCompletion) *agent.Agent {
	t.Helper()
	graph := graphstore.NewStore(graphstoretest.New(), nil)
	retriever := retrieval.New(graph, nil, cfg.RetrievalWeights)
	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile:  volatiletest.New(),
		Graph:     graph,
		Retriever: retriever,
	})
	bank := reasoningbank.New(graph, cfg, nil)

	a, err := agent.New(cfg, agent.Deps{
		Memory:     memory,
		Bank:       bank,
		Completion: completion,
	})
	require.NoError(t, err)
	return a
}

func TestChat_RemembersBothTurnsAndReturnsMetadata(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	completion := &stubCompletion{reply: "hello there"}
	a := newTestAgent(t, cfg, completion)

	result, err := a.Chat(ctx, "hi, how are you?")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, 1, completion.calls)
	assert.GreaterOrEqual(t, result.ProcessingTimeMS, int64(0))
}

func TestChat_ClassifiesTaskAndAttachesStrategyHints(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	completion := &stubCompletion{reply: "ok"}
	a := newTestAgent(t, cfg, completion)

	result, err := a.Chat(ctx, "please deploy the service to production")
	require.NoError(t, err)
	assert.NotNil(t, result)
	// No strategies exist yet for a brand-new bank, but the prompt must
	// still reflect task classification by at least attempting the lookup
	// without erroring.
	assert.GreaterOrEqual(t, len(result.StrategiesUsed), 0)
}

func TestNew_RequiresMemory(t *testing.T) {
	cfg := testConfig()
	_, err := agent.New(cfg, agent.Deps{Completion: &stubCompletion{}})
	assert.Error(t, err)
}

func TestNew_RequiresCompletion(t *testing.T) {
	cfg := testConfig()
	graph := graphstore.NewStore(graphstoretest.New(), nil)
	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile: volatiletest.New(),
		Graph:    graph,
	})
	_, err := agent.New(cfg, agent.Deps{Memory: memory})
	assert.Error(t, err)
}

func TestNew_BuildsDefaultBankFromGraph(t *testing.T) {
	cfg := testConfig()
	graph := graphstore.NewStore(graphstoretest.New(), nil)
	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile: volatiletest.New(),
		Graph:    graph,
	})
	a, err := agent.New(cfg, agent.Deps{
		Memory:     memory,
		Graph:      graph,
		Completion: &stubCompletion{reply: "ok"},
	})
	require.NoError(t, err)
	require.NotNil(t, a)
}

func TestNew_NoBankNoGraphErrors(t *testing.T) {
	cfg := testConfig()
	graph := graphstore.NewStore(graphstoretest.New(), nil)
	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile: volatiletest.New(),
		Graph:    graph,
	})
	_, err := agent.New(cfg, agent.Deps{
		Memory:     memory,
		Completion: &stubCompletion{reply: "ok"},
	})
	assert.Error(t, err)
}

func TestAgent_Close_ReleasesOnlyOwnedMemory(t *testing.T) {
	cfg := testConfig()
	graph := graphstore.NewStore(graphstoretest.New(), nil)
	volatileStore := volatiletest.New()
	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile: volatileStore,
		Graph:    graph,
	})
	a, err := agent.New(cfg, agent.Deps{
		Memory:     memory,
		OwnsMemory: false,
		Graph:      graph,
		Completion: &stubCompletion{reply: "ok"},
	})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// Since OwnsMemory is false, Close must not have released the
	// underlying adapters: GetStats should still work.
	_, err = memory.GetStats(context.Background())
	require.NoError(t, err)
}

func TestAgent_StartStop_Idempotent(t *testing.T) {
	cfg := testConfig()
	a := newTestAgent(t, cfg, &stubCompletion{reply: "ok"})

	require.NoError(t, a.Start())
	assert.Error(t, a.Start())
	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())
}

func TestChat_PromptIncludesStrategyHintAfterExtraction(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	graph := graphstore.NewStore(graphstoretest.New(), nil)
	volatileStore := volatiletest.New()
	retriever := retrieval.New(graph, nil, cfg.RetrievalWeights)
	memory := fractalmemory.New(cfg, fractalmemory.Deps{
		Volatile:  volatileStore,
		Graph:     graph,
		Retriever: retriever,
	})
	bank := reasoningbank.New(graph, cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := bank.LogExperience(ctx, cfg.UserID, "deploy service", "deployment", nil, "run the deploy checks carefully", model.OutcomeSuccess, "", "")
		require.NoError(t, err)
	}

	completion := &stubCompletion{reply: "ok"}
	a, err := agent.New(cfg, agent.Deps{
		Memory:     memory,
		Bank:       bank,
		Completion: completion,
	})
	require.NoError(t, err)

	result, err := a.Chat(ctx, "please deploy the service now")
	require.NoError(t, err)
	assert.True(t, strings.Contains(completion.lastSystem, "DO:") || strings.Contains(completion.lastSystem, "AVOID:"))
	require.Len(t, result.StrategiesUsed, 1)
	assert.Contains(t, result.StrategiesUsed[0], "deployment")
}
