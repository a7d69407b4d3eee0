package reasoningbank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/graphstore/graphstoretest"
	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/reasoningbank"
)

func newTestBank(t *testing.T, cfg config.Config) *reasoningbank.Bank {
	t.Helper()
	graph := graphstore.NewStore(graphstoretest.New(), nil)
	return reasoningbank.New(graph, cfg, nil)
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.UserID = "u1"
	cfg.MinExperiencesForStrategy = 2
	cfg.ExperienceBufferSize = 4
	cfg.ExplorationRate = 0
	cfg.ConfidenceBoost = 0.05
	cfg.ConfidencePenalty = 0.10
	return cfg
}

func TestExtractStrategies_EmitsSuccessAndFailureSides(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	bank := newTestBank(t, cfg)

	actions := []struct {
		action  string
		outcome model.Outcome
	}{
		{"run the deploy script carefully", model.OutcomeSuccess},
		{"run the deploy script slowly", model.OutcomeSuccess},
		{"skip the deploy script checks", model.OutcomeFailure},
		{"skip the deploy script tests", model.OutcomeFailure},
	}
	for _, a := range actions {
		_, err := bank.LogExperience(ctx, "u1", "deploy service", "deployment", nil, a.action, a.outcome, "", "")
		require.NoError(t, err)
	}

	strategies, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 0, true)
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	var sawSuccess, sawFailure bool
	for _, s := range strategies {
		if s.AntiPattern {
			sawFailure = true
			assert.Equal(t, 0.1, s.Confidence)
		} else {
			sawSuccess = true
			assert.Greater(t, s.Confidence, 0.5)
		}
	}
	assert.True(t, sawSuccess)
	assert.True(t, sawFailure)
}

func TestStrategiesFor_ExcludesAntiPatternsByDefault(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	bank := newTestBank(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := bank.LogExperience(ctx, "u1", "deploy service", "deployment", nil, "skip the deploy checks entirely", model.OutcomeFailure, "", "")
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := bank.LogExperience(ctx, "u1", "deploy service", "deployment", nil, "run the deploy checks carefully", model.OutcomeSuccess, "", "")
		require.NoError(t, err)
	}

	withoutAnti, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 0, false)
	require.NoError(t, err)
	for _, s := range withoutAnti {
		assert.False(t, s.AntiPattern)
	}

	withAnti, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 0, true)
	require.NoError(t, err)
	assert.Greater(t, len(withAnti), len(withoutAnti))
}

func TestSelect_ReturnsHighestConfidenceWhenNotExploring(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.ExplorationRate = 0
	bank := newTestBank(t, cfg)

	for i := 0; i < 3; i++ {
		_, err := bank.LogExperience(ctx, "u1", "deploy service", "deployment", nil, "run the deploy checks carefully", model.OutcomeSuccess, "", "")
		require.NoError(t, err)
	}
	_, err := bank.ExtractStrategies(ctx, "u1")
	require.NoError(t, err)

	selected, ok, err := bank.Select(ctx, "deploy service", "deployment")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, selected.AntiPattern)
}

func TestSelect_NoCandidatesReturnsFalse(t *testing.T) {
	ctx := context.Background()
	bank := newTestBank(t, testConfig())

	_, ok, err := bank.Select(ctx, "nothing seen before", "unknown_type")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate_SuccessIncrementsConfidence(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	bank := newTestBank(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := bank.LogExperience(ctx, "u1", "deploy service", "deployment", nil, "run the deploy checks carefully", model.OutcomeSuccess, "", "")
		require.NoError(t, err)
	}
	_, err := bank.ExtractStrategies(ctx, "u1")
	require.NoError(t, err)
	strategies, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 1, false)
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	before := strategies[0].Confidence

	require.NoError(t, bank.Update(ctx, "u1", strategies[0].ID, model.OutcomeSuccess))

	after, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 1, false)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, 1, after[0].SuccessCount)
	assert.InDelta(t, before+cfg.ConfidenceBoost, after[0].Confidence, 1e-9)
}

func TestUpdate_CompoundingPenaltyAfterFiveFailures(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	// The anti-pattern starts at confidence 0.1; a small penalty keeps it
	// above the 0 floor through all six failures so both decrements show.
	cfg.ConfidencePenalty = 0.01
	bank := newTestBank(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := bank.LogExperience(ctx, "u1", "deploy service", "deployment", nil, "skip the deploy checks entirely", model.OutcomeFailure, "", "")
		require.NoError(t, err)
	}
	_, err := bank.ExtractStrategies(ctx, "u1")
	require.NoError(t, err)
	strategies, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 1, true)
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	id := strategies[0].ID

	for i := 0; i < 5; i++ {
		require.NoError(t, bank.Update(ctx, "u1", id, model.OutcomeFailure))
	}
	beforeCompounding, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 1, true)
	require.NoError(t, err)
	confBefore := beforeCompounding[0].Confidence

	require.NoError(t, bank.Update(ctx, "u1", id, model.OutcomeFailure))

	afterCompounding, err := bank.StrategiesFor(ctx, "deploy service", "deployment", 1, true)
	require.NoError(t, err)
	// A sixth failure (failure_count now 8 > 5: two seeded by extraction
	// plus six updates) applies two decrements.
	assert.InDelta(t, confBefore-2*cfg.ConfidencePenalty, afterCompounding[0].Confidence, 1e-9)
}

func TestAntiPatterns_ReturnsLowConfidenceStrategies(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	bank := newTestBank(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := bank.LogExperience(ctx, "u1", "deploy service", "deployment", nil, "skip the deploy checks entirely", model.OutcomeFailure, "", "")
		require.NoError(t, err)
	}
	_, err := bank.ExtractStrategies(ctx, "u1")
	require.NoError(t, err)

	flagged, err := bank.AntiPatterns(ctx, "deployment", 0)
	require.NoError(t, err)
	require.NotEmpty(t, flagged)
	assert.True(t, flagged[0].AntiPattern)
}
