package fractalmemory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLevel_L0ReturnsRememberedItems(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	m := newTestMemory(cfg)

	id, err := m.Remember(ctx, "the rocket launch was a success", 0.8, nil)
	require.NoError(t, err)

	items, err := m.ListLevel(ctx, "l0")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, "l0", items[0].Level)
	assert.Contains(t, items[0].Content, "rocket launch")
}

func TestListLevel_AllUnionsEveryTier(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	m := newTestMemory(cfg)

	_, err := m.Remember(ctx, "alpha", 0.9, nil)
	require.NoError(t, err)

	items, err := m.ListLevel(ctx, "all")
	require.NoError(t, err)
	assert.NotEmpty(t, items)
	for _, it := range items {
		assert.Contains(t, []string{"l0", "l1", "l2", "l3"}, it.Level)
	}
}

func TestListLevel_L2IncludesConnections(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.BatchSize = 1
	m := newTestMemory(cfg)

	_, err := m.Remember(ctx, "alpha beta gamma", 0.9, nil)
	require.NoError(t, err)
	_, err = m.Consolidate(ctx)
	require.NoError(t, err)

	items, err := m.ListLevel(ctx, "l2")
	require.NoError(t, err)
	for _, it := range items {
		assert.NotNil(t, it.Connections)
	}
}

func TestListLevel_UnknownLevelErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(testConfig())

	_, err := m.ListLevel(ctx, "l9")
	assert.Error(t, err)
}
