package graphstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/model"
)

func TestRelGraph_SearchFindsDirectMentions(t *testing.T) {
	g := newRelGraph()
	now := time.Now()
	g.addMention("u1", "ep1", "entA", now)

	hits, err := g.search(context.Background(), "u1", []string{"entA"}, 10, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ep1", hits[0].EpisodeID)
	assert.Equal(t, 1.0, hits[0].Score)
}

func TestRelGraph_SearchTraversesRelatedEntities(t *testing.T) {
	g := newRelGraph()
	now := time.Now()
	g.addMention("u1", "ep-seed", "entA", now)
	g.addMention("u1", "ep-neighbor", "entB", now)
	g.addRelation("u1", "entA", "entB")

	hits, err := g.search(context.Background(), "u1", []string{"entA"}, 10, 1)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	byID := map[string]SearchHit{}
	for _, h := range hits {
		byID[h.EpisodeID] = h
	}
	require.Contains(t, byID, "ep-seed")
	require.Contains(t, byID, "ep-neighbor")
	assert.Greater(t, byID["ep-seed"].Score, byID["ep-neighbor"].Score, "direct mention scores higher than a 1-hop neighbor")
}

func TestRelGraph_SearchRespectsMaxHops(t *testing.T) {
	g := newRelGraph()
	now := time.Now()
	g.addMention("u1", "ep-far", "entC", now)
	g.addRelation("u1", "entA", "entB")
	g.addRelation("u1", "entB", "entC")

	hits, err := g.search(context.Background(), "u1", []string{"entA"}, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, hits, "entC is 2 hops from entA, beyond maxHops=1")
}

func TestRelGraph_SearchTruncatesToK(t *testing.T) {
	g := newRelGraph()
	now := time.Now()
	for i := 0; i < 5; i++ {
		g.addMention("u1", string(rune('a'+i)), "entA", now.Add(time.Duration(i)*time.Minute))
	}

	hits, err := g.search(context.Background(), "u1", []string{"entA"}, 2, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestRelGraph_RemoveEpisodeDropsItFromResults(t *testing.T) {
	g := newRelGraph()
	now := time.Now()
	g.addMention("u1", "ep1", "entA", now)
	g.removeEpisode("u1", "ep1")

	hits, err := g.search(context.Background(), "u1", []string{"entA"}, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRelGraph_RebuildFromEpisodeAddsMentions(t *testing.T) {
	g := newRelGraph()
	ep := model.Episode{ID: "ep1", CreatedAt: time.Now()}
	g.rebuildFromEpisode("u1", ep, []string{"entA", "entB"})

	hits, err := g.search(context.Background(), "u1", []string{"entA"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ep1", hits[0].EpisodeID)
}
