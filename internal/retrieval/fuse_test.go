package retrieval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/graphstore"
)

var errArmFailed = errors.New("arm failed")

func TestFuse_CombinesScoresAcrossArms(t *testing.T) {
	arms := []armResult{
		{name: "vector", hits: []graphstore.SearchHit{{EpisodeID: "e1"}, {EpisodeID: "e2"}}},
		{name: "keyword", hits: []graphstore.SearchHit{{EpisodeID: "e1"}}},
	}
	weights := map[string]float64{"vector": 0.5, "keyword": 0.3, "graph": 0.2}

	hits := fuse(arms, weights, 60)
	require.NotEmpty(t, hits)
	assert.Equal(t, "e1", hits[0].EpisodeID, "e1 is ranked first in both contributing arms")
}

func TestFuse_IsPureAndDeterministic(t *testing.T) {
	arms := []armResult{
		{name: "vector", hits: []graphstore.SearchHit{{EpisodeID: "a"}, {EpisodeID: "b"}, {EpisodeID: "c"}}},
		{name: "graph", hits: []graphstore.SearchHit{{EpisodeID: "c"}, {EpisodeID: "a"}}},
	}
	weights := map[string]float64{"vector": 0.5, "keyword": 0.3, "graph": 0.2}

	first := fuse(arms, weights, 60)
	second := fuse(arms, weights, 60)
	assert.Equal(t, first, second)
}

func TestFuse_FailedArmContributesNothing(t *testing.T) {
	arms := []armResult{
		{name: "vector", err: errArmFailed},
		{name: "keyword", hits: []graphstore.SearchHit{{EpisodeID: "e1"}}},
	}
	weights := map[string]float64{"vector": 0.5, "keyword": 0.3, "graph": 0.2}

	hits := fuse(arms, weights, 60)
	require.NotEmpty(t, hits)
	assert.Equal(t, "e1", hits[0].EpisodeID)
}

func TestFuse_TiesBrokenByEpisodeID(t *testing.T) {
	arms := []armResult{
		{name: "vector", hits: []graphstore.SearchHit{{EpisodeID: "zzz"}}},
		{name: "keyword", hits: []graphstore.SearchHit{{EpisodeID: "aaa"}}},
	}
	weights := map[string]float64{"vector": 0.5, "keyword": 0.5}

	hits := fuse(arms, weights, 60)
	require.Len(t, hits, 2)
	assert.Equal(t, "aaa", hits[0].EpisodeID, "equal score ties break by lexicographically smaller id")
}
