package retrieval_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/graphstore/graphstoretest"
	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/retrieval"
)

func TestSearch_WithoutEmbedder_DegradesButReturnsOtherArms(t *testing.T) {
	ctx := context.Background()
	idx := graphstoretest.New()
	store := graphstore.NewStore(idx, nil)

	ep := model.Episode{ID: "ep1", UserID: "u1", Content: "python typing is great", CreatedAt: time.Now(), LastAccessedAt: time.Now()}
	require.NoError(t, store.UpsertEpisode(ctx, ep, nil))

	r := retrieval.New(store, nil, config.RetrievalWeights{Vector: 0.5, Keyword: 0.3, Graph: 0.2})
	res, err := r.Search(ctx, "u1", "python typing", 5)
	require.NoError(t, err)
	assert.True(t, res.Degraded, "vector arm is disabled without an embedder")
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "ep1", res.Hits[0].EpisodeID)
}

func TestSearch_GraphArmSeedsFromCapitalizedEntities(t *testing.T) {
	ctx := context.Background()
	idx := graphstoretest.New()
	store := graphstore.NewStore(idx, nil)

	ep := model.Episode{ID: "ep1", UserID: "u1", Content: "a note", CreatedAt: time.Now(), LastAccessedAt: time.Now()}
	entityID := model.EntityID("u1", "Python")
	require.NoError(t, store.UpsertEpisode(ctx, ep, []string{entityID}))

	r := retrieval.New(store, nil, config.RetrievalWeights{Vector: 0.5, Keyword: 0.3, Graph: 0.2})
	res, err := r.Search(ctx, "u1", "tell me about Python", 5)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "ep1", res.Hits[0].EpisodeID)
}
