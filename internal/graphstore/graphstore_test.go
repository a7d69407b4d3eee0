package graphstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/graphstore"
	"github.com/fractalcore/agentmem/internal/graphstore/graphstoretest"
	"github.com/fractalcore/agentmem/internal/model"
)

func newTestStore() graphstore.Store {
	return graphstore.NewStore(graphstoretest.New(), nil)
}

func TestUpsertAndGetEpisode_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ep := model.Episode{
		ID:             "ep1",
		UserID:         "u1",
		Content:        "met alice for coffee",
		Summary:        "coffee with alice",
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
		Importance:     0.6,
		Tier:           model.TierL2,
		Embedding:      []float32{1, 0, 0},
	}
	require.NoError(t, s.UpsertEpisode(ctx, ep, []string{"ent-alice"}))

	got, ok, err := s.GetEpisode(ctx, "u1", "ep1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "met alice for coffee", got.Content)
	assert.Equal(t, model.TierL2, got.Tier)
}

func TestVectorSearch_RanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	near := model.Episode{ID: "near", UserID: "u1", Content: "a", CreatedAt: time.Now(), LastAccessedAt: time.Now(), Embedding: []float32{1, 0, 0}}
	far := model.Episode{ID: "far", UserID: "u1", Content: "b", CreatedAt: time.Now(), LastAccessedAt: time.Now(), Embedding: []float32{0, 1, 0}}
	require.NoError(t, s.UpsertEpisode(ctx, near, nil))
	require.NoError(t, s.UpsertEpisode(ctx, far, nil))

	hits, err := s.VectorSearch(ctx, "u1", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "near", hits[0].EpisodeID)
}

func TestSoftDelete_ExcludesFromVectorSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ep := model.Episode{ID: "ep1", UserID: "u1", Content: "a", CreatedAt: time.Now(), LastAccessedAt: time.Now(), Embedding: []float32{1, 0, 0}}
	require.NoError(t, s.UpsertEpisode(ctx, ep, nil))
	require.NoError(t, s.SoftDelete(ctx, "u1", "ep1"))

	hits, err := s.VectorSearch(ctx, "u1", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	got, ok, err := s.GetEpisode(ctx, "u1", "ep1")
	require.NoError(t, err)
	require.True(t, ok, "soft-deleted episodes remain fetchable by id")
	assert.True(t, got.Deleted)
}

func TestHardDeleteExpired_OnlyRemovesPastGrace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ep := model.Episode{ID: "ep1", UserID: "u1", Content: "a", CreatedAt: time.Now(), LastAccessedAt: time.Now()}
	require.NoError(t, s.UpsertEpisode(ctx, ep, nil))
	require.NoError(t, s.SoftDelete(ctx, "u1", "ep1"))

	n, err := s.HardDeleteExpired(ctx, "u1", time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "grace period has not yet elapsed")

	n, err = s.HardDeleteExpired(ctx, "u1", -time.Second, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := s.GetEpisode(ctx, "u1", "ep1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsDuplicate_DetectsContentHashCollision(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ep := model.Episode{ID: "ep1", UserID: "u1", Content: "same content", CreatedAt: time.Now(), LastAccessedAt: time.Now()}
	require.NoError(t, s.UpsertEpisode(ctx, ep, nil))

	exists, err := s.ExistsDuplicate(ctx, "u1", ep.ContentHash())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsDuplicate(ctx, "u1", "not-a-real-hash")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestApplyDecay_ReducesImportanceOfStaleEpisodes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ep := model.Episode{
		ID: "ep1", UserID: "u1", Content: "a", Importance: 1.0,
		CreatedAt:      time.Now().Add(-48 * time.Hour),
		LastAccessedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, s.UpsertEpisode(ctx, ep, nil))
	require.NoError(t, s.ApplyDecay(ctx, "u1", 24*time.Hour))

	got, ok, err := s.GetEpisode(ctx, "u1", "ep1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, got.Importance, 1.0)
}

func TestGraphSearch_FindsEpisodesByMentionedEntity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ep := model.Episode{ID: "ep1", UserID: "u1", Content: "a", CreatedAt: time.Now(), LastAccessedAt: time.Now()}
	require.NoError(t, s.UpsertEpisode(ctx, ep, []string{"ent-bob"}))

	hits, err := s.GraphSearch(ctx, "u1", []string{"ent-bob"}, 5, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ep1", hits[0].EpisodeID)
}

func TestListEpisodes_FiltersByTier(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	l2 := model.Episode{ID: "ep-l2", UserID: "u1", Content: "a", Tier: model.TierL2, CreatedAt: time.Now(), LastAccessedAt: time.Now()}
	l3 := model.Episode{ID: "ep-l3", UserID: "u1", Content: "b", Tier: model.TierL3, CreatedAt: time.Now(), LastAccessedAt: time.Now()}
	require.NoError(t, s.UpsertEpisode(ctx, l2, nil))
	require.NoError(t, s.UpsertEpisode(ctx, l3, nil))

	tier := model.TierL2
	got, err := s.ListEpisodes(ctx, "u1", &tier)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ep-l2", got[0].ID)

	all, err := s.ListEpisodes(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
