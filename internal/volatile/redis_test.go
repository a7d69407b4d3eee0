package volatile

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalcore/agentmem/internal/model"
)

func TestKeySchemes_MatchWireShapes(t *testing.T) {
	assert.Equal(t, "memory:alice:l0", l0Key("alice"))
	assert.Equal(t, "memory:alice:l1:sess-1", l1Key("alice", "sess-1"))
	assert.Equal(t, "memory:alice:l1_sessions", l1SessionsKey("alice"))
	assert.Equal(t, "memory:alice:consolidated_set", consolidatedSetKey("alice"))
}

func TestEpisodeEnvelope_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	ep := model.Episode{
		ID:             "ep-1",
		UserID:         "alice",
		Content:        "the user prefers dark mode",
		Source:         model.SourceConversation,
		CreatedAt:      now,
		LastAccessedAt: now,
		Importance:     0.42,
		AccessCount:    2,
		Outcome:        model.OutcomeSuccess,
		Scale:          model.ScaleMicro,
		Metadata:       map[string]any{"session_id": "s1"},
	}

	data, err := json.Marshal(toEnvelope(ep))
	require.NoError(t, err)

	var env episodeEnvelope
	require.NoError(t, json.Unmarshal(data, &env))

	got := env.toEpisode()
	assert.Equal(t, ep.ID, got.ID)
	assert.Equal(t, ep.Content, got.Content)
	assert.Equal(t, ep.Importance, got.Importance)
	assert.Equal(t, model.TierL0, got.Tier)
	assert.Equal(t, ep.Metadata["session_id"], got.Metadata["session_id"])
}

func TestDecodeMessages_SkipsEntriesMissingDataField(t *testing.T) {
	msgs := []redis.XMessage{
		{ID: "1-1", Values: map[string]any{"data": `{"id":"a","content":"x"}`}},
		{ID: "1-2", Values: map[string]any{"other": "ignored"}},
	}

	episodes, err := decodeMessages(msgs)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "a", episodes[0].ID)
}

func TestRedisTransient_Classification(t *testing.T) {
	assert.False(t, redisTransient(nil))
	assert.False(t, redisTransient(redis.Nil))
	assert.False(t, redisTransient(context.Canceled))
	assert.True(t, redisTransient(&net.DNSError{IsTimeout: true}))
	assert.True(t, redisTransient(errors.New("connection refused")))
}
