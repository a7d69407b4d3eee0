package volatile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/metrics"
	"github.com/fractalcore/agentmem/internal/model"
	"github.com/fractalcore/agentmem/internal/retry"
)

// releaseScript is the classic Redlock single-node compare-and-delete:
// only the holder presenting the token that is still current may release.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// episodeEnvelope is the JSON wire shape of an Episode inside a Redis
// Stream entry's "data" field.
type episodeEnvelope struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Content        string         `json:"content"`
	Summary        string         `json:"summary,omitempty"`
	Source         string         `json:"source"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	Importance     float64        `json:"importance"`
	AccessCount    int            `json:"access_count"`
	Outcome        model.Outcome  `json:"outcome,omitempty"`
	Scale          model.Scale    `json:"scale,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func toEnvelope(e model.Episode) episodeEnvelope {
	return episodeEnvelope{
		ID:             e.ID,
		UserID:         e.UserID,
		Content:        e.Content,
		Summary:        e.Summary,
		Source:         e.Source,
		CreatedAt:      e.CreatedAt,
		LastAccessedAt: e.LastAccessedAt,
		Importance:     e.Importance,
		AccessCount:    e.AccessCount,
		Outcome:        e.Outcome,
		Scale:          e.Scale,
		Metadata:       e.Metadata,
	}
}

func (env episodeEnvelope) toEpisode() model.Episode {
	return model.Episode{
		ID:             env.ID,
		UserID:         env.UserID,
		Content:        env.Content,
		Summary:        env.Summary,
		Source:         env.Source,
		CreatedAt:      env.CreatedAt,
		LastAccessedAt: env.LastAccessedAt,
		Importance:     env.Importance,
		AccessCount:    env.AccessCount,
		Tier:           model.TierL0,
		Outcome:        env.Outcome,
		Scale:          env.Scale,
		Metadata:       env.Metadata,
	}
}

// l1Envelope is the JSON wire shape of an L1Record's Extra field, keeping
// arbitrary caller-supplied fields verbatim across a write/read round trip.
type l1Envelope struct {
	SessionID   string         `json:"session_id"`
	Summary     string         `json:"summary"`
	Importance  float64        `json:"importance"`
	SourceCount int            `json:"source_count"`
	CreatedAt   time.Time      `json:"created_at"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// RedisStore is the Redis-backed Volatile Store, grounded on
// necyber-goclaw's pkg/lane.RedisLane wiring style: a key-prefix scheme
// per user, a redis.Cmdable so either *redis.Client or *redis.ClusterClient
// satisfies it, and every call going through the shared retry policy.
type RedisStore struct {
	client redis.Cmdable
	policy retry.Policy
	log    *logging.Logger
}

// NewRedisStore wraps an existing redis.Cmdable (so callers choose
// *redis.Client vs *redis.ClusterClient) with the Volatile Store contract.
func NewRedisStore(client redis.Cmdable, log *logging.Logger) *RedisStore {
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	return &RedisStore{client: client, policy: retry.DefaultPolicy(), log: log}
}

func (s *RedisStore) do(ctx context.Context, op func() error) error {
	err := retry.Do(ctx, s.policy, redisTransient, op)
	if err != nil && redisTransient(err) {
		metrics.StoreUnavailable.WithLabelValues("volatile").Inc()
		return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	return err
}

func redisTransient(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	return retry.NetworkTransient(err)
}

func l0Key(userID string) string              { return "memory:" + userID + ":l0" }
func l1Key(userID, sessionID string) string   { return "memory:" + userID + ":l1:" + sessionID }
func l1SessionsKey(userID string) string      { return "memory:" + userID + ":l1_sessions" }
func consolidatedSetKey(userID string) string { return "memory:" + userID + ":consolidated_set" }

// L0Append appends episode as a Redis Stream entry and trims the stream to
// capacity, dropping the oldest entries first (invariant: cap <= 10000,
// per-user ordering preserved).
func (s *RedisStore) L0Append(ctx context.Context, userID string, episode model.Episode, capacity int) error {
	data, err := json.Marshal(toEnvelope(episode))
	if err != nil {
		return fmt.Errorf("marshal episode: %w", err)
	}
	key := l0Key(userID)
	return s.do(ctx, func() error {
		if err := s.client.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			Values: map[string]any{"data": string(data)},
		}).Err(); err != nil {
			return err
		}
		before, err := s.client.XLen(ctx, key).Result()
		if err != nil {
			return err
		}
		if err := s.client.XTrimMaxLen(ctx, key, int64(capacity)).Err(); err != nil {
			return err
		}
		if before > int64(capacity) {
			metrics.L0Dropped.Add(float64(before - int64(capacity)))
		}
		return nil
	})
}

// L0Read returns up to n episodes, newest first, without mutating the log.
func (s *RedisStore) L0Read(ctx context.Context, userID string, n int) ([]model.Episode, error) {
	var msgs []redis.XMessage
	err := s.do(ctx, func() error {
		var err error
		msgs, err = s.client.XRevRangeN(ctx, l0Key(userID), "+", "-", int64(n)).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeMessages(msgs)
}

// L0RangePop atomically removes and returns the oldest k episodes. Callers
// consolidating a user's log are expected to hold the user's consolidation
// lock, which is the operation's true mutual-exclusion boundary; the
// XRANGE+XDEL pair here runs under that external lock rather than a Lua
// script, matching how the rest of the store favors small, composable
// Redis calls over embedded scripting except where compare-and-swap
// correctness demands it (the release lock below).
func (s *RedisStore) L0RangePop(ctx context.Context, userID string, k int) ([]model.Episode, error) {
	key := l0Key(userID)
	var msgs []redis.XMessage
	err := s.do(ctx, func() error {
		var err error
		msgs, err = s.client.XRangeN(ctx, key, "-", "+", int64(k)).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	if err := s.do(ctx, func() error {
		return s.client.XDel(ctx, key, ids...).Err()
	}); err != nil {
		return nil, err
	}
	episodes, err := decodeMessages(msgs)
	if err != nil {
		return nil, err
	}
	episodeIDs := make([]any, 0, len(episodes))
	for _, e := range episodes {
		episodeIDs = append(episodeIDs, e.ID)
	}
	if len(episodeIDs) > 0 {
		if err := s.client.SAdd(ctx, consolidatedSetKey(userID), episodeIDs...).Err(); err != nil {
			s.log.Warn(ctx, "consolidated_set update failed", zap.Error(err))
		}
	}
	return episodes, nil
}

func decodeMessages(msgs []redis.XMessage) ([]model.Episode, error) {
	episodes := make([]model.Episode, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var env episodeEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return nil, fmt.Errorf("unmarshal L0 entry %s: %w", m.ID, err)
		}
		episodes = append(episodes, env.toEpisode())
	}
	return episodes, nil
}

// L1Put upserts record as a Redis Hash, tracking its session id in the
// user's l1_sessions set (Redis has no "list hashes by prefix" primitive).
func (s *RedisStore) L1Put(ctx context.Context, userID string, record L1Record) error {
	env := l1Envelope{
		SessionID:   record.SessionID,
		Summary:     record.Summary,
		Importance:  record.Importance,
		SourceCount: record.SourceCount,
		CreatedAt:   record.CreatedAt,
		Extra:       record.Extra,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal L1 record: %w", err)
	}
	return s.do(ctx, func() error {
		if err := s.client.HSet(ctx, l1Key(userID, record.SessionID), "data", string(data)).Err(); err != nil {
			return err
		}
		return s.client.SAdd(ctx, l1SessionsKey(userID), record.SessionID).Err()
	})
}

// L1List returns up to limit L1 records, newest first.
func (s *RedisStore) L1List(ctx context.Context, userID string, limit int) ([]L1Record, error) {
	var sessionIDs []string
	if err := s.do(ctx, func() error {
		var err error
		sessionIDs, err = s.client.SMembers(ctx, l1SessionsKey(userID)).Result()
		return err
	}); err != nil {
		return nil, err
	}

	records := make([]L1Record, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		var raw string
		err := s.do(ctx, func() error {
			var err error
			raw, err = s.client.HGet(ctx, l1Key(userID, sessionID), "data").Result()
			return err
		})
		if errors.Is(err, redis.Nil) {
			// Session tracked but hash expired or never written; drop it
			// from the index lazily.
			_ = s.client.SRem(ctx, l1SessionsKey(userID), sessionID).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		var env l1Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return nil, fmt.Errorf("unmarshal L1 record %s: %w", sessionID, err)
		}
		records = append(records, L1Record{
			SessionID:   env.SessionID,
			Summary:     env.Summary,
			Importance:  env.Importance,
			SourceCount: env.SourceCount,
			CreatedAt:   env.CreatedAt,
			Extra:       env.Extra,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// L1Delete removes the session's L1 record and its index entry.
func (s *RedisStore) L1Delete(ctx context.Context, userID, sessionID string) error {
	return s.do(ctx, func() error {
		if err := s.client.Del(ctx, l1Key(userID, sessionID)).Err(); err != nil {
			return err
		}
		return s.client.SRem(ctx, l1SessionsKey(userID), sessionID).Err()
	})
}

// LockAcquire implements the classic single-node Redlock primitive: SET
// NX PX, returning a fresh token as the lock holder's proof of ownership.
func (s *RedisStore) LockAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	var ok bool
	err := s.do(ctx, func() error {
		var err error
		ok, err = s.client.SetNX(ctx, key, token, ttl).Result()
		return err
	})
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// LockRelease releases key only if token is still the current holder, via
// a compare-and-delete Lua script to avoid releasing a lock acquired by a
// different holder after this one's TTL expired.
func (s *RedisStore) LockRelease(ctx context.Context, key, token string) (bool, error) {
	var result int64
	err := s.do(ctx, func() error {
		v, err := releaseScript.Run(ctx, s.client, []string{key}, token).Int64()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// Close is a no-op: RedisStore does not own the lifecycle of the
// redis.Cmdable it was constructed with (the caller manages the client).
func (s *RedisStore) Close() error { return nil }

var _ Store = (*RedisStore)(nil)
