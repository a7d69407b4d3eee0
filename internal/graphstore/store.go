// Package graphstore implements the Graph Store (L2/L3) of the memory
// core: durable episodes and entities, a hybrid vector/keyword/graph
// search surface, and the decay/soft-delete/hard-delete lifecycle, per
// SPEC_FULL.md §4.2. No example repo in the retrieval pack ships a
// Neo4j/Dgraph client, so persistence is grounded on the teacher's vector
// store abstraction (internal/vectorstore), generalized from "memories in
// a vector DB" to "episodes + entities + relations in a vector DB with a
// metadata-encoded graph".
package graphstore

import (
	"context"
	"errors"
	"time"

	"github.com/fractalcore/agentmem/internal/model"
)

// ErrPointNotFound is returned by a VectorIndex's UpdatePayload when the
// target id does not exist.
var ErrPointNotFound = errors.New("graphstore: point not found")

// SearchHit is one ranked result from a search arm: an episode id and the
// arm-local score (cosine similarity, BM25, or hop-decayed traversal
// weight — callers only need its rank, not cross-arm comparability).
type SearchHit struct {
	EpisodeID string
	Score     float64
}

// Store is the Graph Store contract: upsert_episode, upsert_entity,
// soft_delete, hard_delete_expired, vector_search, keyword_search,
// graph_search, apply_decay, exists_duplicate (spec.md §4.2), plus the
// read accessors the orchestrator and HTTP surface need for get_stats and
// GET /memory/{level}.
type Store interface {
	// UpsertEpisode creates or updates episode by identifier and records a
	// MENTIONS edge to each entity in mentionedEntityIDs.
	UpsertEpisode(ctx context.Context, episode model.Episode, mentionedEntityIDs []string) error

	// UpsertEntity creates or updates entity by identifier.
	UpsertEntity(ctx context.Context, entity model.Entity) error

	// SoftDelete sets deleted=true, deleted_at=now on the named node
	// (episode or entity).
	SoftDelete(ctx context.Context, userID, nodeID string) error

	// HardDeleteExpired physically removes nodes with deleted=true whose
	// deleted_at is older than grace, bounded to at most limit removals.
	// Returns the number of nodes removed.
	HardDeleteExpired(ctx context.Context, userID string, grace time.Duration, limit int) (int, error)

	// VectorSearch ranks live episodes by cosine similarity to
	// queryEmbedding.
	VectorSearch(ctx context.Context, userID string, queryEmbedding []float32, k int) ([]SearchHit, error)

	// KeywordSearch ranks live episodes by BM25 score over (content,
	// summary) for queryText.
	KeywordSearch(ctx context.Context, userID, queryText string, k int) ([]SearchHit, error)

	// GraphSearch ranks live episodes reachable from seedEntityIDs within
	// maxHops, decayed by hop distance, ties broken by recency.
	GraphSearch(ctx context.Context, userID string, seedEntityIDs []string, k, maxHops int) ([]SearchHit, error)

	// ApplyDecay multiplicatively decays the importance of live episodes
	// whose last-accessed time is at least halfLife in the past.
	ApplyDecay(ctx context.Context, userID string, halfLife time.Duration) error

	// ExistsDuplicate reports whether a live episode with contentHash
	// already exists for userID.
	ExistsDuplicate(ctx context.Context, userID, contentHash string) (bool, error)

	// GetEpisode fetches one episode by id, including deleted ones so
	// callers can distinguish not-found from soft-deleted.
	GetEpisode(ctx context.Context, userID, episodeID string) (model.Episode, bool, error)

	// ListEpisodes returns live episodes for userID, optionally filtered
	// to a single tier (nil means all tiers). Used by get_stats and the
	// GET /memory/{level} HTTP surface.
	ListEpisodes(ctx context.Context, userID string, tier *model.Tier) ([]model.Episode, error)

	// Connections returns the entity ids episodeID mentions, for the
	// GET /memory/{level} HTTP surface's "connections" field (spec.md §6.1).
	Connections(ctx context.Context, userID, episodeID string) ([]string, error)

	// Close releases owned connections.
	Close() error
}
