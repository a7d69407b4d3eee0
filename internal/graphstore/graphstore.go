package graphstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/metrics"
	"github.com/fractalcore/agentmem/internal/model"
)

const (
	nodeTypeEpisode = "episode"
	nodeTypeEntity  = "entity"
)

// hybridStore is the Graph Store Store implementation, composing a
// VectorIndex (durable persistence + cosine search), a KeywordIndex
// (BM25), and an in-process relGraph (traversal), per SPEC_FULL.md §4.2.
type hybridStore struct {
	vectors  VectorIndex
	keywords *KeywordIndex
	graph    *relGraph
	log      *logging.Logger
}

// NewStore composes a Store from an already-constructed VectorIndex (see
// NewVectorIndex for selecting Qdrant vs chromem).
func NewStore(vectors VectorIndex, log *logging.Logger) Store {
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	return &hybridStore{
		vectors:  vectors,
		keywords: NewKeywordIndex(),
		graph:    newRelGraph(),
		log:      log,
	}
}

func episodeToPayload(e model.Episode) map[string]any {
	deletedAt := ""
	if e.DeletedAt != nil {
		deletedAt = e.DeletedAt.Format(time.RFC3339)
	}
	return map[string]any{
		"node_type":        nodeTypeEpisode,
		"id":                e.ID,
		"content":           e.Content,
		"summary":           e.Summary,
		"source":            e.Source,
		"created_at":        e.CreatedAt.Format(time.RFC3339),
		"last_accessed_at":  e.LastAccessedAt.Format(time.RFC3339),
		"importance":        e.Importance,
		"access_count":      int64(e.AccessCount),
		"tier":              e.Tier.String(),
		"outcome":           string(e.Outcome),
		"deleted":           e.Deleted,
		"deleted_at":        deletedAt,
		"scale":             string(e.Scale),
		"content_hash":      e.ContentHash(),
	}
}

func payloadToEpisode(userID string, p map[string]any) model.Episode {
	ep := model.Episode{
		UserID:      userID,
		ID:          strField(p, "id"),
		Content:     strField(p, "content"),
		Summary:     strField(p, "summary"),
		Source:      strField(p, "source"),
		Importance:  floatField(p, "importance"),
		AccessCount: int(int64Field(p, "access_count")),
		Outcome:     model.Outcome(strField(p, "outcome")),
		Deleted:     boolField(p, "deleted"),
		Scale:       model.Scale(strField(p, "scale")),
	}
	ep.CreatedAt = timeField(p, "created_at")
	ep.LastAccessedAt = timeField(p, "last_accessed_at")
	ep.Tier = tierFromString(strField(p, "tier"))
	if deletedAt := strField(p, "deleted_at"); deletedAt != "" {
		if t, err := time.Parse(time.RFC3339, deletedAt); err == nil {
			ep.DeletedAt = &t
		}
	}
	return ep
}

func entityToPayload(e model.Entity) map[string]any {
	deletedAt := ""
	if e.DeletedAt != nil {
		deletedAt = e.DeletedAt.Format(time.RFC3339)
	}
	return map[string]any{
		"node_type":       nodeTypeEntity,
		"id":              e.ID,
		"name":            e.Name,
		"type":            e.Type,
		"importance":      e.Importance,
		"access_count":    int64(e.AccessCount),
		"created_at":      e.CreatedAt.Format(time.RFC3339),
		"last_accessed_at": e.LastAccessedAt.Format(time.RFC3339),
		"deleted":         e.Deleted,
		"deleted_at":      deletedAt,
	}
}

func strField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func timeField(m map[string]any, key string) time.Time {
	s := strField(m, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func tierFromString(s string) model.Tier {
	switch s {
	case "L1":
		return model.TierL1
	case "L2":
		return model.TierL2
	case "L3":
		return model.TierL3
	default:
		return model.TierL0
	}
}

func (s *hybridStore) UpsertEpisode(ctx context.Context, episode model.Episode, mentionedEntityIDs []string) error {
	payload := episodeToPayload(episode)
	if err := s.vectors.Upsert(ctx, episode.UserID, episode.ID, episode.Embedding, payload); err != nil {
		return fmt.Errorf("upsert episode %s: %w", episode.ID, err)
	}
	if err := s.keywords.Index(episode.UserID, episode.ID, episode.Content, episode.Summary); err != nil {
		s.log.Warn(ctx, "keyword index failed", zap.Error(err))
	}
	s.graph.rebuildFromEpisode(episode.UserID, episode, mentionedEntityIDs)
	for i := 0; i < len(mentionedEntityIDs); i++ {
		for j := i + 1; j < len(mentionedEntityIDs); j++ {
			s.graph.addRelation(episode.UserID, mentionedEntityIDs[i], mentionedEntityIDs[j])
		}
	}
	return nil
}

func (s *hybridStore) UpsertEntity(ctx context.Context, entity model.Entity) error {
	if err := s.vectors.Upsert(ctx, entity.UserID, entity.ID, entity.Embedding, entityToPayload(entity)); err != nil {
		return fmt.Errorf("upsert entity %s: %w", entity.ID, err)
	}
	return nil
}

func (s *hybridStore) SoftDelete(ctx context.Context, userID, nodeID string) error {
	payload, ok, err := s.vectors.Get(ctx, userID, nodeID)
	if err != nil {
		return fmt.Errorf("get node %s: %w", nodeID, err)
	}
	if !ok {
		return fmt.Errorf("%w: node %s", model.ErrNotFound, nodeID)
	}
	payload["deleted"] = true
	payload["deleted_at"] = time.Now().UTC().Format(time.RFC3339)
	if err := s.vectors.UpdatePayload(ctx, userID, nodeID, payload); err != nil {
		return fmt.Errorf("soft delete %s: %w", nodeID, err)
	}
	if strField(payload, "node_type") == nodeTypeEpisode {
		_ = s.keywords.Delete(userID, nodeID)
		s.graph.removeEpisode(userID, nodeID)
	}
	return nil
}

func (s *hybridStore) HardDeleteExpired(ctx context.Context, userID string, grace time.Duration, limit int) (int, error) {
	points, err := s.vectors.Scan(ctx, userID, map[string]any{"deleted": true})
	if err != nil {
		return 0, fmt.Errorf("scan deleted nodes: %w", err)
	}
	cutoff := time.Now().Add(-grace)
	var toDelete []string
	for _, p := range points {
		deletedAt := strField(p, "deleted_at")
		if deletedAt == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, deletedAt)
		if err != nil || !t.Before(cutoff) {
			continue
		}
		toDelete = append(toDelete, strField(p, "id"))
		if len(toDelete) >= limit {
			break
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	if err := s.vectors.Delete(ctx, userID, toDelete); err != nil {
		return 0, fmt.Errorf("hard delete: %w", err)
	}
	for _, id := range toDelete {
		s.graph.removeEpisode(userID, id)
		_ = s.keywords.Delete(userID, id)
	}
	return len(toDelete), nil
}

func (s *hybridStore) VectorSearch(ctx context.Context, userID string, queryEmbedding []float32, k int) ([]SearchHit, error) {
	results, err := s.vectors.Search(ctx, userID, queryEmbedding, k, map[string]any{"node_type": nodeTypeEpisode, "deleted": false})
	if err != nil {
		metrics.RetrieverArmFailures.WithLabelValues("vector").Inc()
		return nil, fmt.Errorf("vector search: %w", err)
	}
	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{EpisodeID: strField(r.Payload, "id"), Score: r.Score}
	}
	return hits, nil
}

func (s *hybridStore) KeywordSearch(ctx context.Context, userID, queryText string, k int) ([]SearchHit, error) {
	hits, err := s.keywords.Search(ctx, userID, queryText, k)
	if err != nil {
		metrics.RetrieverArmFailures.WithLabelValues("keyword").Inc()
		return nil, err
	}
	return hits, nil
}

func (s *hybridStore) GraphSearch(ctx context.Context, userID string, seedEntityIDs []string, k, maxHops int) ([]SearchHit, error) {
	hits, err := s.graph.search(ctx, userID, seedEntityIDs, k, maxHops)
	if err != nil {
		metrics.RetrieverArmFailures.WithLabelValues("graph").Inc()
		return nil, err
	}
	return hits, nil
}

func (s *hybridStore) ApplyDecay(ctx context.Context, userID string, halfLife time.Duration) error {
	points, err := s.vectors.Scan(ctx, userID, map[string]any{"node_type": nodeTypeEpisode, "deleted": false})
	if err != nil {
		return fmt.Errorf("scan for decay: %w", err)
	}
	now := time.Now()
	for _, p := range points {
		importance := floatField(p, "importance")
		lastAccessed := timeField(p, "last_accessed_at")
		if now.Sub(lastAccessed) < halfLife {
			continue
		}
		decayed := decayedImportance(importance, lastAccessed, now, halfLife)
		if decayed == importance {
			continue
		}
		p["importance"] = decayed
		if err := s.vectors.UpdatePayload(ctx, userID, strField(p, "id"), p); err != nil {
			return fmt.Errorf("apply decay to %s: %w", strField(p, "id"), err)
		}
	}
	return nil
}

func (s *hybridStore) ExistsDuplicate(ctx context.Context, userID, contentHash string) (bool, error) {
	points, err := s.vectors.Scan(ctx, userID, map[string]any{"node_type": nodeTypeEpisode, "content_hash": contentHash, "deleted": false})
	if err != nil {
		return false, fmt.Errorf("scan for dedup: %w", err)
	}
	return len(points) > 0, nil
}

func (s *hybridStore) GetEpisode(ctx context.Context, userID, episodeID string) (model.Episode, bool, error) {
	payload, ok, err := s.vectors.Get(ctx, userID, episodeID)
	if err != nil {
		return model.Episode{}, false, err
	}
	if !ok || strField(payload, "node_type") != nodeTypeEpisode {
		return model.Episode{}, false, nil
	}
	return payloadToEpisode(userID, payload), true, nil
}

func (s *hybridStore) ListEpisodes(ctx context.Context, userID string, tier *model.Tier) ([]model.Episode, error) {
	filter := map[string]any{"node_type": nodeTypeEpisode, "deleted": false}
	if tier != nil {
		filter["tier"] = tier.String()
	}
	points, err := s.vectors.Scan(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	episodes := make([]model.Episode, len(points))
	for i, p := range points {
		episodes[i] = payloadToEpisode(userID, p)
	}
	return episodes, nil
}

func (s *hybridStore) Connections(ctx context.Context, userID, episodeID string) ([]string, error) {
	return s.graph.entitiesForEpisode(userID, episodeID), nil
}

func (s *hybridStore) Close() error {
	return s.vectors.Close()
}

var _ Store = (*hybridStore)(nil)
