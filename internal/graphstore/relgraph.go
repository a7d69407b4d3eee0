package graphstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fractalcore/agentmem/internal/model"
)

// relGraph is the in-process adjacency index for graph_search, holding the
// MENTIONS (episode->entity) and RELATES_TO (entity->entity) edges passed
// to UpsertEpisode. It is the only record of those edges: the point
// payload carries no mention or relation fields, so the edges are not
// persisted and an index rebuilt after a restart starts empty.
type relGraph struct {
	mu sync.RWMutex

	// entityNeighbors[userID][entityID] = set of adjacent entity ids
	// (RELATES_TO, undirected for traversal purposes).
	entityNeighbors map[string]map[string]map[string]struct{}

	// episodesByEntity[userID][entityID] = episode ids mentioning it.
	episodesByEntity map[string]map[string]map[string]struct{}

	// entitiesByEpisode[userID][episodeID] = entity ids it mentions, the
	// reverse index episodesByEntity doesn't give for free — needed by
	// Connections for the GET /memory/{level} HTTP surface.
	entitiesByEpisode map[string]map[string]map[string]struct{}

	// episodeRecency[userID][episodeID] = created_at, for tie-breaking.
	episodeRecency map[string]map[string]time.Time
}

func newRelGraph() *relGraph {
	return &relGraph{
		entityNeighbors:   make(map[string]map[string]map[string]struct{}),
		episodesByEntity:  make(map[string]map[string]map[string]struct{}),
		entitiesByEpisode: make(map[string]map[string]map[string]struct{}),
		episodeRecency:    make(map[string]map[string]time.Time),
	}
}

func (g *relGraph) addMention(userID, episodeID, entityID string, createdAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.episodesByEntity[userID] == nil {
		g.episodesByEntity[userID] = make(map[string]map[string]struct{})
	}
	if g.episodesByEntity[userID][entityID] == nil {
		g.episodesByEntity[userID][entityID] = make(map[string]struct{})
	}
	g.episodesByEntity[userID][entityID][episodeID] = struct{}{}

	if g.entitiesByEpisode[userID] == nil {
		g.entitiesByEpisode[userID] = make(map[string]map[string]struct{})
	}
	if g.entitiesByEpisode[userID][episodeID] == nil {
		g.entitiesByEpisode[userID][episodeID] = make(map[string]struct{})
	}
	g.entitiesByEpisode[userID][episodeID][entityID] = struct{}{}

	if g.episodeRecency[userID] == nil {
		g.episodeRecency[userID] = make(map[string]time.Time)
	}
	g.episodeRecency[userID][episodeID] = createdAt
}

func (g *relGraph) addRelation(userID, fromEntityID, toEntityID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link(userID, fromEntityID, toEntityID)
	g.link(userID, toEntityID, fromEntityID)
}

func (g *relGraph) link(userID, a, b string) {
	if g.entityNeighbors[userID] == nil {
		g.entityNeighbors[userID] = make(map[string]map[string]struct{})
	}
	if g.entityNeighbors[userID][a] == nil {
		g.entityNeighbors[userID][a] = make(map[string]struct{})
	}
	g.entityNeighbors[userID][a][b] = struct{}{}
}

func (g *relGraph) removeEpisode(userID, episodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, episodes := range g.episodesByEntity[userID] {
		delete(episodes, episodeID)
	}
	delete(g.entitiesByEpisode[userID], episodeID)
	delete(g.episodeRecency[userID], episodeID)
}

// entitiesForEpisode returns the entity ids episodeID mentions.
func (g *relGraph) entitiesForEpisode(userID, episodeID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entities := g.entitiesByEpisode[userID][episodeID]
	out := make([]string, 0, len(entities))
	for id := range entities {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// search performs a breadth-first traversal from seedEntityIDs up to
// maxHops, scoring each reached episode by 1/(1+hop) of its nearest
// discovering hop, then returns the top k, ties broken by recency.
func (g *relGraph) search(_ context.Context, userID string, seedEntityIDs []string, k, maxHops int) ([]SearchHit, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	type episodeScore struct {
		id    string
		score float64
	}

	bestHop := make(map[string]int)
	frontier := make(map[string]struct{}, len(seedEntityIDs))
	for _, e := range seedEntityIDs {
		frontier[e] = struct{}{}
	}
	visited := make(map[string]struct{})

	for hop := 0; hop <= maxHops && len(frontier) > 0; hop++ {
		next := make(map[string]struct{})
		for entityID := range frontier {
			if _, seen := visited[entityID]; seen {
				continue
			}
			visited[entityID] = struct{}{}

			for episodeID := range g.episodesByEntity[userID][entityID] {
				if existing, ok := bestHop[episodeID]; !ok || hop < existing {
					bestHop[episodeID] = hop
				}
			}
			for neighbor := range g.entityNeighbors[userID][entityID] {
				if _, seen := visited[neighbor]; !seen {
					next[neighbor] = struct{}{}
				}
			}
		}
		frontier = next
	}

	scored := make([]episodeScore, 0, len(bestHop))
	for episodeID, hop := range bestHop {
		scored = append(scored, episodeScore{id: episodeID, score: 1.0 / float64(1+hop)})
	}

	recency := g.episodeRecency[userID]
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		ti, tj := recency[scored[i].id], recency[scored[j].id]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return scored[i].id < scored[j].id
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	hits := make([]SearchHit, len(scored))
	for i, s := range scored {
		hits[i] = SearchHit{EpisodeID: s.id, Score: s.score}
	}
	return hits, nil
}

// rebuildFromEpisode adds the episode's MENTIONS edges into the graph.
// Called on every UpsertEpisode; the RELATES_TO edges between co-mentioned
// entities are added separately by UpsertEpisode itself.
func (g *relGraph) rebuildFromEpisode(userID string, episode model.Episode, mentionedEntityIDs []string) {
	for _, entityID := range mentionedEntityIDs {
		g.addMention(userID, episode.ID, entityID, episode.CreatedAt)
	}
}
