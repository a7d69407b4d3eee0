package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/fractalcore/agentmem/internal/logging"
)

// ChromemConfig configures the embedded fallback VectorIndex used when no
// external Qdrant endpoint is configured (spec.md's "runs with zero
// external dependencies" default posture, matching the teacher's own
// chromem-first factory default).
type ChromemConfig struct {
	Path     string
	Compress bool
}

// ChromemIndex is a VectorIndex backed by an embedded chromem-go
// database, one collection per user. chromem-go's query surface is
// text/embedding-oriented rather than scan-oriented, so ChromemIndex
// keeps a small in-memory id->payload index alongside the durable
// collection to serve Scan/Get without relying on an undocumented bulk
// iteration API.
type ChromemIndex struct {
	db  *chromem.DB
	log *logging.Logger

	mu         sync.RWMutex
	collection map[string]*chromem.Collection // userID -> collection
	cache      map[string]map[string]cachedPoint // userID -> id -> point
}

// cachedPoint mirrors what chromem-go itself holds for a point, kept
// locally because chromem-go exposes no bulk-scan API: ChromemIndex.Scan
// and Get are served from this side index instead.
type cachedPoint struct {
	payload map[string]any
	vector  []float32
}

// NewChromemIndex opens (or creates) a persistent chromem-go database at
// cfg.Path.
func NewChromemIndex(cfg ChromemConfig, log *logging.Logger) (*ChromemIndex, error) {
	if log == nil {
		log = logging.FromContext(context.Background())
	}
	path := cfg.Path
	if path == "" {
		path = "./data/chromem"
	}
	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemIndex{
		db:         db,
		log:        log,
		collection: make(map[string]*chromem.Collection),
		cache:      make(map[string]map[string]cachedPoint),
	}, nil
}

// noopEmbeddingFunc satisfies chromem.EmbeddingFunc for collections whose
// callers always supply a precomputed embedding (the graph store's
// episodes/entities are embedded upstream by internal/embedding).
func noopEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("chromem: no embedding function configured; callers must supply vectors")
}

func (c *ChromemIndex) collectionFor(userID string) (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collection[userID]; ok {
		return col, nil
	}
	col, err := c.db.GetOrCreateCollection("user_"+userID, nil, noopEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("get/create collection for %s: %w", userID, err)
	}
	c.collection[userID] = col
	if c.cache[userID] == nil {
		c.cache[userID] = make(map[string]cachedPoint)
	}
	return col, nil
}

func (c *ChromemIndex) Upsert(ctx context.Context, userID, id string, vector []float32, payload map[string]any) error {
	col, err := c.collectionFor(userID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	doc := chromem.Document{
		ID:        id,
		Content:   stringField(payload, "content"),
		Metadata:  map[string]string{"data": string(data), "node_type": stringField(payload, "node_type")},
		Embedding: vector,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem add document: %w", err)
	}
	c.mu.Lock()
	c.cache[userID][id] = cachedPoint{payload: payload, vector: vector}
	c.mu.Unlock()
	return nil
}

// UpdatePayload re-adds the point with its previously stored vector,
// since chromem-go has no partial-payload-update primitive.
func (c *ChromemIndex) UpdatePayload(ctx context.Context, userID, id string, payload map[string]any) error {
	c.mu.RLock()
	existing, ok := c.cache[userID][id]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("chromem: point %s for user %s: %w", id, userID, ErrPointNotFound)
	}
	return c.Upsert(ctx, userID, id, existing.vector, payload)
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func (c *ChromemIndex) Get(_ context.Context, userID, id string) (map[string]any, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	point, ok := c.cache[userID][id]
	return point.payload, ok, nil
}

func (c *ChromemIndex) Delete(ctx context.Context, userID string, ids []string) error {
	col, err := c.collectionFor(userID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if err := col.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("chromem delete %s: %w", id, err)
		}
		delete(c.cache[userID], id)
	}
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, userID string, queryVector []float32, k int, filter map[string]any) ([]ScoredPoint, error) {
	col, err := c.collectionFor(userID)
	if err != nil {
		return nil, err
	}
	where := make(map[string]string, len(filter))
	for key, v := range filter {
		if s, ok := v.(string); ok {
			where[key] = s
		}
	}
	n := k
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}
	results, err := col.QueryEmbedding(ctx, queryVector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]ScoredPoint, 0, len(results))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range results {
		point := c.cache[userID][r.ID]
		if !matchesFilter(point.payload, filter) {
			continue
		}
		hits = append(hits, ScoredPoint{ID: r.ID, Score: float64(r.Similarity), Payload: point.payload})
	}
	return hits, nil
}

func (c *ChromemIndex) Scan(_ context.Context, userID string, filter map[string]any) ([]map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]map[string]any, 0, len(c.cache[userID]))
	for _, point := range c.cache[userID] {
		if matchesFilter(point.payload, filter) {
			out = append(out, point.payload)
		}
	}
	return out, nil
}

func (c *ChromemIndex) Close() error { return nil }

var _ VectorIndex = (*ChromemIndex)(nil)
