// Package graphstoretest provides an in-process fake of
// graphstore.VectorIndex for tests of higher-level packages, mirroring the
// hand-rolled-fake-behind-the-interface pattern used throughout the
// teacher's own test helpers (see internal/volatile/volatiletest) instead
// of spinning up a real Qdrant instance.
package graphstoretest

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/fractalcore/agentmem/internal/graphstore"
)

type point struct {
	vector  []float32
	payload map[string]any
}

// VectorIndex is a goroutine-safe, memory-backed graphstore.VectorIndex.
type VectorIndex struct {
	mu     sync.Mutex
	points map[string]map[string]point // userID -> id -> point
}

// New returns an empty fake VectorIndex.
func New() *VectorIndex {
	return &VectorIndex{points: make(map[string]map[string]point)}
}

func clonePayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (f *VectorIndex) Upsert(_ context.Context, userID, id string, vector []float32, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points[userID] == nil {
		f.points[userID] = make(map[string]point)
	}
	f.points[userID][id] = point{vector: vector, payload: clonePayload(payload)}
	return nil
}

func (f *VectorIndex) Get(_ context.Context, userID, id string) (map[string]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[userID][id]
	if !ok {
		return nil, false, nil
	}
	return clonePayload(p.payload), true, nil
}

func (f *VectorIndex) Delete(_ context.Context, userID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.points[userID], id)
	}
	return nil
}

func (f *VectorIndex) UpdatePayload(_ context.Context, userID, id string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.points[userID][id]
	if !ok {
		return graphstore.ErrPointNotFound
	}
	p.payload = clonePayload(payload)
	f.points[userID][id] = p
	return nil
}

func matches(payload map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		if got, ok := payload[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func (f *VectorIndex) Search(_ context.Context, userID string, queryVector []float32, k int, filter map[string]any) ([]graphstore.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []graphstore.ScoredPoint
	for id, p := range f.points[userID] {
		if !matches(p.payload, filter) {
			continue
		}
		hits = append(hits, graphstore.ScoredPoint{ID: id, Score: cosine(queryVector, p.vector), Payload: clonePayload(p.payload)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *VectorIndex) Scan(_ context.Context, userID string, filter map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, p := range f.points[userID] {
		if matches(p.payload, filter) {
			out = append(out, clonePayload(p.payload))
		}
	}
	return out, nil
}

func (f *VectorIndex) Close() error { return nil }

var _ graphstore.VectorIndex = (*VectorIndex)(nil)
