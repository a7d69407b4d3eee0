package graphstore

import "context"

// ScoredPoint is one hit from a VectorIndex search: an opaque point id,
// its similarity score, and its stored payload (the JSON-encoded
// Episode/Entity envelope plus graph side-fields).
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorIndex is the narrow persistence seam the Graph Store needs from a
// vector database: upsert/fetch/delete/search/scan of opaque points
// carrying a vector and a JSON-ish payload, scoped per user via a
// "user_id" payload field. Adapted from the teacher's
// internal/vectorstore.Store, stripped of its tenant/collection/WAL
// machinery (single-process daemon, one user at a time has no need for
// hierarchical collections or crash-recovery logs).
type VectorIndex interface {
	// Upsert creates or replaces the point identified by id.
	Upsert(ctx context.Context, userID, id string, vector []float32, payload map[string]any) error

	// Get fetches one point's payload by id. ok is false if absent.
	Get(ctx context.Context, userID, id string) (payload map[string]any, ok bool, err error)

	// Delete removes points by id.
	Delete(ctx context.Context, userID string, ids []string) error

	// UpdatePayload overwrites an existing point's payload without
	// touching its vector, for soft-delete and decay mutations.
	UpdatePayload(ctx context.Context, userID, id string, payload map[string]any) error

	// Search ranks points by cosine similarity to queryVector, restricted
	// to points matching filter (exact-match payload fields).
	Search(ctx context.Context, userID string, queryVector []float32, k int, filter map[string]any) ([]ScoredPoint, error)

	// Scan returns every point's payload matching filter, for listing,
	// decay, dedup, and hard-delete sweeps that need full scans rather
	// than similarity ranking.
	Scan(ctx context.Context, userID string, filter map[string]any) ([]map[string]any, error)

	// Close releases owned connections.
	Close() error
}

func matchesFilter(payload map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		if got, ok := payload[k]; !ok || got != want {
			return false
		}
	}
	return true
}
