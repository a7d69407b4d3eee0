// Package embedding defines the embedder seam spec.md §3.1 calls for on
// Episode/Entity ("embedding, may be absent"), consumed by Fractal
// Memory's remember path and the Hybrid Retriever's vector arm.
package embedding

import "context"

// Embedder converts text into a fixed-dimension real vector.
type Embedder interface {
	// Embed returns texts' embeddings in the same order. Dimension must
	// match config.Config.EmbeddingDimensions.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
