package graphstore

import (
	"context"
	"fmt"

	"github.com/fractalcore/agentmem/internal/config"
	"github.com/fractalcore/agentmem/internal/logging"
)

// NewVectorIndex selects the VectorIndex backend from cfg, mirroring the
// teacher's vectorstore.NewStore factory: chromem-go embedded when
// graph_uri is empty or "embedded", Qdrant otherwise, in which case
// graph_uri must parse as host:port or an error is returned. This is the
// chromem-vs-qdrant Open Question resolution referenced in DESIGN.md —
// the port keeps the teacher's "chromem just works, Qdrant is opt-in for
// a real deployment" default.
func NewVectorIndex(ctx context.Context, cfg config.Config, log *logging.Logger) (VectorIndex, error) {
	switch {
	case cfg.GraphURI == "" || cfg.GraphURI == "embedded":
		return NewChromemIndex(ChromemConfig{Path: "./data/chromem"}, log)
	default:
		host, port, err := splitHostPort(cfg.GraphURI)
		if err != nil {
			return nil, fmt.Errorf("parse graph_uri %q: %w", cfg.GraphURI, err)
		}
		return NewQdrantIndex(ctx, QdrantConfig{
			Host:           host,
			Port:           port,
			CollectionName: "agentmem_memory",
			VectorSize:     cfg.EmbeddingDimensions,
		}, log)
	}
}
