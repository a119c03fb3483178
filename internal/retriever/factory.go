package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myrag/myrag/internal/config"
	"github.com/myrag/myrag/internal/embedding"
)

// New creates the vector store selected by cfg.Vector.Type. A supabase
// backend without a URL falls back to the in-memory store.
func New(ctx context.Context, cfg *config.Config, provider embedding.Provider, logger *slog.Logger) (VectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Vector.Type
	if backend == "supabase" && cfg.Supabase.URL == "" {
		logger.Warn("supabase.url is not set, falling back to the memory store")
		backend = "memory"
	}

	switch backend {
	case "memory":
		return NewMemoryStore(provider, cfg.Vector.SnapshotPath, logger)
	case "supabase":
		return NewSupabaseStore(cfg.Supabase, provider, logger), nil
	case "qdrant":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewQdrantStore(cfg.Qdrant.Addr, cfg.Qdrant.Collection, provider, logger)
	default:
		return nil, fmt.Errorf("unknown vector store type: %s", cfg.Vector.Type)
	}
}
