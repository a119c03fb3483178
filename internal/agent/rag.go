package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrag/myrag/internal/config"
	"github.com/myrag/myrag/internal/embedding"
	"github.com/myrag/myrag/internal/indexer"
	"github.com/myrag/myrag/internal/llm"
	"github.com/myrag/myrag/internal/retriever"
)

// RAGAgent wires the query and ingest pipelines to one shared store
type RAGAgent struct {
	config *config.Config
	store  retriever.VectorStore
	query  *QueryPipeline
	ingest *IngestPipeline
	logger *slog.Logger
}

// NewRAGAgent builds the embedding provider, vector store, generator and
// both pipelines from configuration
func NewRAGAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*RAGAgent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chunker, err := indexer.NewChunker(cfg.Indexer.ChunkSize, cfg.Indexer.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	provider, err := embedding.NewProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	generator, err := llm.NewGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	store, err := retriever.New(ctx, cfg, provider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	fetcher := indexer.NewFetcher(cfg.Indexer.UserAgent, time.Duration(cfg.Indexer.FetchTimeout)*time.Second)

	logger.Info("rag agent ready",
		"backend", store.Name(),
		"embedding", provider.Name(),
		"model", generator.Model(),
	)

	return NewRAGAgentWith(cfg, provider, store, generator, fetcher, chunker, logger), nil
}

// NewRAGAgentWith assembles an agent from already constructed parts
func NewRAGAgentWith(cfg *config.Config, provider embedding.Provider, store retriever.VectorStore, generator llm.Generator, fetcher Fetcher, chunker *indexer.Chunker, logger *slog.Logger) *RAGAgent {
	if logger == nil {
		logger = slog.Default()
	}
	opts := QueryOptions{
		ContextChars: cfg.Retrieval.ContextChars,
		MaxTokens:    cfg.Generation.MaxTokens,
	}
	return &RAGAgent{
		config: cfg,
		store:  store,
		query:  NewQueryPipeline(provider, store, generator, opts, logger),
		ingest: NewIngestPipeline(fetcher, chunker, store, logger),
		logger: logger,
	}
}

// Query runs the query pipeline
func (a *RAGAgent) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	return a.query.Run(ctx, req)
}

// Ingest runs the ingest pipeline
func (a *RAGAgent) Ingest(ctx context.Context, urls []string, progress ProgressFunc) (*IngestResult, error) {
	return a.ingest.Run(ctx, urls, progress)
}

// Backend returns the active vector store name
func (a *RAGAgent) Backend() string {
	return a.store.Name()
}

// Close closes the agent and releases resources
func (a *RAGAgent) Close() error {
	return a.store.Close()
}
