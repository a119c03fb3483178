package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myrag/myrag/internal/config"
	"github.com/myrag/myrag/internal/llm"
)

// Provider is the interface for embedding providers
type Provider interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one per input in order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider name
	Name() string
}

// OllamaProvider wraps Ollama client as embedding provider
type OllamaProvider struct {
	client *llm.Client
}

// NewOllamaProvider creates a new Ollama embedding provider
func NewOllamaProvider(cfg config.OllamaConfig, gen config.GenerationConfig) *OllamaProvider {
	return &OllamaProvider{
		client: llm.NewClient(cfg, gen),
	}
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := p.client.Embed(ctx, text)
	if err != nil {
		return nil, Wrap(p.Name(), err)
	}
	return v, nil
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := p.client.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, Wrap(p.Name(), err)
	}
	return v, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// NewProvider creates an embedding provider based on configuration.
// "auto" picks the offline feature provider when the vector store is the
// in-memory one, and Ollama otherwise.
func NewProvider(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Embedding.Provider
	if name == "auto" {
		name = "ollama"
		if cfg.Vector.Type == "memory" || (cfg.Vector.Type == "supabase" && cfg.Supabase.URL == "") {
			name = "features"
		}
	}

	switch name {
	case "ollama":
		return NewOllamaProvider(cfg.Ollama, cfg.Generation), nil
	case "openai":
		p, err := NewOpenAIProvider(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "features":
		logger.Warn("using offline feature embeddings, ranking is not semantic")
		return NewFeatureProvider(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}
