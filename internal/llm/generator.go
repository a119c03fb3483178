package llm

import (
	"context"
	"fmt"

	"github.com/myrag/myrag/internal/config"
)

// Generator turns an ordered message list into answer text
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// NewGenerator creates the generator selected by generation.provider
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.Generation.Provider {
	case "ollama":
		return NewClient(cfg.Ollama, cfg.Generation), nil
	case "openai":
		return NewOpenAIClient(cfg.OpenAI, cfg.Generation)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", cfg.Generation.Provider)
	}
}
