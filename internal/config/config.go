package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Ollama     OllamaConfig     `mapstructure:"ollama"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generation GenerationConfig `mapstructure:"generation"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Supabase   SupabaseConfig   `mapstructure:"supabase"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Indexer    IndexerConfig    `mapstructure:"indexer"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host             string   `mapstructure:"host"`
	Port             int      `mapstructure:"port"`
	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	RateLimit        float64  `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst        int      `mapstructure:"rate_burst"`
}

// OllamaConfig holds Ollama-related configuration
type OllamaConfig struct {
	Host           string `mapstructure:"host"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Timeout        int    `mapstructure:"timeout"` // seconds
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // auto, ollama, openai, features
}

// GenerationConfig holds answer generation settings
type GenerationConfig struct {
	Provider    string  `mapstructure:"provider"` // ollama, openai
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// VectorConfig holds vector store configuration
type VectorConfig struct {
	Type         string `mapstructure:"type"`          // supabase, qdrant, memory
	SnapshotPath string `mapstructure:"snapshot_path"` // memory only, empty keeps it purely in-process
}

// SupabaseConfig holds the remote ranking service configuration
type SupabaseConfig struct {
	URL            string `mapstructure:"url"`
	AnonKey        string `mapstructure:"anon_key"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
	DocumentsTable string `mapstructure:"documents_table"`
	MatchRPC       string `mapstructure:"match_rpc"`
}

// QdrantConfig holds Qdrant gRPC configuration
type QdrantConfig struct {
	Addr       string `mapstructure:"addr"`
	Collection string `mapstructure:"collection"`
}

// IndexerConfig holds document fetching and chunking configuration
type IndexerConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	FetchTimeout int    `mapstructure:"fetch_timeout"` // seconds
	UserAgent    string `mapstructure:"user_agent"`
}

// RetrievalConfig holds query-time defaults
type RetrievalConfig struct {
	TopK         int `mapstructure:"top_k"`
	MaxTopK      int `mapstructure:"max_top_k"`
	ContextChars int `mapstructure:"context_chars"`
}

// NATSConfig holds NATS worker configuration
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	IngestSubject string `mapstructure:"ingest_subject"`
	Queue         string `mapstructure:"queue"`
}

// LoggingConfig holds slog handler settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			CORSAllowOrigins: []string{"http://127.0.0.1:5173", "http://localhost:5173"},
			RateLimit:        20,
			RateBurst:        40,
		},
		Ollama: OllamaConfig{
			Host:           "http://127.0.0.1:11434",
			ChatModel:      "llama3.2",
			EmbeddingModel: "nomic-embed-text",
			Timeout:        60,
		},
		OpenAI: OpenAIConfig{
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		Embedding: EmbeddingConfig{
			Provider: "auto",
		},
		Generation: GenerationConfig{
			Provider:    "ollama",
			Temperature: 0.1,
			MaxTokens:   512,
		},
		Vector: VectorConfig{
			Type: "supabase",
		},
		Supabase: SupabaseConfig{
			DocumentsTable: "documents",
			MatchRPC:       "match_documents",
		},
		Qdrant: QdrantConfig{
			Addr:       "localhost:6334",
			Collection: "myrag",
		},
		Indexer: IndexerConfig{
			ChunkSize:    1200,
			ChunkOverlap: 150,
			FetchTimeout: 30,
			UserAgent:    "MyRAG/1.0 (+https://example.com)",
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			MaxTopK:      50,
			ContextChars: 3500,
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			IngestSubject: "myrag.ingest",
			Queue:         "myrag-ingest",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// legacyEnv maps config keys to the unprefixed environment variables the
// first deployment used. The MYRAG_ prefixed form is always accepted too.
var legacyEnv = map[string]string{
	"server.cors_allow_origins": "CORS_ALLOW_ORIGINS",
	"ollama.host":               "OLLAMA_HOST",
	"ollama.chat_model":         "CHAT_MODEL",
	"ollama.embedding_model":    "EMBEDDINGS_MODEL",
	"openai.api_key":            "OPENAI_API_KEY",
	"openai.base_url":           "OPENAI_BASE_URL",
	"vector.type":               "VECTORSTORE_BACKEND",
	"supabase.url":              "SUPABASE_URL",
	"supabase.anon_key":         "SUPABASE_ANON_KEY",
	"supabase.service_role_key": "SUPABASE_SERVICE_ROLE_KEY",
	"supabase.documents_table":  "DOCUMENTS_TABLE",
	"supabase.match_rpc":        "MATCH_RPC",
	"qdrant.addr":               "QDRANT_ADDR",
	"qdrant.collection":         "QDRANT_COLLECTION",
	"indexer.chunk_size":        "CHUNK_SIZE",
	"indexer.chunk_overlap":     "CHUNK_OVERLAP",
	"nats.url":                  "NATS_URL",
}

// envKeys lists every key that can be set from the environment. viper only
// consults the environment for keys it has been told about.
var envKeys = []string{
	"server.host", "server.port", "server.cors_allow_origins", "server.rate_limit", "server.rate_burst",
	"ollama.host", "ollama.chat_model", "ollama.embedding_model", "ollama.timeout",
	"openai.api_key", "openai.base_url", "openai.chat_model", "openai.embedding_model",
	"embedding.provider",
	"generation.provider", "generation.temperature", "generation.max_tokens",
	"vector.type", "vector.snapshot_path",
	"supabase.url", "supabase.anon_key", "supabase.service_role_key", "supabase.documents_table", "supabase.match_rpc",
	"qdrant.addr", "qdrant.collection",
	"indexer.chunk_size", "indexer.chunk_overlap", "indexer.fetch_timeout", "indexer.user_agent",
	"retrieval.top_k", "retrieval.max_top_k", "retrieval.context_chars",
	"nats.url", "nats.ingest_subject", "nats.queue",
	"logging.level", "logging.format",
}

// Load loads configuration from .env, config file and environment
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in default locations
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".myrag"))
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variable overrides
	v.SetEnvPrefix("MYRAG")
	v.AutomaticEnv()

	for _, key := range envKeys {
		names := []string{key, "MYRAG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// CORS_ALLOW_ORIGINS arrives as a single comma separated string
	cfg.Server.CORSAllowOrigins = splitOrigins(cfg.Server.CORSAllowOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a request
func (c *Config) Validate() error {
	switch c.Vector.Type {
	case "memory", "supabase", "qdrant":
	default:
		return fmt.Errorf("config: unknown vector.type %q", c.Vector.Type)
	}
	switch c.Embedding.Provider {
	case "auto", "ollama", "openai", "features":
	default:
		return fmt.Errorf("config: unknown embedding.provider %q", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config: unknown generation.provider %q", c.Generation.Provider)
	}
	if c.Indexer.ChunkSize <= 0 {
		return errors.New("config: indexer.chunk_size must be greater than 0")
	}
	if c.Indexer.ChunkOverlap < 0 || c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		return errors.New("config: indexer.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Retrieval.MaxTopK <= 0 || c.Retrieval.TopK <= 0 || c.Retrieval.TopK > c.Retrieval.MaxTopK {
		return fmt.Errorf("config: retrieval.top_k must be in [1, %d]", c.Retrieval.MaxTopK)
	}
	if c.Retrieval.ContextChars <= 0 {
		return errors.New("config: retrieval.context_chars must be greater than 0")
	}
	return nil
}

func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
