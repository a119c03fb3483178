package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.ChunkSize != 1200 || cfg.Indexer.ChunkOverlap != 150 {
		t.Errorf("unexpected chunk defaults: %+v", cfg.Indexer)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.MaxTopK != 50 || cfg.Retrieval.ContextChars != 3500 {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Supabase.DocumentsTable != "documents" || cfg.Supabase.MatchRPC != "match_documents" {
		t.Errorf("unexpected supabase defaults: %+v", cfg.Supabase)
	}
	if cfg.Generation.MaxTokens != 512 {
		t.Errorf("unexpected max tokens %d", cfg.Generation.MaxTokens)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "myrag.yaml")
	content := `
vector:
  type: memory
  snapshot_path: /tmp/myrag.db
indexer:
  chunk_size: 400
  chunk_overlap: 40
server:
  cors_allow_origins: ["http://one", "http://two"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vector.Type != "memory" || cfg.Vector.SnapshotPath != "/tmp/myrag.db" {
		t.Errorf("unexpected vector config: %+v", cfg.Vector)
	}
	if cfg.Indexer.ChunkSize != 400 || cfg.Indexer.ChunkOverlap != 40 {
		t.Errorf("unexpected indexer config: %+v", cfg.Indexer)
	}
	if len(cfg.Server.CORSAllowOrigins) != 2 || cfg.Server.CORSAllowOrigins[1] != "http://two" {
		t.Errorf("unexpected origins: %v", cfg.Server.CORSAllowOrigins)
	}
	// untouched keys keep their defaults
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected default top_k, got %d", cfg.Retrieval.TopK)
	}
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CHUNK_SIZE", "300")
	t.Setenv("MYRAG_INDEXER_CHUNK_OVERLAP", "30")
	t.Setenv("MYRAG_RETRIEVAL_TOP_K", "7")
	t.Setenv("VECTORSTORE_BACKEND", "qdrant")
	t.Setenv("SUPABASE_URL", "https://db.example")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a, http://b")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.ChunkSize != 300 || cfg.Indexer.ChunkOverlap != 30 {
		t.Errorf("env chunk params not applied: %+v", cfg.Indexer)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("prefixed env not applied: %d", cfg.Retrieval.TopK)
	}
	if cfg.Vector.Type != "qdrant" || cfg.Supabase.URL != "https://db.example" {
		t.Errorf("legacy env not applied: %+v %+v", cfg.Vector, cfg.Supabase)
	}
	if strings.Join(cfg.Server.CORSAllowOrigins, "|") != "http://a|http://b" {
		t.Errorf("unexpected origins: %q", cfg.Server.CORSAllowOrigins)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MYRAG_QDRANT_COLLECTION=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MYRAG_QDRANT_COLLECTION") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Qdrant.Collection != "from-dotenv" {
		t.Errorf("expected .env value, got %q", cfg.Qdrant.Collection)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Vector.Type = "faiss" }},
		{"embedding provider", func(c *Config) { c.Embedding.Provider = "bert" }},
		{"generation provider", func(c *Config) { c.Generation.Provider = "claude" }},
		{"chunk size", func(c *Config) { c.Indexer.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Indexer.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *Config) { c.Indexer.ChunkOverlap = c.Indexer.ChunkSize }},
		{"top_k above max", func(c *Config) { c.Retrieval.TopK = 51 }},
		{"context chars", func(c *Config) { c.Retrieval.ContextChars = 0 }},
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
