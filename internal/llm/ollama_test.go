package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/myrag/myrag/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.OllamaConfig{
		Host:           srv.URL,
		ChatModel:      "llama3.2",
		EmbeddingModel: "nomic-embed-text",
		Timeout:        5,
	}, config.GenerationConfig{Temperature: 0.1})
}

func TestChat(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{Message: Message{Role: RoleAssistant, Content: "  hi  "}, Done: true})
	})

	out, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "  hi  " {
		t.Errorf("unexpected content %q", out)
	}
	if got.Model != "llama3.2" || got.Stream || len(got.Messages) != 2 {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Options == nil || got.Options.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %+v", got.Options)
	}
	if c.Model() != "llama3.2" {
		t.Errorf("unexpected model %q", c.Model())
	}
}

func TestChat_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := c.Chat(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestEmbedBatch(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req EmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		calls++
		json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float32{float32(len(req.Prompt)), 1}})
	})

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 || len(vecs) != 2 || vecs[1][0] != 3 {
		t.Errorf("unexpected result %v after %d calls", vecs, calls)
	}
}

func TestEmbed_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[]}`))
	})
	if _, err := c.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestCheckHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	})
	if err := c.CheckHealth(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewGenerator(t *testing.T) {
	cfg := config.DefaultConfig()
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := g.(*Client); !ok {
		t.Errorf("expected *Client, got %T", g)
	}

	cfg.Generation.Provider = "openai"
	if _, err := NewGenerator(cfg); err == nil {
		t.Error("expected error without an api key")
	}

	cfg.OpenAI.APIKey = "sk-test"
	g, err = NewGenerator(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Model() != cfg.OpenAI.ChatModel {
		t.Errorf("unexpected model %q", g.Model())
	}
}

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", ChatModel: "gpt-4o-mini"}, config.GenerationConfig{MaxTokens: 512})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected ok, got %q", out)
	}
}
