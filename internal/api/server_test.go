package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/myrag/myrag/internal/agent"
	"github.com/myrag/myrag/internal/config"
	"github.com/myrag/myrag/internal/indexer"
	"github.com/myrag/myrag/internal/retriever"
)

type fakeService struct {
	lastQuery agent.QueryRequest
	queryResp *agent.QueryResponse
	queryErr  error
	lastURLs  []string
	ingestRes *agent.IngestResult
	ingestErr error
}

func (f *fakeService) Query(_ context.Context, req agent.QueryRequest) (*agent.QueryResponse, error) {
	f.lastQuery = req
	return f.queryResp, f.queryErr
}

func (f *fakeService) Ingest(_ context.Context, urls []string, _ agent.ProgressFunc) (*agent.IngestResult, error) {
	f.lastURLs = urls
	return f.ingestRes, f.ingestErr
}

func (f *fakeService) Backend() string { return "memory" }

func newTestServer(t *testing.T, svc Service, mutate func(*config.Config)) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.Server.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(cfg, svc, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil)
	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" || body["backend"] != "memory" || body["ollama"] != "http://127.0.0.1:11434" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestQuery_Defaults(t *testing.T) {
	answer := "Go is fast."
	sim := 0.9
	svc := &fakeService{queryResp: &agent.QueryResponse{
		Answer:    &answer,
		Results:   []retriever.RankedResult{{ID: "1", Content: "c", Metadata: map[string]any{"source": "s"}, Similarity: &sim}},
		UsedModel: "llama3.2",
	}}
	h := newTestServer(t, svc, nil)

	w := do(t, h, http.MethodPost, "/query", `{"query":"is go fast?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if svc.lastQuery.TopK != 5 || !svc.lastQuery.WithAnswer {
		t.Errorf("defaults not applied: %+v", svc.lastQuery)
	}
	body := decode(t, w)
	if body["answer"] != answer || body["used_model"] != "llama3.2" {
		t.Errorf("unexpected body: %v", body)
	}
	results := body["results"].([]any)
	if results[0].(map[string]any)["similarity"] != 0.9 {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestQuery_NullAnswer(t *testing.T) {
	svc := &fakeService{queryResp: &agent.QueryResponse{Results: []retriever.RankedResult{}, UsedModel: "m"}}
	h := newTestServer(t, svc, nil)

	w := do(t, h, http.MethodPost, "/query", `{"query":"q","top_k":3,"with_answer":false,"sources_filter":["a"],"chat_history":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"answer":null`)) {
		t.Errorf("expected null answer, got %s", w.Body.String())
	}
	q := svc.lastQuery
	if q.TopK != 3 || q.WithAnswer || len(q.SourcesFilter) != 1 || len(q.ChatHistory) != 1 {
		t.Errorf("request not forwarded: %+v", q)
	}
}

func TestQuery_Validation(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil)
	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{"top_k":3}`},
		{"top_k zero", `{"query":"q","top_k":0}`},
		{"top_k too large", `{"query":"q","top_k":51}`},
		{"bad json", `{"query":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/query", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if decode(t, w)["error"] == nil {
				t.Error("expected error field")
			}
		})
	}
}

func TestQuery_Failure(t *testing.T) {
	svc := &fakeService{queryErr: &retriever.StoreError{Backend: "supabase", Op: "match", Status: 500, Message: "db down"}}
	h := newTestServer(t, svc, nil)
	w := do(t, h, http.MethodPost, "/query", `{"query":"q"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	msg, _ := decode(t, w)["error"].(string)
	if !strings.HasPrefix(msg, "Query failed: ") || !strings.Contains(msg, "db down") {
		t.Errorf("unexpected error message %q", msg)
	}
}

func TestIngest(t *testing.T) {
	svc := &fakeService{ingestRes: &agent.IngestResult{Inserted: 4, Skipped: []string{"https://bad"}}}
	h := newTestServer(t, svc, nil)

	w := do(t, h, http.MethodPost, "/ingest", `{"urls":["https://good","https://bad"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["inserted"] != float64(4) || len(body["skipped"].([]any)) != 1 {
		t.Errorf("unexpected body: %v", body)
	}
	if len(svc.lastURLs) != 2 {
		t.Errorf("urls not forwarded: %v", svc.lastURLs)
	}
}

func TestIngest_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"empty urls", `{"urls":[]}`, nil, http.StatusBadRequest},
		{"missing urls", `{}`, nil, http.StatusBadRequest},
		{"invalid parameter", `{"urls":["u"]}`, &indexer.InvalidParameterError{Constraint: "chunk_size must be greater than 0"}, http.StatusBadRequest},
		{"store failure", `{"urls":["u"]}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeService{ingestErr: tt.err}, nil)
			w := do(t, h, http.MethodPost, "/ingest", tt.body)
			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.err != nil {
				msg, _ := decode(t, w)["error"].(string)
				if !strings.HasPrefix(msg, "Ingest failed: ") {
					t.Errorf("unexpected message %q", msg)
				}
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeService{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("unexpected allow origin %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin must not be allowed")
	}

	open := newTestServer(t, &fakeService{}, func(c *config.Config) { c.Server.CORSAllowOrigins = nil })
	w = do(t, open, http.MethodGet, "/health", "")
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("empty allow list should allow any origin")
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, &fakeService{}, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 2
	})
	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, h, http.MethodGet, "/health", "").Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}
}
