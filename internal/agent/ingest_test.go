package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/myrag/myrag/internal/embedding"
	"github.com/myrag/myrag/internal/indexer"
	"github.com/myrag/myrag/internal/retriever"
)

const restText = "Python makes it easy to create REST APIs."

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><style>p{}</style><script>var x = 1;</script></head>
<body><p>Python makes it easy
   to create REST APIs.</p><noscript>enable js</noscript></body></html>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("one two three four five"))
	})
	mux.HandleFunc("/missing", http.NotFound)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func mustChunker(t *testing.T, size, overlap int) *indexer.Chunker {
	t.Helper()
	c, err := indexer.NewChunker(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestIngest_EndToEnd(t *testing.T) {
	site := newSite(t)
	provider := embedding.NewFeatureProvider()
	store, err := retriever.NewMemoryStore(provider, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	gen := &fakeGenerator{}
	fetcher := indexer.NewFetcher("MyRAG/1.0 (+https://example.com)", 5*time.Second)
	ingest := NewIngestPipeline(fetcher, mustChunker(t, 1200, 150), store, nil)
	query := NewQueryPipeline(provider, store, gen, DefaultQueryOptions(), nil)

	res, err := ingest.Run(context.Background(), []string{site.URL + "/rest"}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Inserted != 1 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected ingest result: %+v", res)
	}
	if res.Chunks[0].Content != restText {
		t.Fatalf("unexpected chunk %q", res.Chunks[0].Content)
	}

	resp, err := query.Run(context.Background(), QueryRequest{Query: "How do I build a REST API?", TopK: 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Content != restText {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
	if resp.Results[0].Source() != site.URL+"/rest" {
		t.Errorf("unexpected source %q", resp.Results[0].Source())
	}
	if resp.Answer != nil || gen.calls != 0 {
		t.Errorf("generator must not run when with_answer is false")
	}
}

func TestIngest_SkipsFailedURLs(t *testing.T) {
	site := newSite(t)
	store := &fakeStore{}
	fetcher := indexer.NewFetcher("test", 5*time.Second)
	p := NewIngestPipeline(fetcher, mustChunker(t, 3, 1), store, nil)

	var stages []string
	res, err := p.Run(context.Background(), []string{
		site.URL + "/missing",
		site.URL + "/plain",
		"ftp://nowhere/file",
	}, func(stage string, current, total int) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Skipped) != 2 || res.Skipped[0] != site.URL+"/missing" {
		t.Errorf("unexpected skipped: %v", res.Skipped)
	}
	// "one two three", "three four five", "five"
	if res.Inserted != 3 || len(store.added) != 3 {
		t.Fatalf("expected 3 chunks, got %d", res.Inserted)
	}
	if store.added[1].Content != "three four five" || store.added[1].Metadata["source"] != site.URL+"/plain" {
		t.Errorf("unexpected record: %+v", store.added[1])
	}
	if store.added[2].Content != "five" {
		t.Errorf("expected trailing window %q, got %q", "five", store.added[2].Content)
	}
	if stages[0] != "fetch" || stages[len(stages)-1] != "store" {
		t.Errorf("unexpected progress stages: %v", stages)
	}
}

func TestIngest_NothingToStore(t *testing.T) {
	site := newSite(t)
	store := &fakeStore{addErr: errors.New("must not be called")}
	p := NewIngestPipeline(indexer.NewFetcher("test", time.Second), mustChunker(t, 10, 0), store, nil)

	res, err := p.Run(context.Background(), []string{site.URL + "/missing"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Inserted != 0 || len(res.Skipped) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestIngest_StoreFailureAborts(t *testing.T) {
	site := newSite(t)
	storeErr := &retriever.StoreError{Backend: "fake", Op: "add", Status: 401, Message: "invalid key"}
	p := NewIngestPipeline(indexer.NewFetcher("test", time.Second), mustChunker(t, 10, 0), &fakeStore{addErr: storeErr}, nil)

	res, err := p.Run(context.Background(), []string{site.URL + "/plain"}, nil)
	if res != nil {
		t.Errorf("expected no result on failure, got %+v", res)
	}
	if !errors.Is(err, retriever.ErrStore) {
		t.Errorf("expected store error, got %v", err)
	}
}
