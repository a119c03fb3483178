package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/myrag/myrag/internal/config"
	"github.com/myrag/myrag/internal/embedding"
)

const (
	supabaseAddTimeout   = 120 * time.Second
	supabaseMatchTimeout = 60 * time.Second
)

// SupabaseStore implements VectorStore on a PostgREST table plus a
// similarity RPC. Ranking happens entirely on the server.
type SupabaseStore struct {
	baseURL    string
	table      string
	rpc        string
	writeKey   string
	readKey    string
	embedder   embedding.Provider
	httpClient *http.Client
	logger     *slog.Logger
}

type supabaseRow struct {
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

type supabaseInserted struct {
	ID       any            `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type supabaseMatch struct {
	ID         any            `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity *float64       `json:"similarity"`
}

// NewSupabaseStore creates a new Supabase backed vector store
func NewSupabaseStore(cfg config.SupabaseConfig, embedder embedding.Provider, logger *slog.Logger) *SupabaseStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		table:      cfg.DocumentsTable,
		rpc:        cfg.MatchRPC,
		writeKey:   firstNonEmpty(cfg.ServiceRoleKey, cfg.AnonKey),
		readKey:    firstNonEmpty(cfg.AnonKey, cfg.ServiceRoleKey),
		embedder:   embedder,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:     logger,
	}
}

// Add embeds the records and inserts them in one bulk request
func (s *SupabaseStore) Add(ctx context.Context, records []Record) ([]Chunk, error) {
	if len(records) == 0 {
		return nil, nil
	}

	vectors, err := embedRecords(ctx, s.embedder, records)
	if err != nil {
		return nil, err
	}

	rows := make([]supabaseRow, len(records))
	for i, r := range records {
		rows[i] = supabaseRow{
			Content:   r.Content,
			Metadata:  metadataOf(r),
			Embedding: vectors[i],
		}
	}

	ctx, cancel := context.WithTimeout(ctx, supabaseAddTimeout)
	defer cancel()

	var inserted []supabaseInserted
	url := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, s.table)
	if err := s.post(ctx, "add", url, s.writeKey, rows, &inserted); err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(inserted))
	for i, row := range inserted {
		chunks[i] = Chunk{
			ID:       idString(row.ID),
			Content:  row.Content,
			Metadata: row.Metadata,
		}
		if i < len(vectors) {
			chunks[i].Embedding = vectors[i]
		}
	}

	s.logger.Debug("supabase rows inserted", "table", s.table, "count", len(chunks))
	return chunks, nil
}

// Match calls the match RPC and returns its rows as ranked by the server
func (s *SupabaseStore) Match(ctx context.Context, query []float32, topK int) ([]RankedResult, error) {
	ctx, cancel := context.WithTimeout(ctx, supabaseMatchTimeout)
	defer cancel()

	payload := map[string]any{
		"query_embedding": query,
		"match_count":     topK,
	}

	var matches []supabaseMatch
	url := fmt.Sprintf("%s/rest/v1/rpc/%s", s.baseURL, s.rpc)
	if err := s.post(ctx, "match", url, s.readKey, payload, &matches); err != nil {
		return nil, err
	}

	results := make([]RankedResult, len(matches))
	for i, m := range matches {
		results[i] = RankedResult{
			ID:         idString(m.ID),
			Content:    m.Content,
			Metadata:   m.Metadata,
			Similarity: m.Similarity,
		}
	}
	return results, nil
}

func (s *SupabaseStore) Name() string {
	return "supabase"
}

// Close is a no-op; the store holds no connection state
func (s *SupabaseStore) Close() error {
	return nil
}

func (s *SupabaseStore) post(ctx context.Context, op, url, key string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &StoreError{Backend: s.Name(), Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return &StoreError{Backend: s.Name(), Op: op, Err: err}
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	if op == "add" {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &StoreError{Backend: s.Name(), Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StoreError{Backend: s.Name(), Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StoreError{
			Backend: s.Name(),
			Op:      op,
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(respBody)),
		}
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &StoreError{Backend: s.Name(), Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// idString renders the numeric or uuid ids PostgREST returns
func idString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
