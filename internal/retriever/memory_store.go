package retriever

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/myrag/myrag/internal/embedding"
)

// MemoryStore is an in-memory vector store ranking by exact cosine similarity
type MemoryStore struct {
	mu       sync.RWMutex
	chunks   []Chunk
	embedder embedding.Provider
	snap     *snapshot
	logger   *slog.Logger
}

// NewMemoryStore creates a new in-memory vector store. When snapshotPath is
// set, committed chunks are also written to a bbolt file and read back here.
func NewMemoryStore(embedder embedding.Provider, snapshotPath string, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &MemoryStore{
		embedder: embedder,
		logger:   logger,
	}

	if snapshotPath != "" {
		snap, err := openSnapshot(snapshotPath)
		if err != nil {
			return nil, &StoreError{Backend: store.Name(), Op: "open", Err: err}
		}
		chunks, err := snap.load()
		if err != nil {
			snap.close()
			return nil, &StoreError{Backend: store.Name(), Op: "open", Err: err}
		}
		store.snap = snap
		store.chunks = chunks
		logger.Info("memory store restored", "path", snapshotPath, "chunks", len(chunks))
	}

	return store, nil
}

// Add embeds the records and appends them. Embedding runs before the lock
// is taken, so a failure leaves the collection untouched.
func (m *MemoryStore) Add(ctx context.Context, records []Record) ([]Chunk, error) {
	if len(records) == 0 {
		return nil, nil
	}

	vectors, err := embedRecords(ctx, m.embedder, records)
	if err != nil {
		return nil, err
	}

	added := make([]Chunk, len(records))
	for i, r := range records {
		added[i] = Chunk{
			ID:        uuid.NewString(),
			Content:   r.Content,
			Metadata:  maps.Clone(metadataOf(r)),
			Embedding: vectors[i],
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap != nil {
		if err := m.snap.append(added); err != nil {
			return nil, &StoreError{Backend: m.Name(), Op: "add", Err: err}
		}
	}
	m.chunks = append(m.chunks, added...)

	return added, nil
}

// Match ranks every stored chunk against query. Ties keep insertion order.
func (m *MemoryStore) Match(_ context.Context, query []float32, topK int) ([]RankedResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 || len(m.chunks) == 0 {
		return []RankedResult{}, nil
	}

	type scoredChunk struct {
		idx   int
		score float64
	}

	scored := make([]scoredChunk, len(m.chunks))
	for i := range m.chunks {
		scored[i] = scoredChunk{idx: i, score: CosineSimilarity(query, m.chunks[i].Embedding)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if topK > len(scored) {
		topK = len(scored)
	}

	results := make([]RankedResult, topK)
	for i := 0; i < topK; i++ {
		c := m.chunks[scored[i].idx]
		sim := scored[i].score
		results[i] = RankedResult{
			ID:         c.ID,
			Content:    c.Content,
			Metadata:   maps.Clone(c.Metadata),
			Similarity: &sim,
		}
	}

	return results, nil
}

// Reset removes every chunk. Only tests call this.
func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = nil
	if m.snap != nil {
		if err := m.snap.clear(); err != nil {
			return &StoreError{Backend: m.Name(), Op: "reset", Err: err}
		}
	}
	return nil
}

// Count returns the number of stored chunks
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *MemoryStore) Name() string {
	return "memory"
}

// Close closes the snapshot file, if any
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil
	}
	err := m.snap.close()
	m.snap = nil
	return err
}
