package retriever

import (
	"context"
	"errors"
	"fmt"
)

// Record is a piece of content waiting to be embedded and stored
type Record struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Chunk is a stored record with its assigned id and embedding
type Chunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// RankedResult is one hit of a Match call. Similarity is nil when the
// ranking backend does not report one.
type RankedResult struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity *float64       `json:"similarity"`
}

// Source returns the result's "source" metadata value, or "" when unset
func (r RankedResult) Source() string {
	s, _ := r.Metadata["source"].(string)
	return s
}

// VectorStore is the interface for vector storage backends
type VectorStore interface {
	// Add embeds the records and stores them. Either every record is stored
	// and returned with its id, or none is and an error is returned.
	Add(ctx context.Context, records []Record) ([]Chunk, error)

	// Match returns at most topK stored chunks ordered by descending similarity
	Match(ctx context.Context, query []float32, topK int) ([]RankedResult, error)

	// Name identifies the backend in logs and health output
	Name() string

	// Close releases the backend's resources
	Close() error
}

// ErrStore marks a failure reported by a storage backend.
var ErrStore = errors.New("vector store failed")

// StoreError carries the backend's status and message. Status is the HTTP
// status for REST backends and the gRPC code for gRPC backends.
type StoreError struct {
	Backend string
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s %s: status %d: %s", e.Backend, e.Op, ErrStore, e.Status, msg)
	}
	return fmt.Sprintf("%s %s %s: %s", e.Backend, e.Op, ErrStore, msg)
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStore}
	}
	return []error{ErrStore, e.Err}
}

func contents(records []Record) []string {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Content
	}
	return texts
}

func metadataOf(r Record) map[string]any {
	if r.Metadata == nil {
		return map[string]any{}
	}
	return r.Metadata
}
