package indexer

import (
	"strings"
)

// Chunker splits extracted text into overlapping token windows
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a new chunker, rejecting parameters Chunk would reject
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if err := validateWindow(chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Split chunks text with the chunker's window
func (c *Chunker) Split(text string) []string {
	return window(strings.Fields(text), c.chunkSize, c.chunkSize-c.chunkOverlap)
}

// Size returns the window size in tokens
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of tokens shared by consecutive windows
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Chunk splits text on whitespace and emits windows of chunkSize tokens,
// advancing chunkSize-overlap tokens each time. The trailing window may be
// shorter than chunkSize and is always kept.
func Chunk(text string, chunkSize, overlap int) ([]string, error) {
	if err := validateWindow(chunkSize, overlap); err != nil {
		return nil, err
	}
	return window(strings.Fields(text), chunkSize, chunkSize-overlap), nil
}

func validateWindow(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return &InvalidParameterError{Constraint: "chunk_size must be greater than 0"}
	}
	if overlap < 0 {
		return &InvalidParameterError{Constraint: "chunk_overlap must be non-negative"}
	}
	if overlap >= chunkSize {
		return &InvalidParameterError{Constraint: "chunk_overlap must be smaller than chunk_size"}
	}
	return nil
}

func window(tokens []string, size, step int) []string {
	var chunks []string
	for i := 0; i < len(tokens); i += step {
		end := i + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[i:end], " "))
	}
	return chunks
}
