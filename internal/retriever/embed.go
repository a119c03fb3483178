package retriever

import (
	"context"
	"fmt"

	"github.com/myrag/myrag/internal/embedding"
)

// embedRecords embeds every record's content; the result has one vector per record
func embedRecords(ctx context.Context, provider embedding.Provider, records []Record) ([][]float32, error) {
	vectors, err := provider.EmbedBatch(ctx, contents(records))
	if err != nil {
		return nil, embedding.Wrap(provider.Name(), err)
	}
	if len(vectors) != len(records) {
		return nil, embedding.Wrap(provider.Name(), fmt.Errorf("expected %d embeddings, got %d", len(records), len(vectors)))
	}
	return vectors, nil
}
