package agent

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/myrag/myrag/internal/indexer"
	"github.com/myrag/myrag/internal/retriever"
)

// ProgressFunc reports pipeline progress. Stages are "fetch" and "store".
type ProgressFunc func(stage string, current, total int)

// IngestResult summarizes one ingest call
type IngestResult struct {
	Inserted int               `json:"inserted"`
	Chunks   []retriever.Chunk `json:"-"`
	Skipped  []string          `json:"skipped"`
}

// Fetcher retrieves a page for a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*indexer.Page, error)
}

// IngestPipeline fetches URLs, extracts and chunks their text and stores
// every chunk in a single Add call
type IngestPipeline struct {
	fetcher Fetcher
	chunker *indexer.Chunker
	store   retriever.VectorStore
	logger  *slog.Logger
}

// NewIngestPipeline creates an ingest pipeline
func NewIngestPipeline(fetcher Fetcher, chunker *indexer.Chunker, store retriever.VectorStore, logger *slog.Logger) *IngestPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestPipeline{
		fetcher: fetcher,
		chunker: chunker,
		store:   store,
		logger:  logger,
	}
}

// Run ingests urls one at a time. URLs that cannot be fetched or extracted
// are logged and listed in Skipped; any other failure aborts the call.
func (p *IngestPipeline) Run(ctx context.Context, urls []string, progress ProgressFunc) (result *IngestResult, err error) {
	ctx, span := tracer.Start(ctx, "agent.Ingest", trace.WithAttributes(
		attribute.Int("ingest.urls", len(urls)),
		attribute.String("store.backend", p.store.Name()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if progress == nil {
		progress = func(string, int, int) {}
	}

	result = &IngestResult{Skipped: []string{}}
	var records []retriever.Record

	// Stage 1: fetch, extract and chunk
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress("fetch", i, len(urls))

		text, err := p.load(ctx, u)
		if err != nil {
			p.logger.Warn("skipping url", "url", u, "err", err)
			result.Skipped = append(result.Skipped, u)
			continue
		}

		chunks := p.chunker.Split(text)
		for _, c := range chunks {
			records = append(records, retriever.Record{
				Content:  c,
				Metadata: map[string]any{"source": u},
			})
		}
		p.logger.Info("url loaded", "url", u, "chunks", len(chunks))
	}
	progress("fetch", len(urls), len(urls))

	if len(records) == 0 {
		return result, nil
	}

	// Stage 2: embed and store
	progress("store", 0, len(records))
	stored, err := p.store.Add(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("agent: store chunks: %w", err)
	}
	progress("store", len(records), len(records))

	result.Inserted = len(stored)
	result.Chunks = stored
	span.SetAttributes(attribute.Int("ingest.inserted", result.Inserted))
	p.logger.Info("ingest complete", "inserted", result.Inserted, "skipped", len(result.Skipped))

	return result, nil
}

func (p *IngestPipeline) load(ctx context.Context, u string) (string, error) {
	page, err := p.fetcher.Fetch(ctx, u)
	if err != nil {
		return "", err
	}
	return indexer.ExtractText(page)
}
