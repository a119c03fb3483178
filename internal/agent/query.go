package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/myrag/myrag/internal/embedding"
	"github.com/myrag/myrag/internal/llm"
	"github.com/myrag/myrag/internal/retriever"
)

// NoResultsAnswer is returned instead of a generated answer when nothing matched
const NoResultsAnswer = "No relevant documents were found."

var tracer = otel.Tracer("github.com/myrag/myrag/internal/agent")

// Turn is one prior message of a conversation
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is a single retrieval request
type QueryRequest struct {
	Query         string
	TopK          int
	WithAnswer    bool
	ChatHistory   []Turn
	SourcesFilter []string
}

// QueryResponse carries the ranked results and, when requested, the answer
type QueryResponse struct {
	Answer    *string                  `json:"answer"`
	Results   []retriever.RankedResult `json:"results"`
	UsedModel string                   `json:"used_model"`
}

// QueryOptions configures the query pipeline
type QueryOptions struct {
	ContextChars int
	MaxTokens    int
}

// DefaultQueryOptions returns the defaults used by the HTTP API
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		ContextChars: DefaultContextChars,
		MaxTokens:    512,
	}
}

// QueryPipeline embeds a question, ranks stored chunks and optionally
// generates an answer grounded on them
type QueryPipeline struct {
	embedder  embedding.Provider
	store     retriever.VectorStore
	generator llm.Generator
	opts      QueryOptions
	logger    *slog.Logger
}

// NewQueryPipeline creates a query pipeline
func NewQueryPipeline(embedder embedding.Provider, store retriever.VectorStore, generator llm.Generator, opts QueryOptions, logger *slog.Logger) *QueryPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ContextChars <= 0 {
		opts.ContextChars = DefaultContextChars
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	return &QueryPipeline{
		embedder:  embedder,
		store:     store,
		generator: generator,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes the query
func (p *QueryPipeline) Run(ctx context.Context, req QueryRequest) (resp *QueryResponse, err error) {
	ctx, span := tracer.Start(ctx, "agent.Query", trace.WithAttributes(
		attribute.Int("query.top_k", req.TopK),
		attribute.Bool("query.with_answer", req.WithAnswer),
		attribute.String("store.backend", p.store.Name()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// 1. Embed the query.
	vector, err := p.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("agent: embed query: %w", embedding.Wrap(p.embedder.Name(), err))
	}

	// 2. Rank stored chunks.
	results, err := p.store.Match(ctx, vector, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("agent: match: %w", err)
	}
	p.logger.Info("query matched", "backend", p.store.Name(), "top_k", req.TopK, "results", len(results))

	// 3. Apply the source allow-list.
	if len(req.SourcesFilter) > 0 {
		results = filterSources(results, req.SourcesFilter)
	}
	if results == nil {
		results = []retriever.RankedResult{}
	}
	span.SetAttributes(attribute.Int("query.results", len(results)))

	resp = &QueryResponse{
		Results:   results,
		UsedModel: p.generator.Model(),
	}

	if !req.WithAnswer {
		return resp, nil
	}
	if len(results) == 0 {
		answer := NoResultsAnswer
		resp.Answer = &answer
		return resp, nil
	}

	// 4. Generate the answer from the assembled context.
	contextText, sources := AssembleContext(results, req.TopK, p.opts.ContextChars)
	messages := buildMessages(req, contextText, sources, p.opts.MaxTokens)

	text, err := p.generator.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("agent: generate: %w", err)
	}
	answer := strings.TrimSpace(text)
	resp.Answer = &answer

	return resp, nil
}

func buildMessages(req QueryRequest, contextText, sources string, maxTokens int) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	for _, turn := range req.ChatHistory {
		switch turn.Role {
		case llm.RoleUser, llm.RoleAssistant:
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
	}
	return append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: buildPrompt(req.Query, req.TopK, contextText, sources, maxTokens),
	})
}

func filterSources(results []retriever.RankedResult, allowed []string) []retriever.RankedResult {
	set := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		set[s] = struct{}{}
	}
	kept := make([]retriever.RankedResult, 0, len(results))
	for _, r := range results {
		if _, ok := set[r.Source()]; ok {
			kept = append(kept, r)
		}
	}
	return kept
}
