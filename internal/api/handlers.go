package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/myrag/myrag/internal/agent"
	"github.com/myrag/myrag/internal/indexer"
)

// IngestRequest represents an ingest request
type IngestRequest struct {
	URLs []string `json:"urls" binding:"required,min=1"`
}

// QueryRequest represents a query request. Pointers distinguish an absent
// field from its zero value so defaults can apply.
type QueryRequest struct {
	Query         string       `json:"query" binding:"required"`
	TopK          *int         `json:"top_k"`
	WithAnswer    *bool        `json:"with_answer"`
	ChatHistory   []agent.Turn `json:"chat_history"`
	SourcesFilter []string     `json:"sources_filter"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"ollama":  s.config.Ollama.Host,
		"backend": s.service.Backend(),
	})
}

// handleIngest fetches, chunks and stores the given URLs
func (s *Server) handleIngest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.service.Ingest(c.Request.Context(), req.URLs, nil)
	if err != nil {
		s.fail(c, "Ingest failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inserted": res.Inserted,
		"skipped":  res.Skipped,
	})
}

// handleQuery retrieves ranked chunks and optionally an answer
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topK := s.config.Retrieval.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 || topK > s.config.Retrieval.MaxTopK {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("top_k must be between 1 and %d", s.config.Retrieval.MaxTopK)})
		return
	}
	withAnswer := true
	if req.WithAnswer != nil {
		withAnswer = *req.WithAnswer
	}

	resp, err := s.service.Query(c.Request.Context(), agent.QueryRequest{
		Query:         req.Query,
		TopK:          topK,
		WithAnswer:    withAnswer,
		ChatHistory:   req.ChatHistory,
		SourcesFilter: req.SourcesFilter,
	})
	if err != nil {
		s.fail(c, "Query failed", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) fail(c *gin.Context, prefix string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, indexer.ErrInvalidParameter) {
		status = http.StatusBadRequest
	}
	s.logger.Error(prefix, "path", c.Request.URL.Path, "err", err)
	c.JSON(status, gin.H{"error": fmt.Sprintf("%s: %v", prefix, err)})
}
