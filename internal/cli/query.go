package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/myrag/myrag/internal/agent"
)

var (
	queryTopK     int
	queryNoAnswer bool
	querySources  []string
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Retrieve chunks and answer a question",
	Long: `Embed the question, rank stored chunks and, unless --no-answer is set,
generate an answer grounded on the best matches.

Examples:
  myrag query "what is a goroutine?"
  myrag query --top-k 10 --no-answer "channels"
  myrag query --source https://go.dev/doc/effective_go "interfaces"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default retrieval.top_k)")
	queryCmd.Flags().BoolVar(&queryNoAnswer, "no-answer", false, "only list matching chunks")
	queryCmd.Flags().StringArrayVar(&querySources, "source", nil, "only keep chunks from this source (repeatable)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	topK := cfg.Retrieval.TopK
	if cmd.Flags().Changed("top-k") {
		topK = queryTopK
	}
	if topK < 1 || topK > cfg.Retrieval.MaxTopK {
		return fmt.Errorf("--top-k must be between 1 and %d", cfg.Retrieval.MaxTopK)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ragAgent, err := agent.NewRAGAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ragAgent.Close()

	resp, err := ragAgent.Query(ctx, agent.QueryRequest{
		Query:         strings.Join(args, " "),
		TopK:          topK,
		WithAnswer:    !queryNoAnswer,
		SourcesFilter: querySources,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if resp.Answer != nil {
		fmt.Printf("%s\n\n", *resp.Answer)
	}

	fmt.Printf("Results (%d):\n", len(resp.Results))
	for i, r := range resp.Results {
		score := "n/a"
		if r.Similarity != nil {
			score = fmt.Sprintf("%.3f", *r.Similarity)
		}
		fmt.Printf("[%d] %s (similarity %s)\n", i+1, r.Source(), score)
		fmt.Printf("    %s\n", preview(r.Content, 160))
	}
	if resp.Answer != nil {
		fmt.Printf("\nModel: %s\n", resp.UsedModel)
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
