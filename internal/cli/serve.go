package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/myrag/myrag/internal/agent"
	"github.com/myrag/myrag/internal/api"
	"github.com/myrag/myrag/internal/llm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ragAgent, err := agent.NewRAGAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ragAgent.Close()

	checkOllama(ctx)

	return api.NewServer(cfg, ragAgent, logger).Run(ctx)
}

// checkOllama warns early when the Ollama host the defaults point at is down
func checkOllama(ctx context.Context) {
	if cfg.Generation.Provider != "ollama" && cfg.Embedding.Provider != "ollama" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := llm.NewClient(cfg.Ollama, cfg.Generation).CheckHealth(ctx); err != nil {
		logger.Warn("ollama health check failed", "host", cfg.Ollama.Host, "err", err)
	}
}
