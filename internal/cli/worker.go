package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/myrag/myrag/internal/agent"
	"github.com/myrag/myrag/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume ingest requests from NATS",
	Long: `Start a worker that joins the ingest queue group on NATS and runs every
request through the ingest pipeline. Several workers share the load.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("myrag-worker"))
	if err != nil {
		return fmt.Errorf("failed to connect to nats %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()

	ragAgent, err := agent.NewRAGAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ragAgent.Close()

	w := worker.New(nc, ragAgent, cfg.NATS.IngestSubject, cfg.NATS.Queue, logger)
	if err := w.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return w.Stop()
}
