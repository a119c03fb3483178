package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nats-io/nats.go"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/myrag/myrag/internal/agent"
	"github.com/myrag/myrag/internal/worker"
)

var (
	ingestGlobs   []string
	ingestNATS    bool
	ingestTimeout time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [urls...]",
	Short: "Fetch, chunk and store documents",
	Long: `Fetch each URL, extract its visible text, split it into chunks and store
the chunks in the configured vector store. Local files can be added with
--glob; matches are ingested as file:// URLs.

Examples:
  myrag ingest https://example.com/a https://example.com/b
  myrag ingest --glob "docs/**/*.md" --glob "notes/*.txt"
  myrag ingest --nats https://example.com/a   # hand off to a worker`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringArrayVar(&ingestGlobs, "glob", nil, "glob pattern of local files to ingest (repeatable, supports **)")
	ingestCmd.Flags().BoolVar(&ingestNATS, "nats", false, "send the request to a NATS worker instead of ingesting locally")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "how long to wait for a worker reply")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := expandGlobs(ingestGlobs)
	if err != nil {
		return err
	}
	urls := append(append([]string{}, args...), files...)
	if len(urls) == 0 {
		return errors.New("nothing to ingest: pass urls or --glob patterns")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ingestNATS {
		return ingestRemote(ctx, urls)
	}

	ragAgent, err := agent.NewRAGAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ragAgent.Close()

	bar := progressbar.NewOptions(len(urls),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Fetching[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	res, err := ragAgent.Ingest(ctx, urls, func(stage string, current, total int) {
		switch stage {
		case "fetch":
			bar.Set(current)
		case "store":
			bar.Describe(fmt.Sprintf("[cyan]Embedding %d chunks[reset]", total))
		}
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	printIngest(res.Inserted, res.Skipped)
	return nil
}

func ingestRemote(ctx context.Context, urls []string) error {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("myrag-cli"))
	if err != nil {
		return fmt.Errorf("failed to connect to nats %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	fmt.Printf("Submitting %d urls to %s...\n", len(urls), cfg.NATS.IngestSubject)
	reply, err := worker.Submit(ctx, nc, cfg.NATS.IngestSubject, urls)
	if err != nil {
		return err
	}

	printIngest(reply.Inserted, reply.Skipped)
	return nil
}

func printIngest(inserted int, skipped []string) {
	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Chunks inserted: %d\n", inserted)
	fmt.Printf("  URLs skipped:    %d\n", len(skipped))
	for _, u := range skipped {
		fmt.Printf("  - %s\n", u)
	}
}

// expandGlobs resolves doublestar patterns to file:// URLs in match order
func expandGlobs(patterns []string) ([]string, error) {
	var urls []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, err
			}
			u := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls, nil
}
