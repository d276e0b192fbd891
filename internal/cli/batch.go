package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/credence-dev/credence/internal/worker"
)

var (
	batchFeed    string
	feedLimit    int
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Analyze multiple URLs from a file or feed in parallel",
	Long: `Batch analyzes many URLs concurrently:
- Read URLs from an input file (one per line, # comments allowed)
  or from an RSS/Atom feed
- Process URLs in parallel with a configurable worker count
- Write one JSON result per URL into the output directory

Example:
  credence batch urls.txt
  credence batch urls.txt --concurrency 8 --output-dir ./results
  credence batch --feed https://news.example.com/rss --limit 20`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Input flags
	batchCmd.Flags().StringVar(&batchFeed, "feed", "", "RSS/Atom feed URL to read article links from")
	batchCmd.Flags().IntVar(&feedLimit, "limit", 0, "max feed items to analyze (0 = all)")

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./credence-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")

	// Shared behavior flags (also on analyze)
	batchCmd.Flags().StringVar(&outShape, "shape", "web", "output shape (web, extension, flat)")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh analysis)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && batchFeed == "" {
		return fmt.Errorf("provide a URL file argument or --feed")
	}
	if len(args) == 1 && batchFeed != "" {
		return fmt.Errorf("provide a file or --feed, not both")
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	logger := newLogger(false)
	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	source := batchFeed
	if source == "" {
		source = args[0]
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Credence Batch Analysis\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", source)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(st.orchestrator, concurrency)

	var results []*worker.BatchResult
	if batchFeed != "" {
		fmt.Fprintf(os.Stderr, "⚙️  Reading feed...\n")
		results, err = processor.ProcessFeed(ctx, batchFeed, feedLimit)
		if err != nil {
			return fmt.Errorf("process feed: %w", err)
		}
	} else {
		fmt.Fprintf(os.Stderr, "⚙️  Reading URLs from file...\n")
		results, err = processor.ProcessFile(ctx, args[0])
		if err != nil {
			return fmt.Errorf("process file: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "✓ Processed %d URLs\n", len(results))
	fmt.Fprintf(os.Stderr, "\n")

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.URL, result.Err)
			continue
		}

		// One file per result, keyed by the content fingerprint
		path := filepath.Join(outputDir, result.Outcome.Result.URLHash+".json")
		if err := writeShape(result.Outcome, outShape, path); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.URL, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (score: %d/100, %s)\n",
			result.URL, result.Outcome.Result.Score, result.Outcome.Result.Category)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d URLs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
