package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/credence-dev/credence/internal/pipeline"
)

var (
	analyzeText    string
	analyzeTitle   string
	analyzeSession string
	outShape       string
	outJSON        string
	analyzeTimeout time.Duration
	noCache        bool
	insecureTLS    bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [url]",
	Short: "Analyze the credibility of an article or raw text",
	Long: `Analyze runs one full credibility analysis:
- Fetch and parse the content (or take text directly with --text)
- Extract checkable claims and verify them against retrieved context
- Run the independent authenticity classifier
- Blend everything into a 0-100 trust score with a three-tier verdict

Example:
  credence analyze https://example.com/article
  credence analyze --text "Scientists announced today..." --title "Press release"
  credence analyze https://example.com/article --shape extension --json out.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Input flags
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "analyze raw text instead of a URL")
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "", "title for --text input")
	analyzeCmd.Flags().StringVar(&analyzeSession, "session", "", "session identifier recorded in the audit trail")

	// Output flags
	analyzeCmd.Flags().StringVar(&outShape, "shape", "web", "output shape (web, extension, flat)")
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "write the result to a file instead of stdout")

	// Behavior flags
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh analysis)")
	analyzeCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && analyzeText == "" {
		return fmt.Errorf("provide a URL argument or --text")
	}
	if len(args) == 1 && analyzeText != "" {
		return fmt.Errorf("provide a URL or --text, not both")
	}

	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Fetch.InsecureTLS = cfg.Fetch.InsecureTLS || insecureTLS
	if noCache {
		cfg.Cache.Enabled = false
	}

	logger := newLogger(false)
	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var out *pipeline.Outcome
	if analyzeText != "" {
		out, err = st.orchestrator.AnalyzeText(ctx, analyzeText, analyzeTitle, analyzeSession)
	} else {
		out, err = st.orchestrator.AnalyzeURL(ctx, args[0], analyzeSession)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Analyzed %d claims (%d verified, %d false)\n",
			out.Result.ClaimsAnalyzed, out.Result.ClaimsVerified, out.Result.ClaimsFalse)
		fmt.Fprintf(os.Stderr, "✓ Trust score: %d/100 (%s)\n", out.Result.Score, out.Result.Category)
		if out.Cached {
			fmt.Fprintf(os.Stderr, "✓ Served from a previous analysis\n")
		}
		fmt.Fprintln(os.Stderr)
	}

	return writeShape(out, outShape, outJSON)
}

// writeShape renders the outcome in the requested client shape, to a file
// when a path is given and stdout otherwise.
func writeShape(out *pipeline.Outcome, shape, path string) error {
	var payload any
	switch shape {
	case "web":
		payload = pipeline.FormatWeb(out)
	case "extension":
		payload = pipeline.FormatExtension(out)
	case "flat":
		payload = pipeline.FormatFlat(out)
	default:
		return fmt.Errorf("unknown shape %q (supported: web, extension, flat)", shape)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if path != "" {
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
		}
		return nil
	}

	fmt.Println(string(data))
	return nil
}
