package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/report"
)

var (
	outJSON    string
	outMD      string
	inputFile  string
	inputHTML  bool
	runTimeout time.Duration

	query     string
	response  string
	documents []string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [text|-]",
	Short: "Check every sentence of a text against the knowledge source",
	Long: `Verify splits text into sentence claims and checks each one:
- Look up evidence for the claim in the knowledge source
- Score the claim against the evidence
- Label it consistent, inconsistent or no_evidence

Text is read from the argument, from --file, or from stdin when the
argument is "-" or missing.

Example:
  veracity verify "The Eiffel Tower is in Berlin."
  veracity verify --file answer.txt --json report.json --md report.md
  cat page.html | veracity verify --html -
  veracity verify --preset wiki-es-embed-entities "La Tierra es plana."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one response against the evidence for a query",
	Long: `Check looks up evidence for the query (or the response itself when no
query is given) and scores the whole response against it.

With --document, the response is scored against the given documents
instead and the best-supporting document wins.

Example:
  veracity check --query "Blue whale" --response "The blue whale is a fish."
  veracity check --response "Paris is in France." --document "Paris is the capital of France."`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(checkCmd)

	for _, cmd := range []*cobra.Command{verifyCmd, checkCmd} {
		cmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
		cmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
		cmd.Flags().DurationVar(&runTimeout, "run-timeout", 5*time.Minute, "overall run timeout")
	}

	verifyCmd.Flags().StringVarP(&inputFile, "file", "f", "", "read text from file")
	verifyCmd.Flags().BoolVar(&inputHTML, "html", false, "input is HTML; check its visible text")

	checkCmd.Flags().StringVarP(&query, "query", "q", "", "query to look up (defaults to the response)")
	checkCmd.Flags().StringVarP(&response, "response", "r", "", "response to check")
	checkCmd.Flags().StringArrayVarP(&documents, "document", "d", nil, "evidence document (repeatable)")
	_ = checkCmd.MarkFlagRequired("response")
}

func runVerify(cmd *cobra.Command, args []string) error {
	text, err := readText(args, inputFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	return execute(cmd, pipeline.Request{Mode: model.ModePerClaim, Text: text, HTML: inputHTML})
}

func runCheck(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(response) == "" {
		return fmt.Errorf("--response must not be empty")
	}
	return execute(cmd, pipeline.Request{
		Mode:      model.ModeQueryResponse,
		Query:     query,
		Text:      response,
		Documents: documents,
	})
}

// execute runs one request and renders whatever report it produced, partial included
func execute(cmd *cobra.Command, req pipeline.Request) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if outJSON != "" {
		cfg.Output.JSONPath = outJSON
	}
	if outMD != "" {
		cfg.Output.MDPath = outMD
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	orch, err := pipeline.FromConfig(cfg, logger, nil)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Mode:      %s\n", req.Mode)
		fmt.Fprintf(os.Stderr, "Language:  %s\n", cfg.Evidence.Language)
		fmt.Fprintf(os.Stderr, "Strategy:  %s (threshold %g)\n", cfg.Scoring.Strategy, cfg.Scoring.Threshold)
		fmt.Fprintf(os.Stderr, "Entities:  %v\n", cfg.Entity.Enabled)
		fmt.Fprintf(os.Stderr, "Cache:     %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	rep, runErr := orch.Run(ctx, req)
	if rep != nil {
		if err := render(cmd.OutOrStdout(), cfg, rep); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("verification failed: %w", runErr)
	}
	return nil
}

// render prints the summary table and writes the configured report files
func render(w io.Writer, cfg *model.Config, rep *model.Report) error {
	renderer := report.NewRenderer()

	if err := renderer.RenderSummary(w, rep); err != nil {
		return err
	}
	if cfg.Output.JSONPath != "" {
		if err := renderer.RenderJSON(rep, cfg.Output.JSONPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", cfg.Output.JSONPath)
	}
	if cfg.Output.MDPath != "" {
		if err := renderer.RenderMarkdown(rep, cfg.Output.MDPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", cfg.Output.MDPath)
	}
	return nil
}

// readText returns the text to verify from --file, the argument, or stdin
func readText(args []string, file string, stdin io.Reader) (string, error) {
	if file != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("pass text either as an argument or with --file, not both")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	}

	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
