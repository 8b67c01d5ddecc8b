package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"invoice-reconciliation-service/cmd/reconciler/config"
	"invoice-reconciliation-service/internal/parsers"
	"invoice-reconciliation-service/internal/reconciler"
	"invoice-reconciliation-service/internal/reporter"
	"invoice-reconciliation-service/pkg/errors"
)

// Flags for the reconcile command
var (
	inputFile          string
	outputFormat       string
	outputFile         string
	showProgress       bool
	includeComparisons bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Validate a file of invoice submissions against the database",
	Long: `Reconcile reads invoice submissions from a JSON or JSONL file, validates
each one against the persisted invoices and writes a report.

Submissions are reconciled concurrently. A submission that cannot be
reconciled is listed under failed submissions and does not stop the run.

Examples:
  # Console report
  reconciler reconcile --db-dsn sqlite:invoices.db --input submissions.jsonl

  # Spreadsheet report with entity comparisons
  reconciler reconcile --input submissions.json --include-comparisons \
    --output-format xlsx --output-file report.xlsx

  # CSV of findings with progress on stderr
  reconciler reconcile --input submissions.jsonl -f csv -o findings.csv --progress`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringP("input", "i", "", "path to a .json or .jsonl file of invoice submissions (required)")
	reconcileCmd.Flags().StringP("output-format", "f", "console", "output format: console, json, csv, xlsx")
	reconcileCmd.Flags().StringP("output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().Bool("include-comparisons", false, "include per-entity comparisons in the report")
	reconcileCmd.Flags().Bool("progress", false, "show per-invoice progress on stderr")
	reconcileCmd.Flags().IntP("workers", "w", 4, "number of invoices reconciled concurrently")

	_ = settings.BindPFlag("reconciler.workers", reconcileCmd.Flags().Lookup("workers"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inputFile, _ = flags.GetString("input")
	outputFormat, _ = flags.GetString("output-format")
	outputFile, _ = flags.GetString("output-file")
	includeComparisons, _ = flags.GetBool("include-comparisons")
	showProgress, _ = flags.GetBool("progress")

	if inputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "input", nil, nil).
			WithSuggestion("Pass --input with a .json or .jsonl file")
	}
	if err := validateFileExists(inputFile, "invoice input file"); err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(inputFile)) {
	case ".json", ".jsonl", ".ndjson":
	default:
		return errors.ConfigurationError(errors.CodeInvalidFormat, "input", inputFile,
			fmt.Errorf("unsupported input extension %q", filepath.Ext(inputFile))).
			WithSuggestion("Use a .json, .jsonl or .ndjson file")
	}

	format := reporter.OutputFormat(outputFormat)
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat,
			fmt.Errorf("invalid output format '%s'", outputFormat)).
			WithSuggestion("Valid formats: console, json, csv, xlsx")
	}
	if format == reporter.FormatXLSX && outputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output-file", nil,
			fmt.Errorf("xlsx output requires --output-file"))
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.InputFileError(dir, err)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return errors.InputFileError(filePath, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.InputFileError(filePath, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig(settings)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if settings.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Input file: %s\n", inputFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	svc, err := buildServices(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	if showProgress {
		svc.orchestrator.AddProgressCallback(func(p *reconciler.ReconciliationProgress) {
			fmt.Fprintf(os.Stderr, "[%s] %d/%d %s (%.0f%%)\n",
				displayInvoice(p.InvoiceNumber), p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
		})
	}

	return reconcileFile(ctx, svc.orchestrator, cfg, cmd.OutOrStdout())
}

// reconcileFile reads inputFile, reconciles every submission and writes the
// report to outputFile, or to stdout when none is set
func reconcileFile(ctx context.Context, orchestrator *reconciler.ReconciliationOrchestrator, cfg *config.AppConfig, stdout io.Writer) error {
	reader, err := parsers.NewInvoiceReader(&cfg.Input)
	if err != nil {
		return err
	}

	invoices, stats, err := reader.ReadAll(ctx, inputFile)
	if err != nil {
		return err
	}
	if stats.HasErrors() {
		fmt.Fprintln(os.Stderr, errors.FormatInputErrorsForUser(stats.Errors.GetErrors()))
	}
	if len(invoices) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "input", inputFile, nil).
			WithSuggestion("The input file contains no decodable invoices")
	}

	batch, err := orchestrator.ReconcileBatch(ctx, invoices, 0)
	if err != nil {
		return err
	}

	reportConfig := reporter.DefaultReportConfig()
	reportConfig.Format = reporter.OutputFormat(outputFormat)
	reportConfig.IncludeComparisons = includeComparisons

	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	var output io.Writer = stdout
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return errors.InputFileError(outputFile, err)
		}
		defer file.Close()
		output = file
	}

	if err := generator.GenerateReportSafely(reporter.NewBatchReport(batch), output); err != nil {
		return err
	}

	if settings.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed.\n")
		fmt.Fprintf(os.Stderr, "Input: %s\n", stats.String())
		fmt.Fprintf(os.Stderr, "Reconciled %d submissions, %d failed in %v.\n",
			batch.Stats.Succeeded, batch.Stats.Failed, batch.Stats.Duration)
	}

	return nil
}

func displayInvoice(number string) string {
	if number == "" {
		return "(unnumbered)"
	}
	return number
}
