// Package reporter renders reconciliation results for people and for other tools.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: the full result set for programmatic consumption
//   - CSV: one row per finding, for spreadsheet applications
//   - XLSX: a workbook with summary, findings and failure sheets
//
// Example usage:
//
//	gen, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatCSV})
//	err = gen.GenerateBatchReport(batch, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/reconciler"
	"invoice-reconciliation-service/pkg/logger"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Detail level options
	IncludeComparisons bool `json:"include_comparisons"`
	IncludeWarnings    bool `json:"include_warnings"`
	IncludeNarrative   bool `json:"include_narrative"`
	IncludeStats       bool `json:"include_stats"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeComparisons: false,
		IncludeWarnings:    true,
		IncludeNarrative:   true,
		IncludeStats:       true,
		TableMaxWidth:      120,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.Format == FormatConsole && c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}
	return nil
}

// Failure is a submission that could not be reconciled
type Failure struct {
	Index         int    `json:"index"`
	InvoiceNumber string `json:"invoice_number"`
	Error         string `json:"error"`
}

// Report is the unit every format renders
type Report struct {
	GeneratedAt time.Time                      `json:"generated_at"`
	Results     []*models.ReconciliationResult `json:"results"`
	Failures    []Failure                      `json:"failures,omitempty"`
	Stats       *logger.ProgressStats          `json:"stats,omitempty"`
}

// NewReport wraps individual results
func NewReport(results ...*models.ReconciliationResult) *Report {
	return &Report{GeneratedAt: time.Now().UTC(), Results: results}
}

// NewBatchReport builds a report from a batch run, keeping failures in input order
func NewBatchReport(batch *reconciler.BatchResult) *Report {
	report := NewReport(batch.Results()...)
	for _, item := range batch.Failed() {
		report.Failures = append(report.Failures, Failure{
			Index:         item.Index,
			InvoiceNumber: item.InvoiceNumber,
			Error:         item.Err.Error(),
		})
	}
	stats := batch.Stats
	report.Stats = &stats
	return report
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if config.CSVDelimiter == 0 {
		config.CSVDelimiter = ','
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// Config returns the generator configuration
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}

// GenerateReport renders a single result
func (rg *ReportGenerator) GenerateReport(result *models.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}
	return rg.Render(NewReport(result), writer)
}

// GenerateBatchReport renders every result and failure of a batch
func (rg *ReportGenerator) GenerateBatchReport(batch *reconciler.BatchResult, writer io.Writer) error {
	if batch == nil {
		return fmt.Errorf("batch result cannot be nil")
	}
	return rg.Render(NewBatchReport(batch), writer)
}

// Render writes report in the configured format
func (rg *ReportGenerator) Render(report *Report, writer io.Writer) error {
	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(report *Report, writer io.Writer) error {
	rule := strings.Repeat("-", min(rg.config.TableMaxWidth, 80))

	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Invoices:  %d reconciled, %d failed\n\n", len(report.Results), len(report.Failures))

	for _, result := range report.Results {
		fmt.Fprintf(writer, "=== INVOICE %s ===\n", displayNumber(result.InvoiceNumber))
		rg.printStatus(result, writer)
		fmt.Fprintf(writer, "\n")

		rg.printSummaryTable(result.Summary, writer)
		fmt.Fprintf(writer, "\n")

		if len(result.Errors) > 0 {
			fmt.Fprintf(writer, "Errors (%d):\n", len(result.Errors))
			rg.printFindings(result.Errors, writer)
			fmt.Fprintf(writer, "\n")
		}

		if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
			fmt.Fprintf(writer, "Warnings (%d):\n", len(result.Warnings))
			rg.printFindings(sortBySeverity(result.Warnings), writer)
			fmt.Fprintf(writer, "\n")
		}

		if rg.config.IncludeComparisons && result.InvoiceExists {
			fmt.Fprintf(writer, "Comparisons:\n")
			rg.printComparisons(result.Comparisons, writer)
			fmt.Fprintf(writer, "\n")
		}

		if rg.config.IncludeNarrative && result.Narrative != nil {
			fmt.Fprintf(writer, "Summary: %s\n\n", result.Narrative.Summary)
		}
		fmt.Fprintf(writer, "%s\n", rule)
	}

	if len(report.Failures) > 0 {
		fmt.Fprintf(writer, "=== FAILED SUBMISSIONS ===\n")
		for _, f := range report.Failures {
			fmt.Fprintf(writer, "  #%d %s: %s\n", f.Index, displayNumber(f.InvoiceNumber), f.Error)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeStats && report.Stats != nil {
		fmt.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(report.Stats, writer)
	}

	return nil
}

func (rg *ReportGenerator) generateJSONReport(report *Report, writer io.Writer) error {
	out := *report
	if !rg.config.IncludeComparisons || !rg.config.IncludeNarrative {
		out.Results = make([]*models.ReconciliationResult, len(report.Results))
		for i, r := range report.Results {
			filtered := *r
			if !rg.config.IncludeComparisons {
				filtered.Comparisons = nil
			}
			if !rg.config.IncludeNarrative {
				filtered.Narrative = nil
			}
			out.Results[i] = &filtered
		}
	}
	if !rg.config.IncludeStats {
		out.Stats = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

var findingHeaders = []string{
	"Invoice_Number",
	"Invoice_Exists",
	"Category",
	"Type",
	"Severity",
	"Field",
	"Expected",
	"Actual",
	"Line_Item",
	"Message",
}

// findingRows flattens findings and failures into one row per entry
func (rg *ReportGenerator) findingRows(report *Report) [][]string {
	var rows [][]string
	for _, result := range report.Results {
		exists := fmt.Sprintf("%t", result.InvoiceExists)
		for _, f := range result.Errors {
			rows = append(rows, findingRow(result.InvoiceNumber, exists, "error", f))
		}
		if !rg.config.IncludeWarnings {
			continue
		}
		for _, f := range result.Warnings {
			rows = append(rows, findingRow(result.InvoiceNumber, exists, "warning", f))
		}
	}
	for _, f := range report.Failures {
		rows = append(rows, []string{f.InvoiceNumber, "", "failure", "", "", "", "", "", "", f.Error})
	}
	return rows
}

func findingRow(number, exists, category string, f models.Finding) []string {
	line := ""
	if f.LineIndex != nil {
		line = fmt.Sprintf("%d", *f.LineIndex+1)
	}
	return []string{
		number,
		exists,
		category,
		string(f.Kind),
		string(f.Severity),
		f.Field,
		cellValue(f.Expected),
		cellValue(f.Actual),
		line,
		f.Message,
	}
}

func (rg *ReportGenerator) generateCSVReport(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(findingHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range rg.findingRows(report) {
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write finding record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

const (
	sheetSummary  = "Summary"
	sheetFindings = "Findings"
	sheetFailures = "Failures"
)

var summaryHeaders = []interface{}{
	"Invoice_Number", "Invoice_Exists", "Invoice_ID", "Duplicate", "Errors", "Warnings",
	"Overall_Severity", "Identical_Entities", "Changed_Entities", "Processed_At",
}

func (rg *ReportGenerator) generateXLSXReport(report *Report, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetSummary, "A1", &summaryHeaders); err != nil {
		return fmt.Errorf("failed to write summary headers: %w", err)
	}
	for i, result := range report.Results {
		var id interface{} = ""
		if result.InvoiceID != nil {
			id = *result.InvoiceID
		}
		row := []interface{}{
			result.InvoiceNumber,
			result.InvoiceExists,
			id,
			len(result.FindingsOfKind(models.KindDuplicateInvoice)) > 0,
			len(result.Errors),
			len(result.Warnings),
			string(result.OverallSeverity()),
			result.Summary.IdenticalCount,
			result.Summary.DifferentCount,
			result.ProcessedAt.Format(time.RFC3339),
		}
		if err := setRow(f, sheetSummary, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetFindings); err != nil {
		return fmt.Errorf("failed to create findings sheet: %w", err)
	}
	headers := make([]interface{}, len(findingHeaders))
	for i, h := range findingHeaders {
		headers[i] = h
	}
	if err := setRow(f, sheetFindings, 1, headers); err != nil {
		return err
	}
	for i, cells := range rg.findingRows(report) {
		row := make([]interface{}, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		if err := setRow(f, sheetFindings, i+2, row); err != nil {
			return err
		}
	}

	if len(report.Failures) > 0 {
		if _, err := f.NewSheet(sheetFailures); err != nil {
			return fmt.Errorf("failed to create failures sheet: %w", err)
		}
		if err := setRow(f, sheetFailures, 1, []interface{}{"Index", "Invoice_Number", "Error"}); err != nil {
			return err
		}
		for i, failure := range report.Failures {
			if err := setRow(f, sheetFailures, i+2, []interface{}{failure.Index, failure.InvoiceNumber, failure.Error}); err != nil {
				return err
			}
		}
	}

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printStatus(result *models.ReconciliationResult, writer io.Writer) {
	if result.InvoiceExists && result.InvoiceID != nil {
		fmt.Fprintf(writer, "Persisted:        yes (id %d)\n", *result.InvoiceID)
	} else {
		fmt.Fprintf(writer, "Persisted:        no\n")
	}
	fmt.Fprintf(writer, "Overall Severity: %s\n", result.OverallSeverity())
	if len(result.FindingsOfKind(models.KindDuplicateInvoice)) > 0 {
		fmt.Fprintf(writer, "Duplicate:        yes\n")
	}
	fmt.Fprintf(writer, "Processed In:     %v\n", result.Duration)
}

func (rg *ReportGenerator) printSummaryTable(summary models.ComparisonSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Entities:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.TotalEntities)
	fmt.Fprintf(writer, "  Identical: %d (%.1f%%)\n",
		summary.IdenticalCount, rg.calculatePercentage(summary.IdenticalCount, summary.TotalEntities))
	fmt.Fprintf(writer, "  Changed:   %d (%.1f%%)\n",
		summary.DifferentCount, rg.calculatePercentage(summary.DifferentCount, summary.TotalEntities))
	fmt.Fprintf(writer, "  New:       %d (%.1f%%)\n",
		summary.NewCount, rg.calculatePercentage(summary.NewCount, summary.TotalEntities))
	fmt.Fprintf(writer, "  Differences: %d\n", summary.TotalDifferences)
}

func (rg *ReportGenerator) printFindings(findings []models.Finding, writer io.Writer) {
	for _, f := range findings {
		msg := f.Message
		if limit := rg.config.TableMaxWidth - 20; limit > 0 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		fmt.Fprintf(writer, "  - [%s] %s: %s\n", strings.ToUpper(string(f.Severity)), f.Kind, msg)
	}
}

func (rg *ReportGenerator) printComparisons(comparisons []models.EntityComparison, writer io.Writer) {
	for _, c := range comparisons {
		status := "identical"
		switch {
		case !c.ExistsInDB:
			status = "new"
		case !c.IsIdentical:
			status = fmt.Sprintf("%d difference(s)", len(c.Differences))
		}
		fmt.Fprintf(writer, "  %-12s %s\n", c.EntityType, status)
		for _, d := range c.Differences {
			prefix := ""
			if d.ItemIndex != nil {
				prefix = fmt.Sprintf("item %d ", *d.ItemIndex+1)
			}
			fmt.Fprintf(writer, "      %s%s: %s -> %s\n", prefix, d.Field, cellValue(d.Existing), cellValue(d.New))
		}
	}
}

func (rg *ReportGenerator) printProcessingStats(stats *logger.ProgressStats, writer io.Writer) {
	fmt.Fprintf(writer, "Submissions:      %d\n", stats.Total)
	fmt.Fprintf(writer, "Succeeded:        %d\n", stats.Succeeded)
	fmt.Fprintf(writer, "Failed:           %d\n", stats.Failed)
	fmt.Fprintf(writer, "Invoices/Second:  %.2f\n", stats.Rate)
	fmt.Fprintf(writer, "Total Processing: %v\n", stats.Duration)
}

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// sortBySeverity orders findings from most to least severe, keeping input
// order within a severity
func sortBySeverity(findings []models.Finding) []models.Finding {
	out := append([]models.Finding(nil), findings...)
	rank := map[models.Severity]int{
		models.SeverityCritical: 0,
		models.SeverityModerate: 1,
		models.SeverityMinor:    2,
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rank[out[i].Severity] < rank[out[j].Severity]
	})
	return out
}

// cellValue renders an expected/actual value; amounts keep two decimals
func cellValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return decimal.NewFromFloat(val).StringFixed(2)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func displayNumber(number string) string {
	if number == "" {
		return "(unnumbered)"
	}
	return number
}
