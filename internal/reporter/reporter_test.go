package reporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invoice-reconciliation-service/internal/fixtures"
	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/reconciler"
	"invoice-reconciliation-service/pkg/errors"
)

func sampleResult() *models.ReconciliationResult {
	id := uint(42)
	return &models.ReconciliationResult{
		InvoiceExists: true,
		InvoiceID:     &id,
		InvoiceNumber: "INV-2024-001",
		Comparisons: []models.EntityComparison{
			{EntityType: models.EntityInvoice, ExistsInDB: true, IsIdentical: true, Differences: []models.Difference{}},
			{
				EntityType: models.EntityPayment, ExistsInDB: true,
				Differences: []models.Difference{{Field: "status", Existing: "Paid", New: "Unpaid"}},
			},
		},
		Summary: models.ComparisonSummary{TotalEntities: 2, ExistingCount: 2, IdenticalCount: 1, DifferentCount: 1, TotalDifferences: 1},
		Errors: []models.Finding{
			{
				Kind: models.KindPaymentStatusRegression, Severity: models.SeverityCritical,
				Message: "Payment status regressed from Paid to Unpaid", Field: "payment.status",
				Expected: "Paid", Actual: "Unpaid",
			},
		},
		Warnings: []models.Finding{
			{Kind: models.KindAddressChange, Severity: models.SeverityMinor, Message: "Vendor address changed"},
			{
				Kind: models.KindLineItemsChanged, Severity: models.SeverityModerate, Message: "Line items changed",
				LineIndex: models.IntPtr(1), Expected: 118.0, Actual: 177.5,
			},
		},
		Narrative: &models.NarrativeSummary{Summary: "Payment status went backwards"},
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{"default config", nil, false},
		{"valid config", DefaultReportConfig(), false},
		{"xlsx without width", &ReportConfig{Format: FormatXLSX}, false},
		{"invalid format", &ReportConfig{Format: "pdf", TableMaxWidth: 120}, true},
		{"table width too small", &ReportConfig{Format: FormatConsole, TableMaxWidth: 30}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, generator)
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{FormatXLSX, true},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.format.IsValid())
		})
	}
}

func TestConsoleReport(t *testing.T) {
	cfg := DefaultReportConfig()
	cfg.IncludeComparisons = true
	gen, err := NewReportGenerator(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gen.GenerateReport(sampleResult(), &buf))
	out := buf.String()

	assert.Contains(t, out, "RECONCILIATION REPORT")
	assert.Contains(t, out, "=== INVOICE INV-2024-001 ===")
	assert.Contains(t, out, "Persisted:        yes (id 42)")
	assert.Contains(t, out, "Overall Severity: critical")
	assert.Contains(t, out, "Identical: 1 (50.0%)")
	assert.Contains(t, out, "[CRITICAL] payment_status_regression")
	assert.Contains(t, out, "Summary: Payment status went backwards")
	assert.Contains(t, out, "status: Paid -> Unpaid")

	// moderate warnings are listed before minor ones
	assert.Less(t, strings.Index(out, "line_items_changed"), strings.Index(out, "address_change"))

	t.Run("warnings can be hidden", func(t *testing.T) {
		cfg := DefaultReportConfig()
		cfg.IncludeWarnings = false
		gen, err := NewReportGenerator(cfg)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, gen.GenerateReport(sampleResult(), &buf))
		assert.NotContains(t, buf.String(), "address_change")
	})

	t.Run("nil result", func(t *testing.T) {
		assert.Error(t, gen.GenerateReport(nil, &buf))
	})
}

func TestJSONReport(t *testing.T) {
	gen, err := NewReportGenerator(&ReportConfig{Format: FormatJSON, IncludeWarnings: true})
	require.NoError(t, err)

	result := sampleResult()
	var buf bytes.Buffer
	require.NoError(t, gen.GenerateReport(result, &buf))

	var decoded struct {
		Results []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Results, 1)

	got := decoded.Results[0]
	assert.Equal(t, "INV-2024-001", got["invoice_number"])
	assert.Nil(t, got["comparisons"])
	assert.Nil(t, got["llm_summary"])
	assert.Len(t, got["errors"], 1)

	// the caller's result is not modified by filtering
	assert.Len(t, result.Comparisons, 2)
	assert.NotNil(t, result.Narrative)
}

func TestCSVReport(t *testing.T) {
	gen, err := NewReportGenerator(&ReportConfig{Format: FormatCSV, IncludeWarnings: true, CSVHeaders: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gen.GenerateReport(sampleResult(), &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, findingHeaders, records[0])
	assert.Equal(t, []string{
		"INV-2024-001", "true", "error", "payment_status_regression", "critical",
		"payment.status", "Paid", "Unpaid", "", "Payment status regressed from Paid to Unpaid",
	}, records[1])

	// line index is rendered one-based, amounts with two decimals
	assert.Equal(t, "2", records[3][8])
	assert.Equal(t, "118.00", records[3][6])
	assert.Equal(t, "177.50", records[3][7])
}

func runScenarioBatch(t *testing.T) *reconciler.BatchResult {
	t.Helper()

	reader := fixtures.NewMemoryStore()
	var invoices []*models.Invoice
	for _, s := range fixtures.Scenarios() {
		if s.Persisted != nil {
			reader.Add(s.Persisted)
		}
		invoices = append(invoices, s.Submitted)
	}
	invoices = append(invoices, &models.Invoice{})

	o, err := reconciler.NewReconciliationOrchestrator(reader, nil, nil)
	require.NoError(t, err)

	batch, err := o.ReconcileBatch(context.Background(), invoices, 2)
	require.NoError(t, err)
	return batch
}

func TestXLSXReport(t *testing.T) {
	gen, err := NewReportGenerator(&ReportConfig{Format: FormatXLSX, IncludeWarnings: true})
	require.NoError(t, err)

	batch := runScenarioBatch(t)

	var buf bytes.Buffer
	require.NoError(t, gen.GenerateBatchReport(batch, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetSummary, sheetFindings, sheetFailures}, f.GetSheetList())

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, len(fixtures.Scenarios())+1)
	assert.Equal(t, "Invoice_Number", summary[0][0])
	assert.Equal(t, "INV-SCN-001", summary[1][0])
	assert.Equal(t, "TRUE", summary[1][3])

	failures, err := f.GetRows(sheetFailures)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "6", failures[1][0])

	findings, err := f.GetRows(sheetFindings)
	require.NoError(t, err)
	assert.Greater(t, len(findings), 1)
}

func TestBatchConsoleReport(t *testing.T) {
	gen, err := NewReportGenerator(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gen.GenerateBatchReport(runScenarioBatch(t), &buf))
	out := buf.String()

	assert.Contains(t, out, "Invoices:  6 reconciled, 1 failed")
	assert.Contains(t, out, "=== FAILED SUBMISSIONS ===")
	assert.Contains(t, out, "#6 (unnumbered)")
	assert.Contains(t, out, "=== PROCESSING STATISTICS ===")
	assert.Contains(t, out, "Submissions:      7")
}

func TestSafeReportGenerator(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewSafeReportGenerator(&ReportConfig{Format: "pdf"}, nil)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	})

	t.Run("missing inputs", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(nil, nil)
		require.NoError(t, err)

		assert.True(t, errors.IsCategory(srg.GenerateReportSafely(nil, &bytes.Buffer{}), errors.CategoryValidation))
		assert.True(t, errors.IsCategory(srg.GenerateReportSafely(NewReport(sampleResult()), nil), errors.CategoryValidation))
		assert.True(t, errors.IsCategory(srg.GenerateReportSafely(NewReport(nil), &bytes.Buffer{}), errors.CategoryValidation))
	})

	t.Run("unencodable result falls back to console", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON}, nil)
		require.NoError(t, err)

		result := sampleResult()
		result.Errors[0].Details = map[string]interface{}{"bad": make(chan int)}

		var buf bytes.Buffer
		require.NoError(t, srg.GenerateReportSafely(NewReport(result), &buf))
		assert.Contains(t, buf.String(), "NOTE: Report generated in fallback format")
		assert.Contains(t, buf.String(), "=== INVOICE INV-2024-001 ===")
	})

	t.Run("closed output file falls back to a backup file", func(t *testing.T) {
		srg, err := NewSafeReportGenerator(&ReportConfig{Format: FormatCSV, CSVHeaders: true}, nil)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "report.csv")
		file, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, file.Close())

		require.NoError(t, srg.GenerateReportSafely(NewReport(sampleResult()), file))

		backup, err := os.ReadFile(filepath.Join(filepath.Dir(path), "report_backup.csv"))
		require.NoError(t, err)
		assert.Contains(t, string(backup), "payment_status_regression")
	})
}

func TestGenerateBackupPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "report_backup.xlsx"), generateBackupPath(filepath.Join("out", "report.xlsx")))
	assert.Equal(t, "report_backup", generateBackupPath("report"))
}
