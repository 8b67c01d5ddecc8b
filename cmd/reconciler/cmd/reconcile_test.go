package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-reconciliation-service/cmd/reconciler/config"
	"invoice-reconciliation-service/internal/fixtures"
	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/reconciler"
	"invoice-reconciliation-service/pkg/errors"
)

// withFlags sets reconcile flags for one test and restores the previous values
func withFlags(t *testing.T, values map[string]string) {
	t.Helper()
	for name, value := range values {
		previous := reconcileCmd.Flags().Lookup(name).Value.String()
		require.NoError(t, reconcileCmd.Flags().Set(name, value))
		t.Cleanup(func() { _ = reconcileCmd.Flags().Set(name, previous) })
	}
}

func writeSubmissionFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, writeSubmissions(path, fixtures.Scenarios()))
	return path
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.json")
	require.NoError(t, os.WriteFile(validFile, []byte("{}"), 0o644))

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{"valid file", validFile, false},
		{"empty path", "", true},
		{"non-existent file", filepath.Join(tmpDir, "missing.json"), true},
		{"directory instead of file", tmpDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("missing file is an input error", func(t *testing.T) {
		err := validateFileExists(filepath.Join(tmpDir, "missing.json"), "test file")
		assert.True(t, errors.IsCategory(err, errors.CategoryInput))
	})
}

func TestValidateReconcileFlags(t *testing.T) {
	tmpDir := t.TempDir()
	jsonl := writeSubmissionFile(t, tmpDir, "submissions.jsonl")
	csvInput := filepath.Join(tmpDir, "submissions.csv")
	require.NoError(t, os.WriteFile(csvInput, []byte("invoiceNumber\nINV-1\n"), 0o644))

	tests := []struct {
		name        string
		values      map[string]string
		expectError bool
		category    errors.ErrorCategory
	}{
		{
			name:   "valid console",
			values: map[string]string{"input": jsonl, "output-format": "console", "output-file": ""},
		},
		{
			name:   "valid xlsx with output file",
			values: map[string]string{"input": jsonl, "output-format": "xlsx", "output-file": filepath.Join(tmpDir, "r.xlsx")},
		},
		{
			name:        "missing input",
			values:      map[string]string{"input": "", "output-format": "console", "output-file": ""},
			expectError: true,
			category:    errors.CategoryConfiguration,
		},
		{
			name:        "input does not exist",
			values:      map[string]string{"input": filepath.Join(tmpDir, "nope.jsonl"), "output-format": "console", "output-file": ""},
			expectError: true,
			category:    errors.CategoryInput,
		},
		{
			name:        "unsupported input extension",
			values:      map[string]string{"input": csvInput, "output-format": "console", "output-file": ""},
			expectError: true,
			category:    errors.CategoryConfiguration,
		},
		{
			name:        "invalid output format",
			values:      map[string]string{"input": jsonl, "output-format": "pdf", "output-file": ""},
			expectError: true,
			category:    errors.CategoryConfiguration,
		},
		{
			name:        "xlsx to stdout",
			values:      map[string]string{"input": jsonl, "output-format": "xlsx", "output-file": ""},
			expectError: true,
			category:    errors.CategoryConfiguration,
		},
		{
			name:        "output directory missing",
			values:      map[string]string{"input": jsonl, "output-format": "csv", "output-file": filepath.Join(tmpDir, "none", "r.csv")},
			expectError: true,
			category:    errors.CategoryInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFlags(t, tt.values)

			err := validateReconcileFlags(reconcileCmd, nil)
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestReconcileFile(t *testing.T) {
	tmpDir := t.TempDir()
	input := writeSubmissionFile(t, tmpDir, "submissions.jsonl")
	output := filepath.Join(tmpDir, "findings.csv")

	reader := fixtures.NewMemoryStore()
	for _, s := range fixtures.Scenarios() {
		if s.Persisted != nil {
			reader.Add(s.Persisted)
		}
	}
	orchestrator, err := reconciler.NewReconciliationOrchestrator(reader, nil, nil)
	require.NoError(t, err)

	cfg, err := config.Load(config.NewViper())
	require.NoError(t, err)

	inputFile, outputFormat, outputFile, includeComparisons = input, "csv", output, false
	t.Cleanup(func() { inputFile, outputFormat, outputFile = "", "", "" })

	require.NoError(t, reconcileFile(context.Background(), orchestrator, cfg, &bytes.Buffer{}))

	file, err := os.Open(output)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(records), 1)
	assert.Equal(t, "Invoice_Number", records[0][0])

	kinds := map[string][]string{}
	for _, row := range records[1:] {
		kinds[row[0]] = append(kinds[row[0]], row[3])
	}
	assert.Contains(t, kinds["INV-SCN-001"], string(models.KindDuplicateInvoice))
	assert.Contains(t, kinds["INV-SCN-003"], string(models.KindPaymentStatusRegression))
	assert.Contains(t, kinds["INV-SCN-005"], string(models.KindAmountDiscrepancy))

	t.Run("empty input", func(t *testing.T) {
		empty := filepath.Join(tmpDir, "empty.jsonl")
		require.NoError(t, os.WriteFile(empty, nil, 0o644))
		inputFile = empty

		err := reconcileFile(context.Background(), orchestrator, cfg, &bytes.Buffer{})
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})
}

func TestCommands_SeedAndReconcile(t *testing.T) {
	tmpDir := t.TempDir()
	dsn := "sqlite:" + filepath.Join(tmpDir, "invoices.db")
	submissions := filepath.Join(tmpDir, "submissions.jsonl")
	report := filepath.Join(tmpDir, "report.json")

	t.Setenv("RECONCILER_DATABASE_MAX_OPEN_CONNS", "1")
	t.Setenv("RECONCILER_DATABASE_MAX_IDLE_CONNS", "1")

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append(args, "--env-file", ""))
		t.Cleanup(func() {
			rootCmd.SetOut(nil)
			rootCmd.SetArgs(nil)
		})
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}

	out := run("seed", "--db-dsn", dsn, "--submissions", submissions)
	assert.Contains(t, out, "Seeded 5 invoices")

	out = run("seed", "--db-dsn", dsn)
	assert.Contains(t, out, "Seeded 0 invoices")

	run("reconcile", "--db-dsn", dsn, "--input", submissions, "-f", "json", "-o", report)

	data, err := os.ReadFile(report)
	require.NoError(t, err)

	var decoded struct {
		Results []*models.ReconciliationResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Results, len(fixtures.Scenarios()))

	byNumber := map[string]*models.ReconciliationResult{}
	for _, r := range decoded.Results {
		byNumber[r.InvoiceNumber] = r
	}

	dup := byNumber["INV-SCN-001"]
	require.NotNil(t, dup)
	assert.True(t, dup.InvoiceExists)
	assert.Len(t, dup.FindingsOfKind(models.KindDuplicateInvoice), 1)

	assert.Len(t, byNumber["INV-SCN-003"].FindingsOfKind(models.KindPaymentStatusRegression), 1)
	assert.False(t, byNumber["INV-SCN-NEW"].InvoiceExists)
}
