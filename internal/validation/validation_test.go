package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-reconciliation-service/internal/fixtures"
	"invoice-reconciliation-service/internal/models"
)

func kinds(findings []models.Finding) []models.FindingKind {
	out := make([]models.FindingKind, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Kind)
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative tolerance", func(c *Config) { c.LineTolerance = -1 }, true},
		{"floor above tolerance", func(c *Config) { c.RoundingFloor = 0.5 }, true},
		{"zero variance percent", func(c *Config) { c.VariancePercent = 0 }, true},
		{"zero variance absolute", func(c *Config) { c.VarianceAbsolute = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestCheckMissingValues(t *testing.T) {
	t.Run("complete invoice", func(t *testing.T) {
		assert.Empty(t, CheckMissingValues(fixtures.Invoice()))
	})

	t.Run("everything missing", func(t *testing.T) {
		inv := &models.Invoice{
			Vendor: models.Vendor{Name: models.StringPtr("  "), GSTIN: models.StringPtr("")},
		}
		got := CheckMissingValues(inv)
		assert.Equal(t, []models.FindingKind{
			models.KindMissingGSTIN,
			models.KindMissingVendorName,
			models.KindMissingInvoiceNumber,
			models.KindMissingLineItems,
			models.KindMissingCustomerName,
			models.KindMissingInvoiceDate,
		}, kinds(got))

		for _, f := range got[:4] {
			assert.Equal(t, models.SeverityCritical, f.Severity, f.Kind)
		}
		for _, f := range got[4:] {
			assert.Equal(t, models.SeverityModerate, f.Severity, f.Kind)
		}
	})

	t.Run("zero grand total with line items", func(t *testing.T) {
		inv := fixtures.Invoice()
		inv.Totals.GrandTotal = 0
		got := CheckMissingValues(inv)
		require.Len(t, got, 1)
		assert.Equal(t, models.KindMissingGrandTotal, got[0].Kind)
		assert.Equal(t, "totals.grandTotal", got[0].Field)
	})

	t.Run("zero grand total without line items", func(t *testing.T) {
		inv := fixtures.Invoice()
		inv.LineItems = nil
		inv.Totals = models.Totals{}
		assert.Equal(t, []models.FindingKind{models.KindMissingLineItems}, kinds(CheckMissingValues(inv)))
	})
}

func TestValidateTaxCalculations_LineTolerance(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   []models.FindingKind
	}{
		{"exact", 118, nil},
		{"deviation at tolerance", 118.01, nil},
		{"deviation below tolerance", 117.995, nil},
		{"deviation above tolerance", 118.011, []models.FindingKind{models.KindLineItemCalculationError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := fixtures.Invoice()
			inv.LineItems[0].Amount = tt.amount
			got := ValidateTaxCalculations(inv, DefaultConfig())
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, kinds(got))
		})
	}

	t.Run("finding carries line context", func(t *testing.T) {
		inv := fixtures.Invoice()
		inv.LineItems[1].Amount = 120
		got := ValidateTaxCalculations(inv, nil)
		require.Len(t, got, 1)

		f := got[0]
		assert.Equal(t, models.SeverityCritical, f.Severity)
		require.NotNil(t, f.LineIndex)
		assert.Equal(t, 1, *f.LineIndex)
		assert.Equal(t, 118.0, f.Expected)
		assert.Equal(t, 120.0, f.Actual)
		assert.Equal(t, "Gadget", f.Details["description"])
		assert.Contains(t, f.Message, "Line item 2 calculation mismatch")
	})
}

func TestValidateTaxCalculations_GrandTotal(t *testing.T) {
	tests := []struct {
		name       string
		grandTotal float64
		roundOff   *float64
		want       []models.FindingKind
		severity   models.Severity
	}{
		{"negligible deviation", 236.0005, nil, nil, ""},
		{"rounding deviation", 236.005, nil, []models.FindingKind{models.KindGrandTotalRounding}, models.SeverityMinor},
		{"calculation error", 236.02, nil, []models.FindingKind{models.KindGrandTotalCalculationError}, models.SeverityCritical},
		{"round off accounted for", 236.4, models.Float64Ptr(0.4), nil, ""},
		{"round off missing", 236.4, nil, []models.FindingKind{models.KindGrandTotalCalculationError}, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := fixtures.Invoice()
			inv.Totals.GrandTotal = tt.grandTotal
			inv.Totals.RoundOff = tt.roundOff

			got := ValidateTaxCalculations(inv, DefaultConfig())
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, kinds(got))
			assert.Equal(t, tt.severity, got[0].Severity)
		})
	}
}

func TestValidateTaxCalculations_Totals(t *testing.T) {
	inv := fixtures.Invoice()
	inv.Totals.Subtotal = 210
	inv.Totals.GSTAmount = 26

	got := ValidateTaxCalculations(inv, DefaultConfig())
	assert.Equal(t, []models.FindingKind{
		models.KindSubtotalMismatch,
		models.KindGSTAmountMismatch,
	}, kinds(got))
	assert.Equal(t, 200.0, got[0].Expected)
	assert.Equal(t, 36.0, got[1].Expected)
}

func TestValidateTaxCalculations_CustomTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LineTolerance = 0.5

	inv := fixtures.Invoice()
	inv.LineItems[0].Amount = 118.4
	inv.Totals.GrandTotal = 236.3

	got := ValidateTaxCalculations(inv, cfg)
	assert.Equal(t, []models.FindingKind{models.KindGrandTotalRounding}, kinds(got))
}
