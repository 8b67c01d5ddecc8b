package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-reconciliation-service/internal/fixtures"
	"invoice-reconciliation-service/internal/models"
)

func TestCriteriaFor(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Invoice)
		ok     bool
	}{
		{"complete invoice", func(*models.Invoice) {}, true},
		{"blank vendor name", func(inv *models.Invoice) { inv.Vendor.Name = models.StringPtr("   ") }, false},
		{"missing invoice number", func(inv *models.Invoice) { inv.InvoiceNumber = nil }, false},
		{"missing invoice date", func(inv *models.Invoice) { inv.InvoiceDate = nil }, false},
		{"unparseable invoice date", func(inv *models.Invoice) { inv.InvoiceDate = models.StringPtr("soon") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := fixtures.Invoice()
			tt.mutate(inv)
			_, ok := CriteriaFor(inv)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, CriteriaApplies(inv))
		})
	}

	t.Run("vendor name trimmed and lowercased for lookup", func(t *testing.T) {
		inv := fixtures.Invoice()
		inv.Vendor.Name = models.StringPtr("  Acme TRADERS ")
		c, ok := CriteriaFor(inv)
		require.True(t, ok)
		assert.Equal(t, "Acme TRADERS", c.VendorName)
		assert.Equal(t, "acme traders", c.LookupVendor())
		assert.Equal(t, "INV-2024-001", c.InvoiceNumber)
		assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), c.InvoiceDate)
	})
}

func TestDetectDuplicate(t *testing.T) {
	inv := fixtures.Invoice()
	identical := CompareAll(fixtures.RecordFrom(inv, 1), inv)

	drifted := fixtures.Clone(inv)
	drifted.LineItems[0].Quantity = 3
	lineDrift := CompareAll(fixtures.RecordFrom(inv, 1), drifted)

	criteria, ok := CriteriaFor(inv)
	require.True(t, ok)

	t.Run("full identity", func(t *testing.T) {
		f := DetectDuplicate(identical, true, nil)
		require.NotNil(t, f)
		assert.Equal(t, models.KindDuplicateInvoice, f.Kind)
		assert.Equal(t, models.SeverityCritical, f.Severity)
		assert.Equal(t, "full_identity", f.Details["heuristic"])
	})

	t.Run("criteria match takes precedence", func(t *testing.T) {
		f := DetectDuplicate(identical, true, &criteria)
		require.NotNil(t, f)
		assert.Equal(t, "criteria", f.Details["heuristic"])
		assert.Contains(t, f.Message, "INV-2024-001")
		assert.Contains(t, f.Message, "vendor name '"+models.Deref(inv.Vendor.Name)+"'")
		assert.Contains(t, f.Message, "2024-01-15")
	})

	t.Run("criteria message keeps the submitted vendor spelling", func(t *testing.T) {
		submitted := fixtures.Clone(inv)
		submitted.Vendor.Name = models.StringPtr("ACME Traders Pvt Ltd")
		c, ok := CriteriaFor(submitted)
		require.True(t, ok)

		f := DetectDuplicate(identical, true, &c)
		require.NotNil(t, f)
		assert.Contains(t, f.Message, "vendor name 'ACME Traders Pvt Ltd'")
		assert.NotContains(t, f.Message, "acme traders pvt ltd")
	})

	t.Run("line item drift is not a duplicate", func(t *testing.T) {
		assert.Nil(t, DetectDuplicate(lineDrift, true, nil))
	})

	t.Run("new invoice is not a duplicate", func(t *testing.T) {
		assert.Nil(t, DetectDuplicate(CompareAll(nil, inv), false, nil))
	})

	t.Run("identity requires the invoice to exist", func(t *testing.T) {
		assert.Nil(t, DetectDuplicate(identical, false, nil))
	})
}

func TestIsCompleteDuplicate(t *testing.T) {
	inv := fixtures.Invoice()
	record := fixtures.RecordFrom(inv, 1)
	record.LineItems = nil

	comparisons := CompareAll(record, inv)
	assert.False(t, IsCompleteDuplicate(comparisons))
	assert.False(t, IsCompleteDuplicate(comparisons[:5]))
	assert.True(t, IsCompleteDuplicate(CompareAll(fixtures.RecordFrom(inv, 1), inv)))
}
