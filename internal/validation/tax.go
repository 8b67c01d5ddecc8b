package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invoice-reconciliation-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ValidateTaxCalculations checks every line amount against
// quantity × unit price × (1 + tax%/100), the stated subtotal and tax total
// against the sums of the line items, and the grand total against
// subtotal + tax + round off. Deviations up to cfg.LineTolerance pass.
func ValidateTaxCalculations(inv *models.Invoice, cfg *Config) []models.Finding {
	cfg = orDefault(cfg)
	tolerance := cfg.lineTolerance()

	var errs, warns []models.Finding
	subtotal := decimal.Zero
	tax := decimal.Zero

	for idx, item := range inv.LineItems {
		base := decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.UnitPrice))
		rate := decimal.NewFromFloat(item.TaxPercent).Div(hundred)
		expected := base.Mul(decimal.NewFromInt(1).Add(rate))
		actual := decimal.NewFromFloat(item.Amount)

		diff := actual.Sub(expected).Abs()
		if diff.GreaterThan(tolerance) {
			errs = append(errs, models.Finding{
				Kind:     models.KindLineItemCalculationError,
				Severity: models.SeverityCritical,
				Field:    "lineItems.amount",
				Message: fmt.Sprintf("Line item %d calculation mismatch: Expected %s but got %s (difference: %s)",
					idx+1, expected.StringFixed(2), actual.StringFixed(2), diff.StringFixed(2)),
				Expected:  round2(expected),
				Actual:    item.Amount,
				LineIndex: models.IntPtr(idx),
				Details:   map[string]interface{}{"description": item.Description},
			})
		}

		subtotal = subtotal.Add(base)
		tax = tax.Add(base.Mul(rate))
	}

	statedSubtotal := decimal.NewFromFloat(inv.Totals.Subtotal)
	if diff := statedSubtotal.Sub(subtotal).Abs(); diff.GreaterThan(tolerance) {
		errs = append(errs, models.Finding{
			Kind:     models.KindSubtotalMismatch,
			Severity: models.SeverityCritical,
			Field:    "totals.subtotal",
			Message: fmt.Sprintf("Subtotal mismatch: Calculated from line items %s but totals show %s (difference: %s)",
				subtotal.StringFixed(2), statedSubtotal.StringFixed(2), diff.StringFixed(2)),
			Expected: round2(subtotal),
			Actual:   inv.Totals.Subtotal,
		})
	}

	statedTax := decimal.NewFromFloat(inv.Totals.GSTAmount)
	if diff := statedTax.Sub(tax).Abs(); diff.GreaterThan(tolerance) {
		errs = append(errs, models.Finding{
			Kind:     models.KindGSTAmountMismatch,
			Severity: models.SeverityCritical,
			Field:    "totals.gstAmount",
			Message: fmt.Sprintf("GST amount mismatch: Calculated from line items %s but totals show %s (difference: %s)",
				tax.StringFixed(2), statedTax.StringFixed(2), diff.StringFixed(2)),
			Expected: round2(tax),
			Actual:   inv.Totals.GSTAmount,
		})
	}

	roundOff := decimal.Zero
	if inv.Totals.RoundOff != nil {
		roundOff = decimal.NewFromFloat(*inv.Totals.RoundOff)
	}
	expectedGrand := statedSubtotal.Add(statedTax).Add(roundOff)
	statedGrand := decimal.NewFromFloat(inv.Totals.GrandTotal)
	diff := statedGrand.Sub(expectedGrand).Abs()

	switch {
	case diff.GreaterThan(tolerance):
		errs = append(errs, models.Finding{
			Kind:     models.KindGrandTotalCalculationError,
			Severity: models.SeverityCritical,
			Field:    "totals.grandTotal",
			Message: fmt.Sprintf("Grand total calculation error: Expected %s (subtotal %s + GST %s + roundOff %s) but got %s (difference: %s)",
				expectedGrand.StringFixed(2), statedSubtotal.StringFixed(2), statedTax.StringFixed(2),
				roundOff.StringFixed(2), statedGrand.StringFixed(2), diff.StringFixed(2)),
			Expected: round2(expectedGrand),
			Actual:   inv.Totals.GrandTotal,
		})
	case diff.GreaterThan(cfg.roundingFloor()):
		warns = append(warns, models.Finding{
			Kind:     models.KindGrandTotalRounding,
			Severity: models.SeverityMinor,
			Field:    "totals.grandTotal",
			Message:  fmt.Sprintf("Grand total has minor rounding difference: %s", diff.StringFixed(4)),
			Expected: round2(expectedGrand),
			Actual:   inv.Totals.GrandTotal,
		})
	}

	return append(errs, warns...)
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
