package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoice-reconciliation-service/internal/matcher"
	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/parsers"
)

// ClassifierInput is everything gathered before classification
type ClassifierInput struct {
	InvoiceNumber string
	InvoiceExists bool
	Invoice       *models.Invoice
	Comparisons   []models.EntityComparison
	MissingValues []models.Finding
	TaxFindings   []models.Finding
	Duplicate     *models.Finding
}

// Classification holds the ordered critical and non-critical findings
type Classification struct {
	Errors   []models.Finding
	Warnings []models.Finding
}

func (c *Classification) add(f models.Finding) {
	if f.IsError() {
		c.Errors = append(c.Errors, f)
	} else {
		c.Warnings = append(c.Warnings, f)
	}
}

func (c *Classification) has(kind models.FindingKind) bool {
	for _, f := range c.Errors {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// Classify maps missing values, tax findings, the duplicate finding and every
// comparison difference to findings. The output order is fixed: missing
// values, tax findings, the duplicate finding, then comparisons in entity order.
func Classify(in ClassifierInput, cfg *Config) Classification {
	cfg = orDefault(cfg)
	out := Classification{Errors: []models.Finding{}, Warnings: []models.Finding{}}

	for _, f := range in.MissingValues {
		out.add(f)
	}
	for _, f := range in.TaxFindings {
		out.add(f)
	}
	if in.Duplicate != nil {
		out.add(*in.Duplicate)
	}

	for _, comp := range in.Comparisons {
		if !comp.ExistsInDB {
			continue
		}

		if comp.EntityType == models.EntityLineItems && in.InvoiceExists && !comp.IsIdentical {
			out.add(lineItemsChanged(in.InvoiceNumber, comp))
		}

		if comp.IsIdentical {
			continue
		}

		switch comp.EntityType {
		case models.EntityInvoice:
			classifyHeader(&out, comp)
		case models.EntityTotals:
			classifyTotals(&out, comp, cfg)
		case models.EntityVendor:
			classifyVendor(&out, comp)
		case models.EntityLineItems:
			classifyLineItems(&out, comp)
		case models.EntityPayment:
			classifyPayment(&out, comp)
		}
	}

	if in.Invoice != nil && !out.has(models.KindDateLogicError) {
		if f := incomingDateLogic(in.Invoice); f != nil {
			out.add(*f)
		}
	}

	return out
}

func lineItemsChanged(number string, comp models.EntityComparison) models.Finding {
	existingCount, newCount := snapshotCount(comp.ExistingData), snapshotCount(comp.NewData)
	return models.Finding{
		Kind:     models.KindLineItemsChanged,
		Severity: models.SeverityModerate,
		Field:    "lineItems",
		Message: fmt.Sprintf("Line items changed for existing invoice '%s': %d differences detected. Items, quantities, or prices have been modified.",
			number, len(comp.Differences)),
		Details: map[string]interface{}{
			"differences_count":    len(comp.Differences),
			"existing_items_count": existingCount,
			"new_items_count":      newCount,
		},
	}
}

func classifyHeader(out *Classification, comp models.EntityComparison) {
	for _, d := range comp.Differences {
		switch d.Field {
		case "invoiceNumber":
			out.add(models.Finding{
				Kind:     models.KindInvoiceNumberMismatch,
				Severity: models.SeverityCritical,
				Field:    "invoiceNumber",
				Message: fmt.Sprintf("Invoice number mismatch: existing '%v' vs new '%v'. Database record has different invoice number.",
					display(d.Existing), display(d.New)),
				Expected: d.Existing,
				Actual:   d.New,
			})

		case "invoiceDate", "dueDate":
			existingDate, ok1 := parseValue(d.Existing)
			newDate, ok2 := parseValue(d.New)

			switch {
			case ok1 && ok2:
			case ok1 && isEmpty(d.New), ok2 && isEmpty(d.Existing):
				// one side absent; a missing date is still a change
			default:
				continue
			}

			if d.Field == "dueDate" && ok2 {
				if invoiceDate, ok := existingInvoiceDate(comp); ok && newDate.Before(invoiceDate) {
					out.add(dateLogicError(newDate, invoiceDate))
					continue
				}
			}

			if ok1 && ok2 && existingDate.Equal(newDate) {
				continue
			}
			out.add(models.Finding{
				Kind:     models.KindDateChange,
				Severity: models.SeverityModerate,
				Field:    d.Field,
				Message: fmt.Sprintf("Invoice %s changed from %s to %s",
					d.Field, isoOrNone(existingDate, ok1), isoOrNone(newDate, ok2)),
				Expected: d.Existing,
				Actual:   d.New,
			})
		}
	}
}

func isoOrNone(t time.Time, ok bool) string {
	if !ok {
		return "(none)"
	}
	return t.Format(parsers.ISODate)
}

func dateLogicError(due, invoice time.Time) models.Finding {
	return models.Finding{
		Kind:     models.KindDateLogicError,
		Severity: models.SeverityCritical,
		Field:    "dueDate",
		Message: fmt.Sprintf("Due date (%s) is before invoice date (%s)",
			due.Format(parsers.ISODate), invoice.Format(parsers.ISODate)),
		Expected: invoice.Format(parsers.ISODate),
		Actual:   due.Format(parsers.ISODate),
	}
}

// incomingDateLogic flags a submission whose own due date precedes its invoice date
func incomingDateLogic(inv *models.Invoice) *models.Finding {
	if inv.InvoiceDate == nil || inv.DueDate == nil {
		return nil
	}
	invoiceDate, ok1 := parsers.ParseDate(*inv.InvoiceDate)
	dueDate, ok2 := parsers.ParseDate(*inv.DueDate)
	if !ok1 || !ok2 || !dueDate.Before(invoiceDate) {
		return nil
	}
	f := dateLogicError(dueDate, invoiceDate)
	return &f
}

func existingInvoiceDate(comp models.EntityComparison) (time.Time, bool) {
	snap, ok := comp.ExistingData.(matcher.HeaderSnapshot)
	if !ok || snap.InvoiceDate == nil {
		return time.Time{}, false
	}
	return parsers.ParseDate(*snap.InvoiceDate)
}

func classifyTotals(out *Classification, comp models.EntityComparison, cfg *Config) {
	for _, d := range comp.Differences {
		switch d.Field {
		case "grand_total", "subtotal", "gst_amount":
			if f := amountFinding(d, cfg); f != nil {
				out.add(*f)
			}
		case "round_off":
			out.add(models.Finding{
				Kind:     models.KindRoundOffDifference,
				Severity: models.SeverityMinor,
				Field:    "round_off",
				Message:  fmt.Sprintf("Round off difference: existing '%v' vs new '%v'", display(d.Existing), display(d.New)),
				Expected: d.Existing,
				Actual:   d.New,
			})
		}
	}
}

func amountFinding(d models.Difference, cfg *Config) *models.Finding {
	existing, ok1 := toDecimal(d.Existing)
	current, ok2 := toDecimal(d.New)
	if !ok1 || !ok2 {
		return &models.Finding{
			Kind:     models.KindAmountFormat,
			Severity: models.SeverityMinor,
			Field:    d.Field,
			Message:  fmt.Sprintf("Totals %s format difference: existing '%v' vs new '%v'", d.Field, display(d.Existing), display(d.New)),
			Expected: d.Existing,
			Actual:   d.New,
		}
	}

	absolute := current.Sub(existing).Abs()
	// no percentage against a zero base; only the absolute threshold applies
	variance := decimal.Zero
	if !existing.IsZero() {
		variance = absolute.Div(existing.Abs()).Mul(hundred)
	}

	if variance.GreaterThan(cfg.variancePercent()) || absolute.GreaterThan(cfg.varianceAbsolute()) {
		return &models.Finding{
			Kind:     models.KindAmountDiscrepancy,
			Severity: models.SeverityCritical,
			Field:    d.Field,
			Message: fmt.Sprintf("Totals %s difference exceeds threshold: existing %s vs new %s (variance: %s%%, absolute: %s)",
				d.Field, existing.StringFixed(2), current.StringFixed(2), variance.StringFixed(2), absolute.StringFixed(2)),
			Expected: d.Existing,
			Actual:   d.New,
			Details: map[string]interface{}{
				"variance_percent":    round2(variance),
				"absolute_difference": round2(absolute),
			},
		}
	}

	if variance.IsPositive() || absolute.GreaterThan(cfg.lineTolerance()) {
		return &models.Finding{
			Kind:     models.KindAmountRounding,
			Severity: models.SeverityMinor,
			Field:    d.Field,
			Message: fmt.Sprintf("Totals %s minor difference: existing %s vs new %s (variance: %s%%, absolute: %s)",
				d.Field, existing.StringFixed(2), current.StringFixed(2), variance.StringFixed(2), absolute.StringFixed(2)),
			Expected: d.Existing,
			Actual:   d.New,
		}
	}
	return nil
}

func classifyVendor(out *Classification, comp models.EntityComparison) {
	for _, d := range comp.Differences {
		field := "vendor." + d.Field
		switch d.Field {
		case "gstin", "pan":
			label := strings.ToUpper(d.Field)
			if isEmpty(d.New) && !isEmpty(d.Existing) {
				out.add(models.Finding{
					Kind:     models.KindMissingTaxInfo,
					Severity: models.SeverityCritical,
					Field:    field,
					Message:  fmt.Sprintf("Vendor %s removed: was '%v', now missing. This affects tax compliance.", label, display(d.Existing)),
					Expected: d.Existing,
					Actual:   d.New,
				})
			} else {
				out.add(models.Finding{
					Kind:     models.KindTaxInfoChange,
					Severity: models.SeverityModerate,
					Field:    field,
					Message:  fmt.Sprintf("Vendor %s changed: '%v' to '%v'. Verify this is correct.", label, display(d.Existing), display(d.New)),
					Expected: d.Existing,
					Actual:   d.New,
				})
			}
		case "address":
			out.add(models.Finding{
				Kind:     models.KindAddressChange,
				Severity: models.SeverityMinor,
				Field:    field,
				Message:  fmt.Sprintf("Vendor address changed: '%v' to '%v'", display(d.Existing), display(d.New)),
				Expected: d.Existing,
				Actual:   d.New,
			})
		case "name":
			out.add(models.Finding{
				Kind:     models.KindVendorNameChange,
				Severity: models.SeverityModerate,
				Field:    field,
				Message:  fmt.Sprintf("Vendor name changed: '%v' to '%v'. Verify this is the same vendor.", display(d.Existing), display(d.New)),
				Expected: d.Existing,
				Actual:   d.New,
			})
		}
	}
}

func classifyLineItems(out *Classification, comp models.EntityComparison) {
	var countChanged bool
	var content []models.Difference
	for _, d := range comp.Differences {
		if d.Field == "item_count" {
			countChanged = true
		} else {
			content = append(content, d)
		}
	}

	if countChanged {
		existingCount, newCount := snapshotCount(comp.ExistingData), snapshotCount(comp.NewData)
		out.add(models.Finding{
			Kind:     models.KindLineItemsCountChanged,
			Severity: models.SeverityModerate,
			Field:    "lineItems",
			Message: fmt.Sprintf("Line items count changed: existing invoice has %d items, new data has %d items",
				existingCount, newCount),
			Expected: existingCount,
			Actual:   newCount,
		})
	}

	if len(content) > 0 {
		out.add(models.Finding{
			Kind:     models.KindLineItemsContentChanged,
			Severity: models.SeverityModerate,
			Field:    "lineItems",
			Message: fmt.Sprintf("Line items content changed: %d item field differences detected (description, quantity, price, tax, or amount)",
				len(content)),
			Details: map[string]interface{}{"differences": content},
		})
	}
}

func classifyPayment(out *Classification, comp models.EntityComparison) {
	for _, d := range comp.Differences {
		if d.Field != "status" {
			out.add(models.Finding{
				Kind:     models.KindPaymentFieldChange,
				Severity: models.SeverityMinor,
				Field:    "payment." + d.Field,
				Message:  fmt.Sprintf("Payment %s changed: '%v' to '%v'", d.Field, display(d.Existing), display(d.New)),
				Expected: d.Existing,
				Actual:   d.New,
			})
			continue
		}

		existing, _ := d.Existing.(string)
		current, _ := d.New.(string)
		regressed := existing == string(models.PaymentStatusPaid) &&
			(current == string(models.PaymentStatusUnpaid) || current == string(models.PaymentStatusPartial))

		if regressed {
			out.add(models.Finding{
				Kind:     models.KindPaymentStatusRegression,
				Severity: models.SeverityCritical,
				Field:    "payment.status",
				Message: fmt.Sprintf("Payment status regressed from '%s' to '%s'. This indicates a potential payment reversal issue.",
					existing, current),
				Expected: existing,
				Actual:   current,
			})
		} else if existing != current {
			out.add(models.Finding{
				Kind:     models.KindPaymentStatusChange,
				Severity: models.SeverityModerate,
				Field:    "payment.status",
				Message:  fmt.Sprintf("Payment status changed from '%s' to '%s'. Verify this is correct.", existing, current),
				Expected: existing,
				Actual:   current,
			})
		}
	}
}

func snapshotCount(data interface{}) int {
	if snap, ok := data.(matcher.LineItemsSnapshot); ok {
		return snap.Count
	}
	return 0
}

func parseValue(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	return parsers.ParseDate(s)
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func display(v interface{}) interface{} {
	if v == nil {
		return "(none)"
	}
	return v
}
