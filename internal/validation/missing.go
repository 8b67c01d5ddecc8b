package validation

import "invoice-reconciliation-service/internal/models"

// CheckMissingValues reports mandatory fields that are absent or blank.
// Critical findings come first in field order, followed by the moderate ones
// in the same relative order.
func CheckMissingValues(inv *models.Invoice) []models.Finding {
	var errs, warns []models.Finding

	if models.IsBlank(inv.Vendor.GSTIN) {
		errs = append(errs, missing(models.KindMissingGSTIN, models.SeverityCritical, "vendor.gstin",
			"Vendor GSTIN is missing or empty. GSTIN is required for tax compliance."))
	}
	if models.IsBlank(inv.Vendor.Name) {
		errs = append(errs, missing(models.KindMissingVendorName, models.SeverityCritical, "vendor.name",
			"Vendor name is missing or empty."))
	}
	if models.IsBlank(inv.Customer.Name) {
		warns = append(warns, missing(models.KindMissingCustomerName, models.SeverityModerate, "customer.name",
			"Customer name is missing or empty."))
	}
	if models.IsBlank(inv.InvoiceNumber) {
		errs = append(errs, missing(models.KindMissingInvoiceNumber, models.SeverityCritical, "invoiceNumber",
			"Invoice number is missing or empty."))
	}
	if models.IsBlank(inv.InvoiceDate) {
		warns = append(warns, missing(models.KindMissingInvoiceDate, models.SeverityModerate, "invoiceDate",
			"Invoice date is missing or empty."))
	}
	if len(inv.LineItems) == 0 {
		errs = append(errs, missing(models.KindMissingLineItems, models.SeverityCritical, "lineItems",
			"No line items found in invoice. Invoice must have at least one line item."))
	} else if inv.Totals.GrandTotal == 0 {
		errs = append(errs, missing(models.KindMissingGrandTotal, models.SeverityCritical, "totals.grandTotal",
			"Grand total is missing or zero, but line items exist."))
	}

	return append(errs, warns...)
}

func missing(kind models.FindingKind, severity models.Severity, field, message string) models.Finding {
	return models.Finding{Kind: kind, Severity: severity, Field: field, Message: message}
}
