package matcher

import (
	"fmt"
	"strings"
	"time"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/parsers"
)

const (
	criteriaDuplicateMessage = "Duplicate invoice detected: invoice number '%s', vendor name '%s' and invoice date %s already exist in the database. This appears to be a duplicate submission."
	identityDuplicateMessage = "Duplicate invoice detected: all entities (invoice, vendor, customer, line items, totals, payment) are identical to the existing invoice in the database. This appears to be a complete duplicate submission."
)

// Criteria is the key used by the criteria-match duplicate heuristic.
// VendorName keeps the submitted spelling; lookups compare LookupVendor.
type Criteria struct {
	InvoiceNumber string
	VendorName    string
	InvoiceDate   time.Time
}

// LookupVendor is the vendor name as matched against the store
func (c Criteria) LookupVendor() string {
	return strings.ToLower(c.VendorName)
}

// CriteriaFor extracts the duplicate criteria from inv. ok is false unless
// the invoice number and vendor name are non-blank and the invoice date parses.
func CriteriaFor(inv *models.Invoice) (Criteria, bool) {
	number := inv.Number()
	vendor := models.Deref(inv.Vendor.Name)
	if number == "" || vendor == "" || inv.InvoiceDate == nil {
		return Criteria{}, false
	}

	date, ok := parsers.ParseDate(*inv.InvoiceDate)
	if !ok {
		return Criteria{}, false
	}

	return Criteria{InvoiceNumber: number, VendorName: vendor, InvoiceDate: date}, true
}

// CriteriaApplies reports whether the criteria heuristic can run for inv
func CriteriaApplies(inv *models.Invoice) bool {
	_, ok := CriteriaFor(inv)
	return ok
}

// IsCompleteDuplicate reports whether all six entities exist and are identical
func IsCompleteDuplicate(comparisons []models.EntityComparison) bool {
	if len(comparisons) != len(models.AllEntityKinds()) {
		return false
	}
	for _, c := range comparisons {
		if !c.ExistsInDB || !c.IsIdentical {
			return false
		}
	}
	return true
}

// DetectDuplicate returns at most one critical duplicate_invoice finding.
// A criteria match takes precedence over full identity.
func DetectDuplicate(comparisons []models.EntityComparison, invoiceExists bool, byCriteria *Criteria) *models.Finding {
	if byCriteria != nil {
		return &models.Finding{
			Kind:     models.KindDuplicateInvoice,
			Severity: models.SeverityCritical,
			Message: fmt.Sprintf(criteriaDuplicateMessage,
				byCriteria.InvoiceNumber, byCriteria.VendorName, byCriteria.InvoiceDate.Format(parsers.ISODate)),
			Details: map[string]interface{}{"heuristic": "criteria"},
		}
	}

	if invoiceExists && IsCompleteDuplicate(comparisons) {
		return &models.Finding{
			Kind:     models.KindDuplicateInvoice,
			Severity: models.SeverityCritical,
			Message:  identityDuplicateMessage,
			Details:  map[string]interface{}{"heuristic": "full_identity"},
		}
	}

	return nil
}
