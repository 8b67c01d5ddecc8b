package models

import (
	"fmt"
	"strings"
	"time"
)

// PaymentStatus is the settlement state reported on an invoice
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusUnpaid  PaymentStatus = "Unpaid"
	PaymentStatusPartial PaymentStatus = "Partial"
	PaymentStatusUnset   PaymentStatus = ""
)

// IsValid checks if the payment status is one of the known values
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusUnset:
		return true
	}
	return false
}

// InvoiceHeader carries the identifying fields of an invoice
type InvoiceHeader struct {
	InvoiceNumber *string `json:"invoiceNumber"`
	InvoiceDate   *string `json:"invoiceDate"`
	DueDate       *string `json:"dueDate"`
}

// Vendor is the issuing party
type Vendor struct {
	Name    *string `json:"name"`
	GSTIN   *string `json:"gstin"`
	PAN     *string `json:"pan"`
	Address *string `json:"address"`
}

// Customer is the billed party
type Customer struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

// LineItem is one billed line
type LineItem struct {
	Description string  `json:"description" binding:"required"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TaxPercent  float64 `json:"taxPercent"`
	Amount      float64 `json:"amount"`
}

// Totals holds the aggregate amounts stated on the invoice
type Totals struct {
	Subtotal   float64  `json:"subtotal"`
	GSTAmount  float64  `json:"gstAmount"`
	RoundOff   *float64 `json:"roundOff"`
	GrandTotal float64  `json:"grandTotal"`
}

// PaymentDetails describes how and whether the invoice was settled
type PaymentDetails struct {
	Mode      *string       `json:"mode"`
	Reference *string       `json:"reference"`
	Status    PaymentStatus `json:"status" binding:"payment_status"`
}

// Invoice is one structured invoice submission
type Invoice struct {
	InvoiceHeader
	Vendor         Vendor         `json:"vendor"`
	Customer       Customer       `json:"customer"`
	LineItems      []LineItem     `json:"lineItems" binding:"dive"`
	Totals         Totals         `json:"totals"`
	PaymentDetails PaymentDetails `json:"paymentDetails"`
}

// Number returns the trimmed invoice number, or "" when absent
func (inv *Invoice) Number() string {
	return Deref(inv.InvoiceNumber)
}

// NewMinimalInvoice builds a submission carrying only an invoice number,
// with no line items and zero totals.
func NewMinimalInvoice(number string) *Invoice {
	return &Invoice{
		InvoiceHeader: InvoiceHeader{InvoiceNumber: StringPtr(number)},
		LineItems:     []LineItem{},
	}
}

// String returns a string representation of the Invoice
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{Number: %s, Vendor: %s, Items: %d, GrandTotal: %.2f}",
		inv.Number(), Deref(inv.Vendor.Name), len(inv.LineItems), inv.Totals.GrandTotal)
}

// EntityKind names one of the six structural groupings of invoice data
type EntityKind string

const (
	EntityInvoice   EntityKind = "invoice"
	EntityVendor    EntityKind = "vendor"
	EntityCustomer  EntityKind = "customer"
	EntityLineItems EntityKind = "line_items"
	EntityTotals    EntityKind = "totals"
	EntityPayment   EntityKind = "payment"
)

// AllEntityKinds returns the entity kinds in reporting order
func AllEntityKinds() []EntityKind {
	return []EntityKind{EntityInvoice, EntityVendor, EntityCustomer, EntityLineItems, EntityTotals, EntityPayment}
}

// Difference is one unequal field between the persisted and incoming entity
type Difference struct {
	Field     string      `json:"field"`
	Existing  interface{} `json:"existing"`
	New       interface{} `json:"new"`
	ItemIndex *int        `json:"item_index,omitempty"`
}

// EntityComparison is the structural diff for a single entity kind
type EntityComparison struct {
	EntityType   EntityKind   `json:"entity_type"`
	ExistsInDB   bool         `json:"exists_in_db"`
	IsIdentical  bool         `json:"is_identical"`
	Differences  []Difference `json:"differences"`
	ExistingData interface{}  `json:"existing_data"`
	NewData      interface{}  `json:"new_data"`
}

// DifferenceFor returns the first difference on field, if any
func (c EntityComparison) DifferenceFor(field string) (Difference, bool) {
	for _, d := range c.Differences {
		if d.Field == field {
			return d, true
		}
	}
	return Difference{}, false
}

// Severity ranks a finding
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
	SeverityNone     Severity = "none"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}

// FindingKind is the closed taxonomy of findings
type FindingKind string

const (
	// missing values
	KindMissingGSTIN         FindingKind = "missing_gstin"
	KindMissingVendorName    FindingKind = "missing_vendor_name"
	KindMissingCustomerName  FindingKind = "missing_customer_name"
	KindMissingInvoiceNumber FindingKind = "missing_invoice_number"
	KindMissingInvoiceDate   FindingKind = "missing_invoice_date"
	KindMissingLineItems     FindingKind = "missing_line_items"
	KindMissingGrandTotal    FindingKind = "missing_grand_total"

	// arithmetic
	KindLineItemCalculationError   FindingKind = "line_item_calculation_error"
	KindSubtotalMismatch           FindingKind = "subtotal_mismatch"
	KindGSTAmountMismatch          FindingKind = "gst_amount_mismatch"
	KindGrandTotalCalculationError FindingKind = "grand_total_calculation_error"
	KindGrandTotalRounding         FindingKind = "grand_total_rounding"

	// duplicates
	KindDuplicateInvoice FindingKind = "duplicate_invoice"

	// differences against the persisted record
	KindLineItemsChanged         FindingKind = "line_items_changed"
	KindInvoiceNumberMismatch    FindingKind = "invoice_number_mismatch"
	KindDateLogicError           FindingKind = "date_logic_error"
	KindDateChange               FindingKind = "date_change"
	KindAmountDiscrepancy        FindingKind = "amount_discrepancy"
	KindAmountRounding           FindingKind = "amount_rounding"
	KindAmountFormat             FindingKind = "amount_format"
	KindRoundOffDifference       FindingKind = "round_off_difference"
	KindMissingTaxInfo           FindingKind = "missing_tax_info"
	KindTaxInfoChange            FindingKind = "tax_info_change"
	KindAddressChange            FindingKind = "address_change"
	KindVendorNameChange         FindingKind = "vendor_name_change"
	KindLineItemsCountChanged    FindingKind = "line_items_count_changed"
	KindLineItemsContentChanged  FindingKind = "line_items_content_changed"
	KindPaymentStatusRegression  FindingKind = "payment_status_regression"
	KindPaymentStatusChange      FindingKind = "payment_status_change"
	KindPaymentFieldChange       FindingKind = "payment_field_change"
)

// Finding is a single classified discrepancy or invariant violation
type Finding struct {
	Kind      FindingKind            `json:"type"`
	Message   string                 `json:"message"`
	Severity  Severity               `json:"severity"`
	Field     string                 `json:"field,omitempty"`
	Expected  interface{}            `json:"expected,omitempty"`
	Actual    interface{}            `json:"actual,omitempty"`
	LineIndex *int                   `json:"line_item_index,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// IsError reports whether the finding is an error rather than a warning
func (f Finding) IsError() bool {
	return f.Severity == SeverityCritical
}

// ComparisonSummary holds aggregate counts over the six comparisons
type ComparisonSummary struct {
	TotalEntities    int `json:"total_entities"`
	ExistingCount    int `json:"existing_count"`
	IdenticalCount   int `json:"identical_count"`
	DifferentCount   int `json:"different_count"`
	NewCount         int `json:"new_count"`
	TotalDifferences int `json:"total_differences"`
}

// NewComparisonSummary counts existing, identical, changed and new entities
func NewComparisonSummary(comparisons []EntityComparison) ComparisonSummary {
	summary := ComparisonSummary{TotalEntities: len(comparisons)}
	for _, c := range comparisons {
		summary.TotalDifferences += len(c.Differences)
		switch {
		case !c.ExistsInDB:
			summary.NewCount++
		case c.IsIdentical:
			summary.ExistingCount++
			summary.IdenticalCount++
		default:
			summary.ExistingCount++
			summary.DifferentCount++
		}
	}
	return summary
}

// NarrativeSummary is the free-text rendering produced by an external collaborator
type NarrativeSummary struct {
	Summary  string   `json:"summary"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Severity string   `json:"severity"`
}

// NarrativeRequest is what the narrative collaborator receives
type NarrativeRequest struct {
	InvoiceNumber       string             `json:"invoice_number"`
	InvoiceExists       bool               `json:"invoice_exists"`
	DuplicateByCriteria bool               `json:"duplicate_by_criteria"`
	Comparisons         []EntityComparison `json:"comparisons"`
	TaxFindings         []Finding          `json:"tax_validation_errors"`
	Errors              []Finding          `json:"errors"`
	Warnings            []Finding          `json:"warnings"`
}

// ReconciliationResult is the outcome of reconciling one submission
type ReconciliationResult struct {
	InvoiceExists       bool               `json:"invoice_exists"`
	InvoiceID           *uint              `json:"invoice_id"`
	InvoiceNumber       string             `json:"invoice_number"`
	DuplicateByCriteria bool               `json:"duplicate_by_criteria"`
	Comparisons         []EntityComparison `json:"comparisons"`
	Summary             ComparisonSummary  `json:"summary"`
	MissingValueChecks  []Finding          `json:"missing_value_checks"`
	TaxFindings         []Finding          `json:"tax_validation_errors"`
	Errors              []Finding          `json:"errors"`
	Warnings            []Finding          `json:"warnings"`
	Narrative           *NarrativeSummary  `json:"llm_summary"`
	ProcessedAt         time.Time          `json:"processed_at"`
	Duration            time.Duration      `json:"duration_ns"`
}

// Findings returns errors followed by warnings
func (r *ReconciliationResult) Findings() []Finding {
	all := make([]Finding, 0, len(r.Errors)+len(r.Warnings))
	all = append(all, r.Errors...)
	return append(all, r.Warnings...)
}

// HasErrors reports whether any critical finding was produced
func (r *ReconciliationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// CountBySeverity tallies findings per severity
func (r *ReconciliationResult) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range r.Findings() {
		counts[f.Severity]++
	}
	return counts
}

// FindingsOfKind returns every finding of the given kind, in order
func (r *ReconciliationResult) FindingsOfKind(kind FindingKind) []Finding {
	var out []Finding
	for _, f := range r.Findings() {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// OverallSeverity returns the highest severity present, or SeverityNone
func (r *ReconciliationResult) OverallSeverity() Severity {
	overall := SeverityNone
	for _, f := range r.Findings() {
		if f.Severity.rank() > overall.rank() {
			overall = f.Severity
		}
	}
	return overall
}

// Comparison returns the comparison for kind
func (r *ReconciliationResult) Comparison(kind EntityKind) (EntityComparison, bool) {
	for _, c := range r.Comparisons {
		if c.EntityType == kind {
			return c, true
		}
	}
	return EntityComparison{}, false
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to f
func Float64Ptr(f float64) *float64 {
	return &f
}

// IntPtr returns a pointer to i
func IntPtr(i int) *int {
	return &i
}

// Deref returns the trimmed value of s, or "" when nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// IsBlank reports whether s is nil or whitespace only
func IsBlank(s *string) bool {
	return Deref(s) == ""
}
