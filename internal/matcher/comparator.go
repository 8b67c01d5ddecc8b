// Package matcher compares an incoming invoice against its persisted
// counterpart and decides whether the submission is a duplicate.
//
// Comparison is structural and exact: one EntityComparison per entity kind,
// with dates normalized before comparison and numbers compared without
// tolerance. Arithmetic tolerances belong to the validation package.
//
// Example usage:
//
//	record, _ := reader.FindByNumber(ctx, inv.Number())
//	comparisons := matcher.CompareAll(record, inv)
//	dup := matcher.DetectDuplicate(comparisons, record != nil, byCriteria)
package matcher

import (
	"time"

	"golang.org/x/sync/errgroup"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/parsers"
	"invoice-reconciliation-service/internal/store"
)

// HeaderSnapshot is the comparable form of an invoice header
type HeaderSnapshot struct {
	InvoiceID     *uint   `json:"invoice_id,omitempty"`
	InvoiceNumber *string `json:"invoiceNumber"`
	InvoiceDate   *string `json:"invoiceDate"`
	DueDate       *string `json:"dueDate"`
}

// LineItemsSnapshot is the comparable form of a line item list
type LineItemsSnapshot struct {
	Items []models.LineItem `json:"items"`
	Count int               `json:"count"`
}

// TotalsSnapshot is the comparable form of invoice totals. A zero rounding
// adjustment is stored as nil.
type TotalsSnapshot struct {
	Subtotal   float64  `json:"subtotal"`
	GSTAmount  float64  `json:"gst_amount"`
	RoundOff   *float64 `json:"round_off"`
	GrandTotal float64  `json:"grand_total"`
}

// NewDataComparison reports kind as having no persisted counterpart
func NewDataComparison(kind models.EntityKind, inv *models.Invoice) models.EntityComparison {
	var data interface{}
	switch kind {
	case models.EntityInvoice:
		data = headerSnapshot(inv.InvoiceNumber, parsers.NormalizeDate(inv.InvoiceDate), parsers.NormalizeDate(inv.DueDate))
	case models.EntityVendor:
		data = inv.Vendor
	case models.EntityCustomer:
		data = inv.Customer
	case models.EntityLineItems:
		data = lineItemsSnapshot(inv.LineItems)
	case models.EntityTotals:
		data = inv.Totals
	case models.EntityPayment:
		data = inv.PaymentDetails
	}

	return models.EntityComparison{
		EntityType:  kind,
		ExistsInDB:  false,
		IsIdentical: false,
		Differences: []models.Difference{},
		NewData:     data,
	}
}

// CompareAll runs the six comparisons concurrently and returns them in
// AllEntityKinds order. A nil record yields six new-data comparisons.
func CompareAll(record *store.Record, inv *models.Invoice) []models.EntityComparison {
	kinds := models.AllEntityKinds()
	out := make([]models.EntityComparison, len(kinds))

	if record == nil {
		for i, kind := range kinds {
			out[i] = NewDataComparison(kind, inv)
		}
		return out
	}

	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			out[i] = compareKind(kind, record, inv)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func compareKind(kind models.EntityKind, record *store.Record, inv *models.Invoice) models.EntityComparison {
	switch kind {
	case models.EntityInvoice:
		return CompareHeader(&record.Header, inv.InvoiceHeader)
	case models.EntityVendor:
		return CompareVendor(record.Vendor, inv)
	case models.EntityCustomer:
		return CompareCustomer(record.Customer, inv)
	case models.EntityLineItems:
		return CompareLineItems(record.LineItems, inv)
	case models.EntityTotals:
		return CompareTotals(record.Totals, inv)
	default:
		return ComparePayment(record.Payment, inv)
	}
}

// CompareHeader compares invoice number exactly and both dates after normalization
func CompareHeader(existing *store.Header, incoming models.InvoiceHeader) models.EntityComparison {
	newSnap := headerSnapshot(incoming.InvoiceNumber,
		parsers.NormalizeDate(incoming.InvoiceDate),
		parsers.NormalizeDate(incoming.DueDate))

	if existing == nil {
		return models.EntityComparison{
			EntityType:  models.EntityInvoice,
			Differences: []models.Difference{},
			NewData:     newSnap,
		}
	}

	id := existing.InvoiceID
	oldSnap := headerSnapshot(existing.InvoiceNumber,
		normalizeTime(existing.InvoiceDate),
		normalizeTime(existing.DueDate))
	oldSnap.InvoiceID = &id

	var diffs diffList
	diffs.strings("invoiceNumber", oldSnap.InvoiceNumber, newSnap.InvoiceNumber)
	diffs.strings("invoiceDate", oldSnap.InvoiceDate, newSnap.InvoiceDate)
	diffs.strings("dueDate", oldSnap.DueDate, newSnap.DueDate)

	return diffs.comparison(models.EntityInvoice, oldSnap, newSnap)
}

// CompareVendor compares name, gstin, pan and address
func CompareVendor(existing *models.Vendor, inv *models.Invoice) models.EntityComparison {
	if existing == nil {
		return NewDataComparison(models.EntityVendor, inv)
	}

	incoming := inv.Vendor
	var diffs diffList
	diffs.strings("name", existing.Name, incoming.Name)
	diffs.strings("gstin", existing.GSTIN, incoming.GSTIN)
	diffs.strings("pan", existing.PAN, incoming.PAN)
	diffs.strings("address", existing.Address, incoming.Address)

	return diffs.comparison(models.EntityVendor, *existing, incoming)
}

// CompareCustomer compares name and address
func CompareCustomer(existing *models.Customer, inv *models.Invoice) models.EntityComparison {
	if existing == nil {
		return NewDataComparison(models.EntityCustomer, inv)
	}

	incoming := inv.Customer
	var diffs diffList
	diffs.strings("name", existing.Name, incoming.Name)
	diffs.strings("address", existing.Address, incoming.Address)

	return diffs.comparison(models.EntityCustomer, *existing, incoming)
}

// CompareLineItems compares positionally. A count mismatch yields a single
// item_count difference; an empty persisted list means no counterpart.
func CompareLineItems(existing []models.LineItem, inv *models.Invoice) models.EntityComparison {
	if len(existing) == 0 {
		return NewDataComparison(models.EntityLineItems, inv)
	}

	incoming := inv.LineItems
	var diffs diffList

	if len(existing) != len(incoming) {
		diffs.add(models.Difference{Field: "item_count", Existing: len(existing), New: len(incoming)})
	} else {
		for i := range existing {
			old, cur := existing[i], incoming[i]
			if old.Description != cur.Description {
				diffs.item(i, "description", old.Description, cur.Description)
			}
			diffs.itemFloat(i, "quantity", old.Quantity, cur.Quantity)
			diffs.itemFloat(i, "unit_price", old.UnitPrice, cur.UnitPrice)
			diffs.itemFloat(i, "tax_percent", old.TaxPercent, cur.TaxPercent)
			diffs.itemFloat(i, "amount", old.Amount, cur.Amount)
		}
	}

	return diffs.comparison(models.EntityLineItems, lineItemsSnapshot(existing), lineItemsSnapshot(incoming))
}

// CompareTotals compares the four totals fields with no tolerance
func CompareTotals(existing *models.Totals, inv *models.Invoice) models.EntityComparison {
	if existing == nil {
		return NewDataComparison(models.EntityTotals, inv)
	}

	oldSnap, newSnap := totalsSnapshot(*existing), totalsSnapshot(inv.Totals)
	var diffs diffList
	diffs.float("subtotal", oldSnap.Subtotal, newSnap.Subtotal)
	diffs.float("gst_amount", oldSnap.GSTAmount, newSnap.GSTAmount)
	diffs.optionalFloat("round_off", oldSnap.RoundOff, newSnap.RoundOff)
	diffs.float("grand_total", oldSnap.GrandTotal, newSnap.GrandTotal)

	return diffs.comparison(models.EntityTotals, oldSnap, newSnap)
}

// ComparePayment compares mode, reference and status
func ComparePayment(existing *models.PaymentDetails, inv *models.Invoice) models.EntityComparison {
	if existing == nil {
		return NewDataComparison(models.EntityPayment, inv)
	}

	incoming := inv.PaymentDetails
	var diffs diffList
	diffs.strings("mode", existing.Mode, incoming.Mode)
	diffs.strings("reference", existing.Reference, incoming.Reference)
	if existing.Status != incoming.Status {
		diffs.add(models.Difference{Field: "status", Existing: string(existing.Status), New: string(incoming.Status)})
	}

	return diffs.comparison(models.EntityPayment, *existing, incoming)
}

// diffList accumulates differences for a single comparison
type diffList []models.Difference

func (d *diffList) add(diff models.Difference) {
	*d = append(*d, diff)
}

func (d *diffList) strings(field string, existing, incoming *string) {
	if !equalStrings(existing, incoming) {
		d.add(models.Difference{Field: field, Existing: stringValue(existing), New: stringValue(incoming)})
	}
}

func (d *diffList) float(field string, existing, incoming float64) {
	if existing != incoming {
		d.add(models.Difference{Field: field, Existing: existing, New: incoming})
	}
}

func (d *diffList) optionalFloat(field string, existing, incoming *float64) {
	if !equalFloats(existing, incoming) {
		d.add(models.Difference{Field: field, Existing: floatValue(existing), New: floatValue(incoming)})
	}
}

func (d *diffList) item(index int, field string, existing, incoming interface{}) {
	d.add(models.Difference{Field: field, Existing: existing, New: incoming, ItemIndex: models.IntPtr(index)})
}

func (d *diffList) itemFloat(index int, field string, existing, incoming float64) {
	if existing != incoming {
		d.item(index, field, existing, incoming)
	}
}

func (d diffList) comparison(kind models.EntityKind, existing, incoming interface{}) models.EntityComparison {
	diffs := []models.Difference(d)
	if diffs == nil {
		diffs = []models.Difference{}
	}
	return models.EntityComparison{
		EntityType:   kind,
		ExistsInDB:   true,
		IsIdentical:  len(diffs) == 0,
		Differences:  diffs,
		ExistingData: existing,
		NewData:      incoming,
	}
}

func headerSnapshot(number, invoiceDate, dueDate *string) HeaderSnapshot {
	return HeaderSnapshot{InvoiceNumber: number, InvoiceDate: invoiceDate, DueDate: dueDate}
}

func lineItemsSnapshot(items []models.LineItem) LineItemsSnapshot {
	if items == nil {
		items = []models.LineItem{}
	}
	return LineItemsSnapshot{Items: items, Count: len(items)}
}

func totalsSnapshot(t models.Totals) TotalsSnapshot {
	snap := TotalsSnapshot{Subtotal: t.Subtotal, GSTAmount: t.GSTAmount, GrandTotal: t.GrandTotal}
	if t.RoundOff != nil && *t.RoundOff != 0 {
		snap.RoundOff = models.Float64Ptr(*t.RoundOff)
	}
	return snap
}

func normalizeTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return parsers.NormalizeDateValue(*t)
}

func equalStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalFloats(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stringValue(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func floatValue(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
