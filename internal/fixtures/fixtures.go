// Package fixtures provides invoice scenarios shared by tests and the seed command.
package fixtures

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/parsers"
	"invoice-reconciliation-service/internal/store"
)

// Invoice returns an internally consistent invoice: every line amount,
// subtotal, tax total and grand total agrees with the line items.
func Invoice() *models.Invoice {
	return &models.Invoice{
		InvoiceHeader: models.InvoiceHeader{
			InvoiceNumber: models.StringPtr("INV-2024-001"),
			InvoiceDate:   models.StringPtr("15-Jan-2024"),
			DueDate:       models.StringPtr("2024-02-14"),
		},
		Vendor: models.Vendor{
			Name:    models.StringPtr("Acme Traders"),
			GSTIN:   models.StringPtr("29ABCDE1234F1Z5"),
			PAN:     models.StringPtr("ABCDE1234F"),
			Address: models.StringPtr("12 MG Road, Bengaluru"),
		},
		Customer: models.Customer{
			Name:    models.StringPtr("Globex Pvt Ltd"),
			Address: models.StringPtr("4 Park Street, Kolkata"),
		},
		LineItems: []models.LineItem{
			{Description: "Widget", Quantity: 2, UnitPrice: 50, TaxPercent: 18, Amount: 118},
			{Description: "Gadget", Quantity: 1, UnitPrice: 100, TaxPercent: 18, Amount: 118},
		},
		Totals: models.Totals{
			Subtotal:   200,
			GSTAmount:  36,
			GrandTotal: 236,
		},
		PaymentDetails: models.PaymentDetails{
			Mode:      models.StringPtr("NEFT"),
			Reference: models.StringPtr("UTR0001"),
			Status:    models.PaymentStatusUnpaid,
		},
	}
}

// Clone returns a deep copy of inv
func Clone(inv *models.Invoice) *models.Invoice {
	data, err := json.Marshal(inv)
	if err != nil {
		panic(err)
	}
	var out models.Invoice
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}

// RecordFrom builds the persisted form of inv under the given identity
func RecordFrom(inv *models.Invoice, id uint) *store.Record {
	c := Clone(inv)

	vendor := c.Vendor
	customer := c.Customer
	totals := c.Totals
	payment := c.PaymentDetails

	return &store.Record{
		Header: store.Header{
			InvoiceID:     id,
			InvoiceNumber: c.InvoiceNumber,
			InvoiceDate:   parseDate(c.InvoiceDate),
			DueDate:       parseDate(c.DueDate),
		},
		Vendor:    &vendor,
		Customer:  &customer,
		LineItems: c.LineItems,
		Totals:    &totals,
		Payment:   &payment,
	}
}

func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, ok := parsers.ParseDate(*s)
	if !ok {
		return nil
	}
	return &t
}

// Scenario pairs a persisted invoice with a submission against it
type Scenario struct {
	Name        string
	Description string
	Persisted   *models.Invoice
	Submitted   *models.Invoice
}

// Scenarios returns the standard reconciliation scenarios
func Scenarios() []Scenario {
	var out []Scenario
	add := func(name, description string, number string, mutate func(persisted, submitted *models.Invoice)) {
		persisted := Invoice()
		persisted.InvoiceNumber = models.StringPtr(number)
		submitted := Clone(persisted)
		if mutate != nil {
			mutate(persisted, submitted)
		}
		out = append(out, Scenario{Name: name, Description: description, Persisted: persisted, Submitted: submitted})
	}

	add("duplicate", "identical resubmission", "INV-SCN-001", nil)
	add("line-item-drift", "one quantity changed, everything else unchanged", "INV-SCN-002", func(_, s *models.Invoice) {
		s.LineItems[0].Quantity = 3
		s.LineItems[0].Amount = 177
	})
	add("payment-regression", "persisted Paid, submitted Unpaid", "INV-SCN-003", func(p, s *models.Invoice) {
		p.PaymentDetails.Status = models.PaymentStatusPaid
		s.PaymentDetails.Status = models.PaymentStatusUnpaid
	})
	add("tax-id-removed", "vendor GSTIN dropped from the submission", "INV-SCN-004", func(_, s *models.Invoice) {
		s.Vendor.GSTIN = models.StringPtr("")
	})
	add("amount-discrepancy", "grand total raised well beyond tolerance", "INV-SCN-005", func(_, s *models.Invoice) {
		s.Totals.GrandTotal = 300
	})

	newInvoice := Invoice()
	newInvoice.InvoiceNumber = models.StringPtr("INV-SCN-NEW")
	out = append(out, Scenario{Name: "new-invoice", Description: "no persisted counterpart", Submitted: newInvoice})

	return out
}

// MemoryStore is a store.Reader over invoices held in memory. Record IDs are
// assigned in insertion order starting at 1.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*store.Record
	nextID  uint
}

var _ store.Reader = (*MemoryStore)(nil)

// NewMemoryStore persists each invoice under its number
func NewMemoryStore(invoices ...*models.Invoice) *MemoryStore {
	s := &MemoryStore{records: make(map[string]*store.Record)}
	for _, inv := range invoices {
		s.Add(inv)
	}
	return s
}

// Add persists inv and returns its identity
func (s *MemoryStore) Add(inv *models.Invoice) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.records[inv.Number()] = RecordFrom(inv, s.nextID)
	return s.nextID
}

// FindByNumber implements store.Reader
func (s *MemoryStore) FindByNumber(_ context.Context, invoiceNumber string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[invoiceNumber], nil
}

// FindByCriteria implements store.Reader
func (s *MemoryStore) FindByCriteria(_ context.Context, invoiceNumber, vendorName string, invoiceDate time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[invoiceNumber]
	if !ok || record.Vendor == nil || record.Header.InvoiceDate == nil {
		return false, nil
	}
	vendor := strings.ToLower(strings.TrimSpace(models.Deref(record.Vendor.Name)))
	return vendor == strings.ToLower(strings.TrimSpace(vendorName)) &&
		record.Header.InvoiceDate.Equal(invoiceDate), nil
}
