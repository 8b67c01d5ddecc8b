// Package store defines the read-only contract the reconciliation engine has
// with the persisted invoice database, and a gorm-backed implementation of it.
package store

import (
	"context"
	"time"

	"invoice-reconciliation-service/internal/models"
)

// Reader is the query surface the engine depends on. Implementations never
// write; a missing invoice is reported as (nil, nil), not an error.
type Reader interface {
	// FindByNumber resolves the persisted invoice with this exact number and
	// loads all of its related entities.
	FindByNumber(ctx context.Context, invoiceNumber string) (*Record, error)

	// FindByCriteria reports whether an invoice exists with this exact number,
	// a vendor whose trimmed lower-cased name equals vendorName, and this
	// invoice date.
	FindByCriteria(ctx context.Context, invoiceNumber, vendorName string, invoiceDate time.Time) (bool, error)
}

// Header is the persisted invoice header row
type Header struct {
	InvoiceID     uint       `json:"invoice_id"`
	InvoiceNumber *string    `json:"invoiceNumber"`
	InvoiceDate   *time.Time `json:"invoiceDate"`
	DueDate       *time.Time `json:"dueDate"`
}

// Record is a persisted invoice with its related entities. Any related
// entity may be absent.
type Record struct {
	Header    Header
	Vendor    *models.Vendor
	Customer  *models.Customer
	LineItems []models.LineItem
	Totals    *models.Totals
	Payment   *models.PaymentDetails
}

// ID returns the persisted invoice identity
func (r *Record) ID() uint {
	return r.Header.InvoiceID
}
