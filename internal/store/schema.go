package store

import (
	"time"

	"invoice-reconciliation-service/internal/models"
)

// InvoiceRow maps the invoice table
type InvoiceRow struct {
	InvoiceID     uint       `gorm:"column:invoice_id;primaryKey;autoIncrement"`
	InvoiceNumber *string    `gorm:"column:invoice_number;size:100;uniqueIndex:unique_invoice_number"`
	InvoiceDate   *time.Time `gorm:"column:invoice_date;type:date"`
	DueDate       *time.Time `gorm:"column:due_date;type:date"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (InvoiceRow) TableName() string { return "invoice" }

// VendorRow maps the vendorinfo table
type VendorRow struct {
	VendorID  uint    `gorm:"column:vendor_id;primaryKey;autoIncrement"`
	InvoiceID uint    `gorm:"column:invoice_id;not null;uniqueIndex"`
	Name      *string `gorm:"column:name;size:255"`
	GSTIN     *string `gorm:"column:gstin;size:50"`
	PAN       *string `gorm:"column:pan;size:50"`
	Address   *string `gorm:"column:address;type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (VendorRow) TableName() string { return "vendorinfo" }

// CustomerRow maps the customerinfo table
type CustomerRow struct {
	CustomerID uint    `gorm:"column:customer_id;primaryKey;autoIncrement"`
	InvoiceID  uint    `gorm:"column:invoice_id;not null;uniqueIndex"`
	Name       *string `gorm:"column:name;size:255"`
	Address    *string `gorm:"column:address;type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (CustomerRow) TableName() string { return "customerinfo" }

// LineItemRow maps the item_details table
type LineItemRow struct {
	ItemID      uint    `gorm:"column:item_id;primaryKey;autoIncrement"`
	InvoiceID   uint    `gorm:"column:invoice_id;not null;index"`
	Description string  `gorm:"column:description;type:text;not null"`
	Quantity    float64 `gorm:"column:quantity;type:decimal(10,2);not null"`
	UnitPrice   float64 `gorm:"column:unit_price;type:decimal(10,2);not null"`
	TaxPercent  float64 `gorm:"column:tax_percent;type:decimal(5,2);not null"`
	Amount      float64 `gorm:"column:amount;type:decimal(10,2);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (LineItemRow) TableName() string { return "item_details" }

// TotalsRow maps the totals table
type TotalsRow struct {
	TotalsID   uint     `gorm:"column:totals_id;primaryKey;autoIncrement"`
	InvoiceID  uint     `gorm:"column:invoice_id;not null;uniqueIndex"`
	Subtotal   float64  `gorm:"column:subtotal;type:decimal(10,2);not null"`
	GSTAmount  float64  `gorm:"column:gst_amount;type:decimal(10,2);not null"`
	RoundOff   *float64 `gorm:"column:round_off;type:decimal(10,2)"`
	GrandTotal float64  `gorm:"column:grand_total;type:decimal(10,2);not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (TotalsRow) TableName() string { return "totals" }

// PaymentRow maps the paymentinfo table
type PaymentRow struct {
	PaymentID uint    `gorm:"column:payment_id;primaryKey;autoIncrement"`
	InvoiceID uint    `gorm:"column:invoice_id;not null;uniqueIndex"`
	Mode      *string `gorm:"column:mode;size:100"`
	Reference *string `gorm:"column:reference;size:255"`
	Status    *string `gorm:"column:status;size:20"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PaymentRow) TableName() string { return "paymentinfo" }

// AllTables lists every row model, parents first
func AllTables() []interface{} {
	return []interface{}{
		&InvoiceRow{},
		&VendorRow{},
		&CustomerRow{},
		&LineItemRow{},
		&TotalsRow{},
		&PaymentRow{},
	}
}

func (r *InvoiceRow) toHeader() Header {
	return Header{
		InvoiceID:     r.InvoiceID,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceDate:   r.InvoiceDate,
		DueDate:       r.DueDate,
	}
}

func (r *VendorRow) toModel() *models.Vendor {
	return &models.Vendor{Name: r.Name, GSTIN: r.GSTIN, PAN: r.PAN, Address: r.Address}
}

func (r *CustomerRow) toModel() *models.Customer {
	return &models.Customer{Name: r.Name, Address: r.Address}
}

func (r *LineItemRow) toModel() models.LineItem {
	return models.LineItem{
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		TaxPercent:  r.TaxPercent,
		Amount:      r.Amount,
	}
}

func (r *TotalsRow) toModel() *models.Totals {
	return &models.Totals{
		Subtotal:   r.Subtotal,
		GSTAmount:  r.GSTAmount,
		RoundOff:   r.RoundOff,
		GrandTotal: r.GrandTotal,
	}
}

func (r *PaymentRow) toModel() *models.PaymentDetails {
	p := &models.PaymentDetails{Mode: r.Mode, Reference: r.Reference}
	if r.Status != nil {
		p.Status = models.PaymentStatus(*r.Status)
	}
	return p
}
