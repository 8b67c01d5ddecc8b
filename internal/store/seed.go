package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/parsers"
)

// InsertInvoice persists inv and its related rows in one transaction. It
// exists for seeding development databases; the reconciliation path never
// calls it.
func InsertInvoice(ctx context.Context, db *gorm.DB, inv *models.Invoice) (uint, error) {
	var id uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		header := InvoiceRow{
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceDate:   toDate(inv.InvoiceDate),
			DueDate:       toDate(inv.DueDate),
		}
		if err := tx.Create(&header).Error; err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		id = header.InvoiceID

		rows := []interface{}{
			&VendorRow{InvoiceID: id, Name: inv.Vendor.Name, GSTIN: inv.Vendor.GSTIN, PAN: inv.Vendor.PAN, Address: inv.Vendor.Address},
			&CustomerRow{InvoiceID: id, Name: inv.Customer.Name, Address: inv.Customer.Address},
			&TotalsRow{InvoiceID: id, Subtotal: inv.Totals.Subtotal, GSTAmount: inv.Totals.GSTAmount, RoundOff: inv.Totals.RoundOff, GrandTotal: inv.Totals.GrandTotal},
			paymentRow(id, inv.PaymentDetails),
		}
		for _, row := range rows {
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("insert related row: %w", err)
			}
		}

		for _, item := range inv.LineItems {
			row := LineItemRow{
				InvoiceID:   id,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TaxPercent:  item.TaxPercent,
				Amount:      item.Amount,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert line item: %w", err)
			}
		}
		return nil
	})
	return id, err
}

func paymentRow(id uint, p models.PaymentDetails) *PaymentRow {
	row := &PaymentRow{InvoiceID: id, Mode: p.Mode, Reference: p.Reference}
	if p.Status != models.PaymentStatusUnset {
		status := string(p.Status)
		row.Status = &status
	}
	return row
}

func toDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, ok := parsers.ParseDate(*s)
	if !ok {
		return nil
	}
	return &t
}
