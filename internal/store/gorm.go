package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/logger"
)

// GormStore reads persisted invoices through gorm
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormStore creates a Reader over db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("store"),
	}
}

var _ Reader = (*GormStore)(nil)

// FindByNumber implements Reader. Related entities are loaded concurrently
// once the header row is resolved.
func (s *GormStore) FindByNumber(ctx context.Context, invoiceNumber string) (*Record, error) {
	var header InvoiceRow
	err := s.db.WithContext(ctx).
		Where("invoice_number = ?", invoiceNumber).
		Take(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %q: %w", invoiceNumber, err)
	}

	record := &Record{Header: header.toHeader()}
	id := header.InvoiceID

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var row VendorRow
		found, err := s.first(gctx, &row, id)
		if found {
			record.Vendor = row.toModel()
		}
		return err
	})
	g.Go(func() error {
		var row CustomerRow
		found, err := s.first(gctx, &row, id)
		if found {
			record.Customer = row.toModel()
		}
		return err
	})
	g.Go(func() error {
		var rows []LineItemRow
		if err := s.db.WithContext(gctx).Where("invoice_id = ?", id).Order("item_id").Find(&rows).Error; err != nil {
			return fmt.Errorf("load line items for invoice %d: %w", id, err)
		}
		items := make([]models.LineItem, len(rows))
		for i := range rows {
			items[i] = rows[i].toModel()
		}
		record.LineItems = items
		return nil
	})
	g.Go(func() error {
		var row TotalsRow
		found, err := s.first(gctx, &row, id)
		if found {
			record.Totals = row.toModel()
		}
		return err
	})
	g.Go(func() error {
		var row PaymentRow
		found, err := s.first(gctx, &row, id)
		if found {
			record.Payment = row.toModel()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"invoice_id":     id,
		"invoice_number": invoiceNumber,
		"line_items":     len(record.LineItems),
	}).Debug("Loaded persisted invoice")

	return record, nil
}

// first loads the single child row of invoiceID into dest
func (s *GormStore) first(ctx context.Context, dest interface{ TableName() string }, invoiceID uint) (bool, error) {
	result := s.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Limit(1).Find(dest)
	if result.Error != nil {
		return false, fmt.Errorf("load %s for invoice %d: %w", dest.TableName(), invoiceID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByCriteria implements Reader
func (s *GormStore) FindByCriteria(ctx context.Context, invoiceNumber, vendorName string, invoiceDate time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("invoice AS i").
		Joins("JOIN vendorinfo v ON i.invoice_id = v.invoice_id").
		Where("i.invoice_number = ?", invoiceNumber).
		Where("LOWER(TRIM(v.name)) = ?", strings.ToLower(strings.TrimSpace(vendorName))).
		Where("DATE(i.invoice_date) = ?", invoiceDate.Format("2006-01-02")).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("criteria lookup for invoice %q: %w", invoiceNumber, err)
	}
	return count > 0, nil
}
