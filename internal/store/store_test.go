package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"invoice-reconciliation-service/internal/models"
)

// setupTestDB opens a single-connection in-memory database so that every
// concurrent child load sees the same schema.
func setupTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := OpenDialector(sqlite.Open(":memory:"), &Config{MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewGormStore(gormDB), mock, mockDB
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func seedInvoice(t *testing.T, db *gorm.DB) uint {
	t.Helper()

	inv := InvoiceRow{
		InvoiceNumber: models.StringPtr("INV-100"),
		InvoiceDate:   day(2024, time.January, 15),
		DueDate:       day(2024, time.February, 14),
	}
	require.NoError(t, db.Create(&inv).Error)

	id := inv.InvoiceID
	require.NoError(t, db.Create(&VendorRow{InvoiceID: id, Name: models.StringPtr("  Acme Traders "), GSTIN: models.StringPtr("29ABCDE1234F1Z5")}).Error)
	require.NoError(t, db.Create(&CustomerRow{InvoiceID: id, Name: models.StringPtr("Globex")}).Error)
	require.NoError(t, db.Create(&[]LineItemRow{
		{InvoiceID: id, Description: "Widget", Quantity: 2, UnitPrice: 50, TaxPercent: 18, Amount: 118},
		{InvoiceID: id, Description: "Gadget", Quantity: 1, UnitPrice: 100, TaxPercent: 18, Amount: 118},
	}).Error)
	require.NoError(t, db.Create(&TotalsRow{InvoiceID: id, Subtotal: 200, GSTAmount: 36, GrandTotal: 236}).Error)
	require.NoError(t, db.Create(&PaymentRow{InvoiceID: id, Mode: models.StringPtr("NEFT"), Status: models.StringPtr("Paid")}).Error)

	return id
}

func TestGormStore_FindByNumber(t *testing.T) {
	db := setupTestDB(t)
	id := seedInvoice(t, db.DB)
	s := NewGormStore(db.DB)

	t.Run("loads header and every related entity", func(t *testing.T) {
		record, err := s.FindByNumber(context.Background(), "INV-100")
		require.NoError(t, err)
		require.NotNil(t, record)

		assert.Equal(t, id, record.ID())
		assert.Equal(t, "INV-100", *record.Header.InvoiceNumber)
		require.NotNil(t, record.Header.InvoiceDate)
		assert.Equal(t, "2024-01-15", record.Header.InvoiceDate.Format("2006-01-02"))

		require.NotNil(t, record.Vendor)
		assert.Equal(t, "29ABCDE1234F1Z5", *record.Vendor.GSTIN)
		assert.Nil(t, record.Vendor.PAN)

		require.NotNil(t, record.Customer)
		assert.Equal(t, "Globex", *record.Customer.Name)

		require.Len(t, record.LineItems, 2)
		assert.Equal(t, "Widget", record.LineItems[0].Description)
		assert.Equal(t, "Gadget", record.LineItems[1].Description)

		require.NotNil(t, record.Totals)
		assert.Equal(t, 236.0, record.Totals.GrandTotal)
		assert.Nil(t, record.Totals.RoundOff)

		require.NotNil(t, record.Payment)
		assert.Equal(t, models.PaymentStatusPaid, record.Payment.Status)
	})

	t.Run("missing invoice is not an error", func(t *testing.T) {
		record, err := s.FindByNumber(context.Background(), "INV-404")
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}

func TestGormStore_FindByNumber_PartialRecord(t *testing.T) {
	db := setupTestDB(t)
	inv := InvoiceRow{InvoiceNumber: models.StringPtr("INV-BARE")}
	require.NoError(t, db.DB.Create(&inv).Error)

	record, err := NewGormStore(db.DB).FindByNumber(context.Background(), "INV-BARE")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Nil(t, record.Vendor)
	assert.Nil(t, record.Customer)
	assert.Empty(t, record.LineItems)
	assert.Nil(t, record.Totals)
	assert.Nil(t, record.Payment)
}

func TestGormStore_FindByCriteria(t *testing.T) {
	db := setupTestDB(t)
	seedInvoice(t, db.DB)
	s := NewGormStore(db.DB)
	ctx := context.Background()

	tests := []struct {
		name   string
		number string
		vendor string
		date   time.Time
		want   bool
	}{
		{"exact match", "INV-100", "acme traders", *day(2024, time.January, 15), true},
		{"vendor case and spacing ignored", "INV-100", " ACME Traders  ", *day(2024, time.January, 15), true},
		{"different date", "INV-100", "acme traders", *day(2024, time.January, 16), false},
		{"different vendor", "INV-100", "acme trading", *day(2024, time.January, 15), false},
		{"different number", "INV-101", "acme traders", *day(2024, time.January, 15), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindByCriteria(ctx, tt.number, tt.vendor, tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGormStore_QueryFailures(t *testing.T) {
	t.Run("header lookup failure propagates", func(t *testing.T) {
		s, mock, mockDB := newMockStore(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "invoice" WHERE invoice_number = \$1`).
			WillReturnError(errors.New("connection refused"))

		record, err := s.FindByNumber(context.Background(), "INV-1")
		require.Error(t, err)
		assert.Nil(t, record)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("criteria lookup failure propagates", func(t *testing.T) {
		s, mock, mockDB := newMockStore(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM invoice AS i JOIN vendorinfo v`).
			WillReturnError(errors.New("timeout"))

		_, err := s.FindByCriteria(context.Background(), "INV-1", "acme", time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "criteria lookup")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("criteria lookup returns match from count", func(t *testing.T) {
		s, mock, mockDB := newMockStore(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT count\(\*\) FROM invoice AS i JOIN vendorinfo v`).
			WithArgs("INV-1", "acme", "2024-01-15").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		got, err := s.FindByCriteria(context.Background(), "INV-1", " Acme ", *day(2024, time.January, 15))
		require.NoError(t, err)
		assert.True(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.DSN = "postgres://localhost/invoices"
	assert.NoError(t, valid.Validate())

	missingDSN := DefaultConfig()
	assert.Error(t, missingDSN.Validate())

	badIdle := &Config{DSN: "x", MaxOpenConns: 2, MaxIdleConns: 5}
	assert.Error(t, badIdle.Validate())
}

func TestDialector(t *testing.T) {
	assert.Equal(t, "sqlite", Dialector("sqlite::memory:").Name())
	assert.Equal(t, "postgres", Dialector("postgres://localhost/invoices").Name())
}

func TestOpen_SQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DSN = "sqlite::memory:"
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1

	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.AutoMigrate())
	assert.NoError(t, db.Ping())
}
