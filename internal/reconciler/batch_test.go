package reconciler

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-reconciliation-service/internal/fixtures"
	"invoice-reconciliation-service/internal/models"
)

func TestReconcileBatch(t *testing.T) {
	var persisted []*models.Invoice
	var submitted []*models.Invoice
	for _, s := range fixtures.Scenarios() {
		if s.Persisted != nil {
			persisted = append(persisted, s.Persisted)
		}
		submitted = append(submitted, s.Submitted)
	}

	reader := newFakeStore()
	for i, inv := range persisted {
		r := fixtures.RecordFrom(inv, uint(i+1))
		reader.records[inv.Number()] = r
	}

	blank := fixtures.Invoice()
	blank.InvoiceNumber = nil
	submitted = append(submitted, blank)

	o := newOrchestrator(t, reader, nil)
	batch, err := o.ReconcileBatch(context.Background(), submitted, 3)
	require.NoError(t, err)

	require.Len(t, batch.Items, len(submitted))
	for i, item := range batch.Items {
		assert.Equal(t, i, item.Index)
	}

	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, len(submitted)-1, failed[0].Index)

	results := batch.Results()
	require.Len(t, results, len(submitted)-1)
	assert.Equal(t, "INV-SCN-001", results[0].InvoiceNumber)
	assert.Len(t, results[0].FindingsOfKind(models.KindDuplicateInvoice), 1)
	assert.Len(t, results[2].FindingsOfKind(models.KindPaymentStatusRegression), 1)
	assert.Len(t, results[3].FindingsOfKind(models.KindMissingTaxInfo), 1)
	assert.Len(t, results[4].FindingsOfKind(models.KindAmountDiscrepancy), 1)
	assert.False(t, results[5].InvoiceExists)

	assert.Equal(t, int64(len(submitted)), batch.Stats.Total)
	assert.Equal(t, int64(1), batch.Stats.Failed)
}

func TestReconcileBatch_Cancelled(t *testing.T) {
	o := newOrchestrator(t, newFakeStore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := o.ReconcileBatch(ctx, []*models.Invoice{fixtures.Invoice(), fixtures.Invoice()}, 1)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Len(t, batch.Items, 2)
	assert.Empty(t, batch.Results())
}
