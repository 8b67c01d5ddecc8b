package reconciler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/logger"
)

// BatchItem is the outcome of one submission in a batch
type BatchItem struct {
	Index         int                          `json:"index"`
	InvoiceNumber string                       `json:"invoice_number"`
	Result        *models.ReconciliationResult `json:"result,omitempty"`
	Err           error                        `json:"-"`
}

// BatchResult holds every item of a batch in input order
type BatchResult struct {
	Items []BatchItem          `json:"items"`
	Stats logger.ProgressStats `json:"stats"`
}

// Failed returns the items that could not be reconciled
func (b *BatchResult) Failed() []BatchItem {
	var out []BatchItem
	for _, item := range b.Items {
		if item.Err != nil {
			out = append(out, item)
		}
	}
	return out
}

// Results returns the successful results in input order
func (b *BatchResult) Results() []*models.ReconciliationResult {
	out := make([]*models.ReconciliationResult, 0, len(b.Items))
	for _, item := range b.Items {
		if item.Result != nil {
			out = append(out, item.Result)
		}
	}
	return out
}

// ReconcileBatch reconciles independent submissions with at most workers in
// flight. A failed item does not stop the batch; cancelling ctx does.
func (ro *ReconciliationOrchestrator) ReconcileBatch(ctx context.Context, invoices []*models.Invoice, workers int) (*BatchResult, error) {
	if workers <= 0 {
		workers = ro.config.Workers
	}

	interval := time.Minute
	if ro.config.ProgressReporting {
		interval = 2 * time.Second
	}
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "batch_reconciliation",
		Total:       int64(len(invoices)),
		LogInterval: interval,
		Logger:      ro.logger,
	})

	items := make([]BatchItem, len(invoices))
	for i, inv := range invoices {
		items[i].Index = i
		if inv != nil {
			items[i].InvoiceNumber = inv.Number()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, inv := range invoices {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			items[i].Result, items[i].Err = ro.Reconcile(gctx, inv)
			tracker.Record(items[i].Err)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats := tracker.Complete()
	return &BatchResult{Items: items, Stats: stats}, err
}
