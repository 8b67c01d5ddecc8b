// Package reconciler runs the reconciliation of an invoice submission
// against its persisted counterpart.
//
// A reconciliation is a single pass over eight steps:
//  1. Missing-value and tax invariant checks
//  2. Criteria duplicate lookup against the store
//  3. Primary lookup by invoice number
//  4. Six entity comparisons
//  5. Full-identity duplicate detection
//  6. Classification of every finding
//  7. Optional narrative summary
//  8. Result assembly
//
// Store failures abort the reconciliation. Narrative failures are logged and
// the result is returned without a narrative.
//
// Example usage:
//
//	orchestrator, err := reconciler.NewReconciliationOrchestrator(store, narrator, reconciler.DefaultConfig())
//	orchestrator.AddProgressCallback(func(p *reconciler.ReconciliationProgress) {
//		fmt.Printf("%.0f%% - %s\n", p.PercentComplete, p.CurrentStep)
//	})
//
//	result, err := orchestrator.Reconcile(ctx, invoice)
package reconciler

import (
	"context"
	"strings"
	"sync"
	"time"

	"invoice-reconciliation-service/internal/matcher"
	"invoice-reconciliation-service/internal/metrics"
	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/internal/store"
	"invoice-reconciliation-service/internal/validation"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

const totalSteps = 8

// ReconciliationOrchestrator reconciles submissions against a read-only store.
// It is safe for concurrent use once callbacks and metrics are set.
type ReconciliationOrchestrator struct {
	store    store.Reader
	narrator Narrator
	config   *Config
	metrics  *metrics.Metrics
	logger   logger.Logger

	callbacksMu       sync.RWMutex
	progressCallbacks []ProgressCallback
}

// ReconciliationProgress reports how far one reconciliation has advanced
type ReconciliationProgress struct {
	InvoiceNumber   string        `json:"invoice_number"`
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
}

// ProgressCallback is called to report reconciliation progress
type ProgressCallback func(*ReconciliationProgress)

// NewReconciliationOrchestrator creates a new reconciliation orchestrator.
// A nil narrator disables narrative summaries and a nil config uses defaults.
func NewReconciliationOrchestrator(reader store.Reader, narrator Narrator, config *Config) (*ReconciliationOrchestrator, error) {
	if reader == nil {
		return nil, errors.ConfigurationError(
			errors.CodeMissingConfig,
			"store",
			nil,
			nil,
		).WithSuggestion("Provide a persisted store reader")
	}

	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", nil, err)
	}

	if narrator == nil {
		narrator = NoopNarrator{}
	}

	log := logger.GetGlobalLogger().WithComponent("reconciliation_orchestrator")
	log.Debug("Reconciliation orchestrator created")

	return &ReconciliationOrchestrator{
		store:    reader,
		narrator: narrator,
		config:   config,
		logger:   log,
	}, nil
}

// AddProgressCallback adds a progress callback function
func (ro *ReconciliationOrchestrator) AddProgressCallback(callback ProgressCallback) {
	ro.callbacksMu.Lock()
	defer ro.callbacksMu.Unlock()
	ro.progressCallbacks = append(ro.progressCallbacks, callback)
}

// SetMetrics attaches a metrics sink
func (ro *ReconciliationOrchestrator) SetMetrics(m *metrics.Metrics) {
	ro.metrics = m
}

// Config returns the orchestrator configuration
func (ro *ReconciliationOrchestrator) Config() *Config {
	return ro.config
}

// Reconcile runs the full reconciliation for one submission. A missing
// invoice number is rejected before any processing. Findings never produce
// an error; only store failures do.
func (ro *ReconciliationOrchestrator) Reconcile(ctx context.Context, inv *models.Invoice) (*models.ReconciliationResult, error) {
	start := time.Now()

	submission, err := prepareSubmission(inv)
	if err != nil {
		ro.metrics.ObserveReconciliation(nil, metrics.OutcomeClientError, time.Since(start))
		return nil, err
	}

	result, err := ro.reconcile(ctx, submission, start)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.IsCategory(err, errors.CategoryStore) {
			outcome = metrics.OutcomeStoreError
		}
		ro.metrics.ObserveReconciliation(nil, outcome, time.Since(start))
		return nil, err
	}

	ro.metrics.ObserveReconciliation(result, metrics.OutcomeSuccess, result.Duration)
	return result, nil
}

// ReconcileByNumber reports what is known about a persisted invoice by
// reconciling a minimal submission carrying only its number.
func (ro *ReconciliationOrchestrator) ReconcileByNumber(ctx context.Context, invoiceNumber string) (*models.ReconciliationResult, error) {
	return ro.Reconcile(ctx, models.NewMinimalInvoice(invoiceNumber))
}

func (ro *ReconciliationOrchestrator) reconcile(ctx context.Context, inv *models.Invoice, start time.Time) (*models.ReconciliationResult, error) {
	number := inv.Number()
	log := ro.logger.WithField("invoice_number", number)
	progress := &ReconciliationProgress{InvoiceNumber: number, TotalSteps: totalSteps, StartTime: start}

	log.Info("Starting reconciliation")

	// Step 1: checks that need no persisted state
	ro.updateProgress(progress, "Checking required values and tax arithmetic", 0)
	missing := validation.CheckMissingValues(inv)
	tax := validation.ValidateTaxCalculations(inv, ro.config.Validation)

	// Step 2: criteria duplicate lookup
	ro.updateProgress(progress, "Looking up duplicates by criteria", 1)
	var byCriteria *matcher.Criteria
	if criteria, ok := matcher.CriteriaFor(inv); ok {
		found, err := ro.store.FindByCriteria(ctx, criteria.InvoiceNumber, criteria.LookupVendor(), criteria.InvoiceDate)
		if err != nil {
			log.WithError(err).Error("Criteria duplicate lookup failed")
			return nil, storeFailure("criteria_lookup", err)
		}
		if found {
			byCriteria = &criteria
		}
	}

	// Step 3: primary lookup
	ro.updateProgress(progress, "Loading persisted invoice", 2)
	record, err := ro.store.FindByNumber(ctx, number)
	if err != nil {
		log.WithError(err).Error("Persisted invoice lookup failed")
		return nil, storeFailure("invoice_lookup", err)
	}

	// Step 4: comparisons
	ro.updateProgress(progress, "Comparing entities", 3)
	comparisons := matcher.CompareAll(record, inv)

	// Step 5: full-identity duplicate
	ro.updateProgress(progress, "Detecting duplicates", 4)
	duplicate := matcher.DetectDuplicate(comparisons, record != nil, byCriteria)

	// Step 6: classification
	ro.updateProgress(progress, "Classifying differences", 5)
	classified := validation.Classify(validation.ClassifierInput{
		InvoiceNumber: number,
		InvoiceExists: record != nil,
		Invoice:       inv,
		Comparisons:   comparisons,
		MissingValues: missing,
		TaxFindings:   tax,
		Duplicate:     duplicate,
	}, ro.config.Validation)

	result := &models.ReconciliationResult{
		InvoiceExists:       record != nil,
		InvoiceNumber:       number,
		DuplicateByCriteria: byCriteria != nil,
		Comparisons:         comparisons,
		Summary:             models.NewComparisonSummary(comparisons),
		MissingValueChecks:  nonNil(missing),
		TaxFindings:         nonNil(tax),
		Errors:              classified.Errors,
		Warnings:            classified.Warnings,
	}
	if record != nil {
		id := record.ID()
		result.InvoiceID = &id
	}

	// Step 7: narrative
	ro.updateProgress(progress, "Generating narrative summary", 6)
	result.Narrative = ro.narrate(ctx, result, log)

	// Step 8: assemble
	ro.updateProgress(progress, "Assembling result", 7)
	result.ProcessedAt = time.Now().UTC()
	result.Duration = time.Since(start)

	ro.updateProgress(progress, "Completed", totalSteps)
	log.WithFields(logger.Fields{
		"invoice_exists": result.InvoiceExists,
		"errors":         len(result.Errors),
		"warnings":       len(result.Warnings),
		"severity":       result.OverallSeverity(),
		"duration":       result.Duration,
	}).Info("Reconciliation completed")

	return result, nil
}

// narrate calls the narrator under the configured timeout. Any failure
// yields a nil narrative.
func (ro *ReconciliationOrchestrator) narrate(ctx context.Context, result *models.ReconciliationResult, log logger.Logger) *models.NarrativeSummary {
	nctx, cancel := context.WithTimeout(ctx, ro.config.NarrativeTimeout)
	defer cancel()

	req := &models.NarrativeRequest{
		InvoiceNumber:       result.InvoiceNumber,
		InvoiceExists:       result.InvoiceExists,
		DuplicateByCriteria: result.DuplicateByCriteria,
		Comparisons:         result.Comparisons,
		TaxFindings:         result.TaxFindings,
		Errors:              result.Errors,
		Warnings:            result.Warnings,
	}

	type outcome struct {
		summary *models.NarrativeSummary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.InternalError(errors.CodeNarrativeFailed, "narrative", nil).WithContext("panic", r)}
			}
		}()
		summary, err := ro.narrator.Summarize(nctx, req)
		done <- outcome{summary: summary, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			ro.metrics.NarrativeFailed()
			log.WithError(out.err).Warn("Narrative summary failed; continuing without it")
			return nil
		}
		return out.summary
	case <-nctx.Done():
		ro.metrics.NarrativeFailed()
		log.WithField("timeout", ro.config.NarrativeTimeout).Warn("Narrative summary timed out; continuing without it")
		return nil
	}
}

func (ro *ReconciliationOrchestrator) updateProgress(p *ReconciliationProgress, step string, completed int) {
	p.CurrentStep = step
	p.CompletedSteps = completed
	p.ElapsedTime = time.Since(p.StartTime)
	p.PercentComplete = float64(completed) / float64(p.TotalSteps) * 100

	ro.callbacksMu.RLock()
	defer ro.callbacksMu.RUnlock()
	for _, callback := range ro.progressCallbacks {
		snapshot := *p
		callback(&snapshot)
	}
}

// prepareSubmission trims the invoice number and rejects blank ones
func prepareSubmission(inv *models.Invoice) (*models.Invoice, error) {
	if inv == nil {
		return nil, errors.ClientInputError(errors.CodeMalformedPayload, "invoice", nil)
	}
	number := strings.TrimSpace(models.Deref(inv.InvoiceNumber))
	if number == "" {
		return nil, errors.ClientInputError(errors.CodeMissingInvoiceNumber, "invoiceNumber", nil)
	}

	submission := *inv
	submission.InvoiceNumber = models.StringPtr(number)
	if submission.LineItems == nil {
		submission.LineItems = []models.LineItem{}
	}
	return &submission, nil
}

func storeFailure(operation string, err error) error {
	return errors.StoreError(errors.CodeStoreUnavailable, operation, err)
}

func nonNil(findings []models.Finding) []models.Finding {
	if findings == nil {
		return []models.Finding{}
	}
	return findings
}
