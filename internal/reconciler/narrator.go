package reconciler

import (
	"context"

	"invoice-reconciliation-service/internal/models"
)

// Narrator turns classified findings into a free-text summary. Failures are
// never fatal to a reconciliation.
type Narrator interface {
	Summarize(ctx context.Context, req *models.NarrativeRequest) (*models.NarrativeSummary, error)
}

// NoopNarrator never produces a summary
type NoopNarrator struct{}

// Summarize implements Narrator
func (NoopNarrator) Summarize(context.Context, *models.NarrativeRequest) (*models.NarrativeSummary, error) {
	return nil, nil
}

// NarratorFunc adapts a function to Narrator
type NarratorFunc func(ctx context.Context, req *models.NarrativeRequest) (*models.NarrativeSummary, error)

// Summarize implements Narrator
func (f NarratorFunc) Summarize(ctx context.Context, req *models.NarrativeRequest) (*models.NarrativeSummary, error) {
	return f(ctx, req)
}
