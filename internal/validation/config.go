// Package validation checks an invoice against its own arithmetic and
// against the persisted record, producing severity-tagged findings.
//
// Three passes feed the result:
//  1. Missing-value checks on mandatory fields
//  2. Tax invariant checks on line items and totals
//  3. Classification of every comparison difference
//
// All money arithmetic runs on decimal values so tolerance boundaries
// behave exactly as written.
//
// Example usage:
//
//	cfg := validation.DefaultConfig()
//	cfg.VariancePercent = 2
//
//	missing := validation.CheckMissingValues(inv)
//	tax := validation.ValidateTaxCalculations(inv, cfg)
//	out := validation.Classify(validation.ClassifierInput{
//		Invoice:       inv,
//		InvoiceExists: record != nil,
//		Comparisons:   comparisons,
//		MissingValues: missing,
//		TaxFindings:   tax,
//	}, cfg)
package validation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the numeric thresholds used by the tax checks and the classifier
type Config struct {
	// LineTolerance is the largest deviation accepted on a line amount,
	// subtotal, tax total or grand total.
	LineTolerance float64 `json:"line_tolerance" mapstructure:"line_tolerance"`

	// RoundingFloor is the grand total deviation at or below which no finding
	// is produced. Deviations between the floor and LineTolerance are minor.
	RoundingFloor float64 `json:"rounding_floor" mapstructure:"rounding_floor"`

	// VariancePercent and VarianceAbsolute split critical amount
	// discrepancies from minor ones when totals differ from the persisted record.
	VariancePercent  float64 `json:"variance_percent" mapstructure:"variance_percent"`
	VarianceAbsolute float64 `json:"variance_absolute" mapstructure:"variance_absolute"`
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() *Config {
	return &Config{
		LineTolerance:    0.01,
		RoundingFloor:    0.001,
		VariancePercent:  1.0,
		VarianceAbsolute: 10.0,
	}
}

// Validate validates the threshold configuration
func (c *Config) Validate() error {
	if c.LineTolerance < 0 {
		return fmt.Errorf("line tolerance cannot be negative")
	}
	if c.RoundingFloor < 0 {
		return fmt.Errorf("rounding floor cannot be negative")
	}
	if c.RoundingFloor > c.LineTolerance {
		return fmt.Errorf("rounding floor (%g) cannot exceed line tolerance (%g)", c.RoundingFloor, c.LineTolerance)
	}
	if c.VariancePercent <= 0 {
		return fmt.Errorf("variance percent must be positive, got %g", c.VariancePercent)
	}
	if c.VarianceAbsolute <= 0 {
		return fmt.Errorf("variance absolute must be positive, got %g", c.VarianceAbsolute)
	}
	return nil
}

func (c *Config) lineTolerance() decimal.Decimal {
	return decimal.NewFromFloat(c.LineTolerance)
}

func (c *Config) roundingFloor() decimal.Decimal {
	return decimal.NewFromFloat(c.RoundingFloor)
}

func (c *Config) variancePercent() decimal.Decimal {
	return decimal.NewFromFloat(c.VariancePercent)
}

func (c *Config) varianceAbsolute() decimal.Decimal {
	return decimal.NewFromFloat(c.VarianceAbsolute)
}

func orDefault(cfg *Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return cfg
}
