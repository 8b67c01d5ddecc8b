package reconciler

import (
	"fmt"
	"time"

	"invoice-reconciliation-service/internal/validation"
)

// Config holds configuration options for the reconciliation orchestrator
type Config struct {
	// NarrativeTimeout bounds the optional narrative summary call
	NarrativeTimeout time.Duration `mapstructure:"narrative_timeout"`

	// Workers bounds concurrent reconciliations in a batch
	Workers int `mapstructure:"workers"`

	// ProgressReporting logs batch progress at info level
	ProgressReporting bool `mapstructure:"progress_reporting"`

	Validation *validation.Config `mapstructure:"validation"`
}

// DefaultConfig returns a default configuration for the orchestrator
func DefaultConfig() *Config {
	return &Config{
		NarrativeTimeout:  30 * time.Second,
		Workers:           4,
		ProgressReporting: false,
		Validation:        validation.DefaultConfig(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NarrativeTimeout <= 0 {
		return fmt.Errorf("narrative timeout must be positive, got %s", c.NarrativeTimeout)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Validation == nil {
		return fmt.Errorf("validation thresholds are required")
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("invalid validation thresholds: %w", err)
	}
	return nil
}
