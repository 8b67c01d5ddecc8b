// Package parsers reads invoice submissions from files and normalizes the
// free-form date strings they carry.
//
// Two input shapes are supported:
//   - .json: a single invoice object or an array of invoice objects
//   - .jsonl / .ndjson: one invoice object per line, streamed in batches
//
// Malformed records are collected as input errors and skipped; the rest of
// the file is still delivered to the callback.
package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

// InputConfig controls how invoice files are read
type InputConfig struct {
	BatchSize    int `json:"batch_size" mapstructure:"batch_size"`
	MaxErrors    int `json:"max_errors" mapstructure:"max_errors"`
	MaxLineBytes int `json:"max_line_bytes" mapstructure:"max_line_bytes"`
}

// DefaultInputConfig returns a configuration with sensible defaults
func DefaultInputConfig() *InputConfig {
	return &InputConfig{
		BatchSize:    100,
		MaxErrors:    50,
		MaxLineBytes: 4 * 1024 * 1024,
	}
}

// Validate validates the input configuration
func (c *InputConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("max errors cannot be negative")
	}
	if c.MaxLineBytes < 1024 {
		return fmt.Errorf("max line bytes must be at least 1024, got %d", c.MaxLineBytes)
	}
	return nil
}

// ParseStats holds statistics about one decoded input file
type ParseStats struct {
	RecordsRead  int
	RecordsValid int
	Errors       *errors.InputErrorCollector
}

// HasErrors returns true if any record failed to decode
func (ps *ParseStats) HasErrors() bool {
	return ps.Errors.HasErrors()
}

// String returns a one-line summary of the stats
func (ps *ParseStats) String() string {
	return fmt.Sprintf("read %d records, %d valid, %d errors",
		ps.RecordsRead, ps.RecordsValid, len(ps.Errors.GetErrors()))
}

// InvoiceBatchCallback receives decoded invoices in file order
type InvoiceBatchCallback func([]*models.Invoice) error

// InvoiceReader decodes invoice submissions from JSON and JSONL files
type InvoiceReader struct {
	config *InputConfig
	logger logger.Logger
}

// NewInvoiceReader creates a reader with the given configuration
func NewInvoiceReader(config *InputConfig) (*InvoiceReader, error) {
	if config == nil {
		config = DefaultInputConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "input", config, err)
	}

	return &InvoiceReader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("invoice_reader"),
	}, nil
}

// IsLineDelimited reports whether path names a JSONL file
func IsLineDelimited(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return true
	}
	return false
}

// ReadAll decodes every invoice in the file
func (r *InvoiceReader) ReadAll(ctx context.Context, path string) ([]*models.Invoice, *ParseStats, error) {
	var invoices []*models.Invoice
	stats, err := r.ReadStream(ctx, path, func(batch []*models.Invoice) error {
		invoices = append(invoices, batch...)
		return nil
	})
	return invoices, stats, err
}

// ReadStream decodes the file and hands invoices to callback in batches
func (r *InvoiceReader) ReadStream(ctx context.Context, path string, callback InvoiceBatchCallback) (*ParseStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.InputFileError(path, err)
	}
	defer file.Close()

	r.logger.WithFields(logger.Fields{
		"file":       path,
		"batch_size": r.config.BatchSize,
	}).Debug("Reading invoice file")

	if IsLineDelimited(path) {
		return r.readLines(ctx, path, file, callback)
	}
	return r.readDocument(ctx, path, file, callback)
}

// ReadLines streams JSONL from an arbitrary reader; name is used in error locations.
func (r *InvoiceReader) ReadLines(ctx context.Context, name string, in io.Reader, callback InvoiceBatchCallback) (*ParseStats, error) {
	return r.readLines(ctx, name, in, callback)
}

func (r *InvoiceReader) readLines(ctx context.Context, name string, in io.Reader, callback InvoiceBatchCallback) (*ParseStats, error) {
	stats := &ParseStats{Errors: errors.NewInputErrorCollector(r.config.MaxErrors)}
	batch := make([]*models.Invoice, 0, r.config.BatchSize)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), r.config.MaxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		stats.RecordsRead++

		var inv models.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			inputErr := errors.MalformedRecordError(name, line, err).WithSnippet(string(raw))
			if !stats.Errors.Add(inputErr) {
				return stats, stats.Errors.GetSummary()
			}
			continue
		}

		batch = append(batch, &inv)
		stats.RecordsValid++

		if len(batch) >= r.config.BatchSize {
			if err := callback(batch); err != nil {
				return stats, fmt.Errorf("callback error: %w", err)
			}
			batch = make([]*models.Invoice, 0, r.config.BatchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.MalformedRecordError(name, line+1, err)
	}

	if len(batch) > 0 {
		if err := callback(batch); err != nil {
			return stats, fmt.Errorf("callback error: %w", err)
		}
	}

	r.logger.WithField("file", name).Debugf("Finished reading: %s", stats)
	return stats, nil
}

func (r *InvoiceReader) readDocument(ctx context.Context, name string, in io.Reader, callback InvoiceBatchCallback) (*ParseStats, error) {
	stats := &ParseStats{Errors: errors.NewInputErrorCollector(r.config.MaxErrors)}

	data, err := io.ReadAll(in)
	if err != nil {
		return stats, errors.InputFileError(name, err)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	trimmed := bytes.TrimSpace(data)
	var raws []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return stats, errors.MalformedRecordError(name, 0, err)
		}
	} else {
		raws = []json.RawMessage{trimmed}
	}

	invoices := make([]*models.Invoice, 0, len(raws))
	for i, raw := range raws {
		stats.RecordsRead++
		var inv models.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			inputErr := errors.MalformedRecordError(name, i+1, err).WithSnippet(string(raw))
			if !stats.Errors.Add(inputErr) {
				return stats, stats.Errors.GetSummary()
			}
			continue
		}
		invoices = append(invoices, &inv)
		stats.RecordsValid++
	}

	for start := 0; start < len(invoices); start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > len(invoices) {
			end = len(invoices)
		}
		if err := callback(invoices[start:end]); err != nil {
			return stats, fmt.Errorf("callback error: %w", err)
		}
	}

	return stats, nil
}
