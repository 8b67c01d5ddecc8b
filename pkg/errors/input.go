package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// InputLocation identifies where in an invoice file a decode error occurred
type InputLocation struct {
	File  string `json:"file"`
	Line  int    `json:"line,omitempty"`
	Field string `json:"field,omitempty"`
}

// InputError is a decode failure for one record of an invoice input file
type InputError struct {
	*ReconcilerError
	Location    *InputLocation `json:"location"`
	Recoverable bool           `json:"recoverable"`
	Snippet     string         `json:"snippet,omitempty"`
}

// Error implements the error interface with the file location appended
func (e *InputError) Error() string {
	msg := e.ReconcilerError.Error()
	if e.Location == nil {
		return msg
	}

	location := fmt.Sprintf("at %s", filepath.Base(e.Location.File))
	if e.Location.Line > 0 {
		location += fmt.Sprintf(":%d", e.Location.Line)
	}
	if e.Location.Field != "" {
		location += fmt.Sprintf(" field '%s'", e.Location.Field)
	}
	return msg + " " + location
}

// Unwrap exposes the embedded ReconcilerError to errors.As
func (e *InputError) Unwrap() error {
	return e.ReconcilerError
}

// GetDetailedError returns a detailed multi-line error description
func (e *InputError) GetDetailedError() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Message)}

	if e.Location != nil {
		lines = append(lines, fmt.Sprintf("  File: %s", e.Location.File))
		if e.Location.Line > 0 {
			lines = append(lines, fmt.Sprintf("  Line: %d", e.Location.Line))
		}
		if e.Location.Field != "" {
			lines = append(lines, fmt.Sprintf("  Field: %s", e.Location.Field))
		}
	}
	if e.Snippet != "" {
		lines = append(lines, fmt.Sprintf("  Content: %s", e.Snippet))
	}
	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  Suggestion: %s", e.Suggestion))
	}

	return strings.Join(lines, "\n")
}

// WithSnippet attaches the offending input, truncated for display
func (e *InputError) WithSnippet(content string) *InputError {
	const maxSnippet = 120
	content = strings.TrimSpace(content)
	if len(content) > maxSnippet {
		content = content[:maxSnippet] + "..."
	}
	e.Snippet = content
	return e
}

// NewInputError creates a new input error
func NewInputError(code ErrorCode, location *InputLocation, message string, cause error) *InputError {
	base := build(CategoryInput, code, message, cause)

	if location != nil {
		base.WithContext("file", location.File).WithContext("line", location.Line)
		if location.Field != "" {
			base.WithContext("field", location.Field)
		}
	}

	return &InputError{
		ReconcilerError: base,
		Location:        location,
		Recoverable:     true,
	}
}

// MalformedRecordError reports a record that is not a valid invoice JSON object
func MalformedRecordError(file string, line int, cause error) *InputError {
	err := NewInputError(CodeInvalidFormat, &InputLocation{File: file, Line: line}, "malformed invoice record", cause)
	err.WithSuggestion("each record must be a JSON object with invoiceNumber, vendor, customer, lineItems and totals")
	return err
}

// InputFileError reports an input file that cannot be opened or read at all
func InputFileError(file string, cause error) *InputError {
	err := NewInputError(CodeFileNotFound, &InputLocation{File: file}, fmt.Sprintf("cannot read input file %s", filepath.Base(file)), cause)
	err.WithSuggestion("check that the file exists and is readable")
	err.Recoverable = false
	return err
}

// InputErrorCollector collects decode errors while streaming a batch file
type InputErrorCollector struct {
	errors    []*InputError
	maxErrors int
}

// NewInputErrorCollector creates a collector that stops accepting after maxErrors.
// A maxErrors of zero or less means unbounded.
func NewInputErrorCollector(maxErrors int) *InputErrorCollector {
	return &InputErrorCollector{maxErrors: maxErrors}
}

// Add records err and reports whether processing may continue
func (c *InputErrorCollector) Add(err *InputError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)
	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}
	return err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *InputErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *InputErrorCollector) GetErrors() []*InputError {
	return c.errors
}

// GetSummary returns an error summary for all collected errors
func (c *InputErrorCollector) GetSummary() *ErrorSummary {
	base := make([]*ReconcilerError, len(c.errors))
	for i, err := range c.errors {
		base[i] = err.ReconcilerError
	}
	return NewErrorSummary(base)
}

// FormatInputErrorsForUser formats input errors for terminal output
func FormatInputErrorsForUser(errs []*InputError) string {
	switch len(errs) {
	case 0:
		return "No input errors"
	case 1:
		return errs[0].GetDetailedError()
	}

	const maxDetailed = 3
	lines := []string{fmt.Sprintf("Found %d input errors:", len(errs))}
	for i, err := range errs {
		if i == maxDetailed {
			lines = append(lines, "", fmt.Sprintf("... and %d more", len(errs)-maxDetailed))
			break
		}
		lines = append(lines, "", err.GetDetailedError())
	}
	return strings.Join(lines, "\n")
}
