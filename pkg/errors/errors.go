package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryClientInput   ErrorCategory = "client_input"
	CategoryStore         ErrorCategory = "store"
	CategoryCollaborator  ErrorCategory = "collaborator"
	CategoryInput         ErrorCategory = "input"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Client input errors
	CodeMissingInvoiceNumber ErrorCode = "missing_invoice_number"
	CodeMalformedPayload     ErrorCode = "malformed_payload"

	// Store errors
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeStoreQuery       ErrorCode = "store_query_failed"

	// Collaborator errors
	CodeNarrativeFailed  ErrorCode = "narrative_failed"
	CodeNarrativeTimeout ErrorCode = "narrative_timeout"
	CodeCacheUnavailable ErrorCode = "cache_unavailable"

	// Input file errors
	CodeFileNotFound  ErrorCode = "file_not_found"
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeInvalidDate   ErrorCode = "invalid_date"

	// Validation errors
	CodeMissingField ErrorCode = "missing_field"
	CodeOutOfRange   ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeProcessingError ErrorCode = "processing_error"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryInput:
		return 2
	case CategoryClientInput, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryInternal:
		return 5
	case CategoryStore, CategoryCollaborator:
		return 6
	default:
		return 1
	}
}

// HTTPStatus maps the error category onto the status code returned by the API.
func (e *ReconcilerError) HTTPStatus() int {
	switch e.Category {
	case CategoryClientInput:
		return http.StatusBadRequest
	case CategoryValidation, CategoryInput:
		return http.StatusUnprocessableEntity
	case CategoryStore:
		return http.StatusServiceUnavailable
	case CategoryCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// ClientInputError reports a request that was rejected before any processing.
func ClientInputError(code ErrorCode, field string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeMissingInvoiceNumber:
		message = "invoice number is required"
		suggestion = "provide a non-empty invoiceNumber in the request body"
	case CodeMalformedPayload:
		message = fmt.Sprintf("request payload is malformed: %s", field)
		suggestion = "send a JSON body matching the invoice schema"
	default:
		message = fmt.Sprintf("invalid request field '%s'", field)
		suggestion = "check the request and try again"
	}

	return build(CategoryClientInput, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field)
}

// StoreError reports a failed read against the persisted invoice store.
func StoreError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeStoreUnavailable:
		message = fmt.Sprintf("invoice store unavailable during %s", operation)
		suggestion = "check the database connection settings and that the database is reachable"
	case CodeStoreQuery:
		message = fmt.Sprintf("invoice store query failed during %s", operation)
		suggestion = "verify the store schema with 'reconciler migrate'"
	default:
		message = fmt.Sprintf("store error during %s", operation)
		suggestion = "try again later"
	}

	return build(CategoryStore, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// CollaboratorError reports a failure of an optional external collaborator.
func CollaboratorError(code ErrorCode, collaborator string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeNarrativeFailed:
		message = fmt.Sprintf("narrative summary from %s failed", collaborator)
		suggestion = "the result is still valid; check the narrative service logs"
	case CodeNarrativeTimeout:
		message = fmt.Sprintf("narrative summary from %s timed out", collaborator)
		suggestion = "increase narrative.timeout or check the narrative service latency"
	case CodeCacheUnavailable:
		message = fmt.Sprintf("cache %s unavailable", collaborator)
		suggestion = "check the redis address"
	default:
		message = fmt.Sprintf("collaborator %s failed", collaborator)
		suggestion = "try again later"
	}

	return build(CategoryCollaborator, code, message, err).
		WithSuggestion(suggestion).
		WithContext("collaborator", collaborator)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use YYYY-MM-DD, DD-MM-YYYY or DD-Mon-YYYY"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting in the config file or as a RECONCILER_ environment variable"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message, suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check system resources and try again"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ReconcilerError    `json:"errors"`
	SampleErrors []*ReconcilerError    `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if len(errs) == 0 {
		summary.Errors = []*ReconcilerError{}
		return summary
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// IsCategory reports whether err carries a ReconcilerError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	reconcilerErr, ok := AsReconcilerError(err)
	return ok && reconcilerErr.Category == category
}

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
