package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: settings.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(err, reconcilerErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleReconcilerError(original error, err *errors.ReconcilerError) int {
	if inputErr, ok := original.(*errors.InputError); ok {
		fmt.Fprintln(h.out, inputErr.GetDetailedError())
	} else {
		fmt.Fprintf(h.out, "Error: %s\n", err.Message)
	}

	if len(err.Context) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if value := err.Context[key]; value != nil {
				fmt.Fprintf(h.out, "  %s: %v\n", key, value)
			}
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	switch {
	case isUsageError(err):
		fmt.Fprintf(h.out, "Error: %v\n", err)
		fmt.Fprintf(h.out, "Run 'reconciler --help' for usage.\n")
		return 2
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}
	return 1
}

// getCategoryHelp returns category-specific help text
func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryInput:
		return `Input file help:
• Check that the file exists and is readable
• Use .json for a single invoice or an array, .jsonl for one invoice per line
• Each record must be a JSON object with invoiceNumber, vendor, customer,
  lineItems, totals and paymentDetails`

	case errors.CategoryClientInput:
		return `Request help:
• Every submission needs a non-empty invoiceNumber
• Payment status must be one of Paid, Unpaid, Partial`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Dates may use YYYY-MM-DD, DD-MM-YYYY or DD-Mon-YYYY
• Amounts are plain numbers without currency symbols`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Every setting can also be given as a RECONCILER_ environment variable,
  for example RECONCILER_DATABASE_DSN`

	case errors.CategoryStore:
		return `Database error help:
• Check --db-dsn or RECONCILER_DATABASE_DSN
• Make sure the database is reachable
• Run 'reconciler migrate' to create the invoice tables`

	case errors.CategoryCollaborator:
		return `External service help:
• Narrative summaries are optional; unset narrative.url to disable them
• Check the narrative service and Redis addresses`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler <command> --help' for command-specific help`
	}
}

func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "invalid argument", "required flag", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
