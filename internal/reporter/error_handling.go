package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with error classification and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Use one of: console, json, csv, xlsx")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders report, falling back to console output or a
// backup file when the primary attempt fails
func (srg *SafeReportGenerator) GenerateReportSafely(report *Report, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format":  srg.config.Format,
		"output":  getWriterDescription(writer),
		"results": lenResults(report),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(report, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.generateWithFallback(report, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	srg.logger.Debug("Report generation completed")
	return nil
}

func (srg *SafeReportGenerator) validateInputs(report *Report, writer io.Writer) error {
	if report == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"report",
			nil,
			nil,
		).WithSuggestion("Provide a reconciliation result to render")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	for i, r := range report.Results {
		if r == nil {
			return errors.ValidationError(errors.CodeMissingField, fmt.Sprintf("results[%d]", i), nil, nil)
		}
	}

	return nil
}

func (srg *SafeReportGenerator) generateWithFallback(report *Report, writer io.Writer) error {
	err := srg.Render(report, writer)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.shouldAttemptOutputFallback(err, writer) {
		return srg.generateWithOutputFallback(report, writer, err)
	}

	if srg.config.Format != FormatConsole {
		return srg.generateWithFormatFallback(report, writer, err)
	}

	return srg.wrapGenerationError(err)
}

func (srg *SafeReportGenerator) generateWithFormatFallback(report *Report, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole
	if fallbackConfig.TableMaxWidth < 50 {
		fallbackConfig.TableMaxWidth = DefaultReportConfig().TableMaxWidth
	}

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.Render(report, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	return nil
}

func (srg *SafeReportGenerator) shouldAttemptOutputFallback(err error, writer io.Writer) bool {
	if file, ok := writer.(*os.File); ok && file.Name() != "" && file != os.Stdout && file != os.Stderr {
		return isFileError(err)
	}
	return false
}

func (srg *SafeReportGenerator) generateWithOutputFallback(report *Report, writer io.Writer, originalErr error) error {
	file := writer.(*os.File)
	originalPath := file.Name()
	backupPath := generateBackupPath(originalPath)

	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Info("Attempting output fallback")

	backupFile, err := os.Create(backupPath)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}
	defer backupFile.Close()

	if err := srg.Render(report, backupFile); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err),
		)
	}

	fmt.Fprintf(os.Stderr, "Warning: Could not write to %s, report saved to %s\n", originalPath, backupPath)
	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeProcessingError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func isFileError(err error) bool {
	if os.IsPermission(err) || os.IsNotExist(err) || os.IsExist(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "file already closed")
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func lenResults(report *Report) int {
	if report == nil {
		return 0
	}
	return len(report.Results)
}
