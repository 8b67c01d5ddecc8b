package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks how many invoices of a batch have been reconciled
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	succeeded   int64
	failed      int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string
	Total       int64
	LogInterval time.Duration
	Logger      Logger
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int64         `json:"total"`
	Succeeded  int64         `json:"succeeded"`
	Failed     int64         `json:"failed"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
	Rate       float64       `json:"rate"`
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 5 * time.Second
	}

	now := time.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Info("Starting operation")

	return tracker
}

// Record counts one finished item; err marks it as failed.
func (p *ProgressTracker) Record(err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err != nil {
		p.failed++
	} else {
		p.succeeded++
	}

	now := time.Now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logger.WithFields(p.fields(now)).Info("Progress update")
		p.lastLogTime = now
	}
}

// Complete logs the final statistics and returns them
func (p *ProgressTracker) Complete() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	entry := p.logger.WithFields(p.fields(now))
	if p.failed > 0 {
		entry.Warn("Operation completed with failures")
	} else {
		entry.Info("Operation completed")
	}
	return p.statsAt(now)
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.statsAt(time.Now())
}

func (p *ProgressTracker) statsAt(now time.Time) ProgressStats {
	done := p.succeeded + p.failed
	duration := now.Sub(p.startTime)

	stats := ProgressStats{
		Operation: p.operation,
		Total:     p.total,
		Succeeded: p.succeeded,
		Failed:    p.failed,
		Duration:  duration,
	}
	if duration.Seconds() > 0 {
		stats.Rate = float64(done) / duration.Seconds()
	}
	if p.total > 0 {
		stats.Percentage = float64(done) / float64(p.total) * 100
	}
	return stats
}

func (p *ProgressTracker) fields(now time.Time) Fields {
	stats := p.statsAt(now)
	fields := Fields{
		"operation": stats.Operation,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"duration":  stats.Duration.String(),
		"rate":      fmt.Sprintf("%.2f/sec", stats.Rate),
	}
	if stats.Total > 0 {
		fields["total"] = stats.Total
		fields["percentage"] = fmt.Sprintf("%.1f%%", stats.Percentage)
	}
	return fields
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.1f%%), %d failed, at %.2f/sec",
			ps.Operation, ps.Succeeded+ps.Failed, ps.Total, ps.Percentage, ps.Failed, ps.Rate)
	}
	return fmt.Sprintf("%s: %d processed, %d failed, elapsed: %v",
		ps.Operation, ps.Succeeded+ps.Failed, ps.Failed, ps.Duration)
}

// OperationLogger provides structured logging for operations with timing
type OperationLogger struct {
	logger    Logger
	operation string
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithField("operation", operation),
		operation: operation,
		startTime: time.Now(),
	}
	ol.logger.Debug("Starting operation")
	return ol
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string) {
	ol.logger.WithField("step", step).Debug("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.logger.WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	}).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	}).Error(message)
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	if err := fn(); err != nil {
		ol.Error(err, "Operation failed")
		return err
	}

	ol.Success("Operation completed")
	return nil
}
