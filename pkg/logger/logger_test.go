package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"production", *ProductionConfig(), false},
		{"bad level", Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, true},
		{"bad format", Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"file without path", Config{Level: InfoLevel, Format: JSONFormat, Output: FileOutput}, true},
		{"bad output", Config{Level: InfoLevel, Format: JSONFormat, Output: "syslog"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFieldsAccumulate(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLoggerWithWriter(&Config{Level: DebugLevel, Format: JSONFormat, DisableTimestamp: true}, &buf)
	require.NoError(t, err)

	log.WithComponent("orchestrator").
		WithRequestID("req-1").
		WithField("invoice_number", "INV-9").
		WithError(errors.New("boom")).
		Info("reconciled")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "INV-9", entry["invoice_number"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "reconciled", entry["msg"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLoggerWithWriter(&Config{Level: WarnLevel, Format: TextFormat, DisableTimestamp: true}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLoggerWithWriter(&Config{Level: InfoLevel, Format: TextFormat, DisableTimestamp: true}, &buf)
	require.NoError(t, err)

	tracker := NewProgressTracker(ProgressConfig{Operation: "batch", Total: 4, Logger: log})
	tracker.Record(nil)
	tracker.Record(nil)
	tracker.Record(errors.New("store down"))

	stats := tracker.GetStats()
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(1), stats.Failed)
	assert.InDelta(t, 75.0, stats.Percentage, 0.001)
	assert.Contains(t, stats.String(), "3/4")

	final := tracker.Complete()
	assert.Equal(t, int64(1), final.Failed)
	assert.True(t, strings.Contains(buf.String(), "completed with failures"))
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLoggerWithWriter(&Config{Level: InfoLevel, Format: TextFormat, DisableTimestamp: true}, &buf)
	require.NoError(t, err)

	assert.NoError(t, TimedOperation("migrate", log, func() error { return nil }))
	assert.Contains(t, buf.String(), "status=success")

	failure := errors.New("no database")
	assert.Equal(t, failure, TimedOperation("migrate", log, func() error { return failure }))
	assert.Contains(t, buf.String(), "status=error")
}
