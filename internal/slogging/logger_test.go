package slogging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"bogus", LogLevelInfo},
		{"", LogLevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLogLevel(tt.input), "input: %q", tt.input)
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestSanitizeLogMessage(t *testing.T) {
	assert.Equal(t, "a b c", SanitizeLogMessage("a\nb\rc"))
	assert.Equal(t, "clean", SanitizeLogMessage("clean"))
	assert.Equal(t, "xy", SanitizeLogMessage("x\x00y"))
}

func TestNewLoggerWritesToConfiguredDir(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(Config{
		Level:  LogLevelDebug,
		IsDev:  true,
		LogDir: dir,
	})
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	logger.Info("test message %d", 1)
	logger.Debug("debug message")
}

func TestLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(Config{
		Level:  LogLevelError,
		LogDir: dir,
	})
	require.NoError(t, err)
	defer func() { _ = logger.Close() }()

	// Below-threshold calls return before formatting; nothing to assert
	// beyond the absence of a panic.
	logger.Debug("suppressed")
	logger.Info("suppressed")
	logger.Warn("suppressed")
	logger.Error("emitted")
}
