package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		"Warning": LogLevelWarn,
		" info ":  LogLevelInfo,
		"DEBUG":   LogLevelDebug,
		"trace":   LogLevelTrace,
	}
	for input, want := range cases {
		got, ok := ParseLogLevel(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	got, ok := ParseLogLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, LogLevelInfo, got)
}

func TestLoggerGatesByLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithCore(LogLevelInfo, core)

	logger.Error("e %d", 1)
	logger.Warn("w")
	logger.Info("i")
	logger.Debug("d")
	logger.Trace("t")

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "e 1", entries[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, "i", entries[2].Message)
	}
}

func TestLoggerTraceUsesDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithCore(LogLevelTrace, core).With("run", "abc")

	logger.Trace("row %d", 7)

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "[TRACE] row 7", entries[0].Message)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, "abc", entries[0].ContextMap()["run"])
	}
}
