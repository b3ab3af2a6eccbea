package id

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewZapLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	zapLogger := NewZapLogger(zap.New(core))

	zapLogger.Info("test message", "key", "value")
	if recorded.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", recorded.Len())
	}
}

func TestNewZapLoggerFromSugar(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	zapLogger := NewZapLoggerFromSugar(zap.New(core).Sugar())

	zapLogger.Info("test message", "key", "value")
	if recorded.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", recorded.Len())
	}
}

func TestNewProductionZapLogger(t *testing.T) {
	logger, err := NewProductionZapLogger()
	if err != nil {
		t.Fatalf("failed to create production logger: %v", err)
	}

	logger.Info("info message", "key", "value")

	if err := logger.Sync(); err != nil {
		// Sync can fail on stdout/stderr in tests
		t.Logf("sync returned error: %v", err)
	}
}

func TestNewDevelopmentZapLogger(t *testing.T) {
	logger, err := NewDevelopmentZapLogger()
	if err != nil {
		t.Fatalf("failed to create development logger: %v", err)
	}
	logger.Debug("debug message", "key", "value")
}

func TestZapLoggerLevels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	zapLogger := NewZapLogger(zap.New(core))

	zapLogger.Debug("debug message")
	zapLogger.Info("info message")
	zapLogger.Warn("warn message")
	zapLogger.Error("error message")

	entries := recorded.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, level := range want {
		if entries[i].Level != level {
			t.Errorf("entry %d level = %v, want %v", i, entries[i].Level, level)
		}
	}
}

func TestZapLoggerWithFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	zapLogger := NewZapLogger(zap.New(core)).With("node", "01:23:45:67:89:ab")

	zapLogger.Info("issued", "tick", 42)

	if recorded.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", recorded.Len())
	}
	context := recorded.All()[0].ContextMap()
	if context["node"] != "01:23:45:67:89:ab" {
		t.Errorf("node field = %v", context["node"])
	}
	if context["tick"] != int64(42) {
		t.Errorf("tick field = %v", context["tick"])
	}
}

func TestNewZapLoggerAtLevel(t *testing.T) {
	for _, dev := range []bool{false, true} {
		logger, err := NewZapLoggerAtLevel("warn", dev)
		if err != nil {
			t.Fatalf("dev=%v: %v", dev, err)
		}
		if logger.logger.Desugar().Core().Enabled(zapcore.InfoLevel) {
			t.Errorf("dev=%v: info should be disabled at warn level", dev)
		}
		if !logger.logger.Desugar().Core().Enabled(zapcore.ErrorLevel) {
			t.Errorf("dev=%v: error should be enabled at warn level", dev)
		}
	}

	if _, err := NewZapLoggerAtLevel("loud", false); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
