package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// syncLogger ignores the "invalid argument" Linux returns for syncing a terminal.
func syncLogger(t testing.TB, logger *Logger) {
	t.Helper()
	if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		t.Logf("Sync() warning: %v", err)
	}
}

func TestNewLogger_WritesJSONFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kunrun.log")

	logger, err := NewLogger(false, logPath)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	if logger.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
	if logger.LogFilePath() != logPath {
		t.Errorf("LogFilePath() = %q", logger.LogFilePath())
	}

	logger.Info("batch finished", zap.String("module", "simple_test"))
	logger.Debug("hidden at info level")
	syncLogger(t, logger)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), data)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry[FieldMessage] != "batch finished" || entry["module"] != "simple_test" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry[FieldLevel] != "info" {
		t.Errorf("level = %v", entry[FieldLevel])
	}
}

func TestNewLogger_EmptyPath(t *testing.T) {
	if _, err := NewLogger(true, ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestMultiCoreWithWriters(t *testing.T) {
	var console, file bytes.Buffer
	core := NewMultiCoreWithWriters(zapcore.InfoLevel, zapcore.AddSync(&console), zapcore.AddSync(&file), true)
	z := zap.New(core)

	z.Info("tick", zap.Int("n", 3))
	z.Debug("dropped")

	if !strings.Contains(console.String(), "tick") || strings.HasPrefix(console.String(), "{") {
		t.Errorf("console should be text: %q", console.String())
	}
	if !strings.HasPrefix(file.String(), "{") {
		t.Errorf("file should be JSON: %q", file.String())
	}
	if strings.Contains(file.String(), "dropped") {
		t.Error("debug entry passed an info core")
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).Named("pipeline").With(zap.String("run_id", "r1"))

	logger.Infow("step", "tick", 4)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "pipeline" {
		t.Errorf("LoggerName = %q", e.LoggerName)
	}
	ctx := e.ContextMap()
	if ctx["run_id"] != "r1" || ctx["tick"] != int64(4) {
		t.Errorf("context = %v", ctx)
	}
}

func TestFromZap_Zaptest(t *testing.T) {
	logger := FromZap(zaptest.NewLogger(t))
	logger.Info("goes to t.Log")
	if logger.Zap() == nil || logger.Sugar() == nil {
		t.Error("wrapped logger missing zap handles")
	}
}

func TestApplyFileWriterDefaults(t *testing.T) {
	got := applyFileWriterDefaults(FileWriterConfig{MaxBackups: 2})
	if got.MaxSizeMB != DefaultMaxSizeMB || got.MaxBackups != 2 || got.MaxAgeDays != DefaultMaxAgeDays {
		t.Errorf("defaults not applied: %+v", got)
	}
}
