// Package logging provides structured logging for the factor runner.
//
// It wraps zap with a console + rotating JSON file tee and adds zap field
// helpers for factor runs.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger together with the sugared logger and the
// settings it was built with.
//
// Example:
//
//	logger, err := NewLogger(true, "kunrun.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("batch finished", zap.String("module", "alpha101"))
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger

	isDevelopment bool
	logFilePath   string
}

// NewLogger creates a Logger writing to the console and to logFilePath.
// Development mode logs at debug level with a colored console encoder;
// otherwise info level and JSON everywhere.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	level := zapcore.InfoLevel
	if isDevelopment {
		level = zapcore.DebugLevel
	}
	return NewLoggerWithLevel(level, isDevelopment, logFilePath, DefaultFileWriterConfig())
}

// NewLoggerWithLevel creates a Logger with an explicit level and rotation
// settings, e.g. from KUN_LOG_LEVEL.
func NewLoggerWithLevel(level zapcore.Level, isDevelopment bool, logFilePath string, fileConfig FileWriterConfig) (*Logger, error) {
	if logFilePath == "" {
		return nil, fmt.Errorf("log file path is empty")
	}

	core := NewMultiCore(level, NewFileWriterWithConfig(logFilePath, fileConfig), isDevelopment)
	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1), // skip this wrapper
	)

	return &Logger{
		zap:           zapLogger,
		sugar:         zapLogger.Sugar(),
		isDevelopment: isDevelopment,
		logFilePath:   logFilePath,
	}, nil
}

// FromZap wraps an existing zap logger, typically zaptest.NewLogger(t).
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z, sugar: z.Sugar()}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

// Sync flushes buffered entries. Call it before exiting.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

// Fatal logs at FatalLevel then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, fields...)
}

// Infow logs with loosely-typed key-value pairs.
//
//	logger.Infow("tick", "stream", id, "tick", n)
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// With returns a child logger that adds fields to every entry.
//
//	runLogger := logger.With(zap.String("run_id", id))
func (l *Logger) With(fields ...zap.Field) *Logger {
	return l.derive(l.zap.With(fields...))
}

// Named adds a sub-logger name, e.g. "pipeline" or "db".
func (l *Logger) Named(name string) *Logger {
	return l.derive(l.zap.Named(name))
}

func (l *Logger) derive(z *zap.Logger) *Logger {
	return &Logger{
		zap:           z,
		sugar:         z.Sugar(),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sugar returns the underlying sugared logger.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// IsDevelopment reports whether the logger was built for development.
func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

// LogFilePath returns the log file path, empty for wrapped loggers.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}
