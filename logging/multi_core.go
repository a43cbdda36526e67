package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees log output to stderr and fileWriter. Stdout is left to
// command output.
// The file always gets JSON; the console gets colored text in development
// and JSON otherwise.
func NewMultiCore(level zapcore.Level, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	return NewMultiCoreWithWriters(level, zapcore.Lock(os.Stderr), fileWriter, isDev)
}

// NewMultiCoreWithWriters is NewMultiCore with an explicit console writer.
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)

	consoleEncoder := zapcore.NewJSONEncoder(NewEncoderConfig())
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, level)

	return zapcore.NewTee(consoleCore, fileCore)
}
