package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LogLevelEnv names the variable holding the log level.
const LogLevelEnv = "KUN_LOG_LEVEL"

// ParseLogLevel reads a level from envVarName, falling back to defaultLevel
// when the variable is unset or not a level name.
//
//	level := ParseLogLevel(LogLevelEnv, zapcore.InfoLevel)
func ParseLogLevel(envVarName string, defaultLevel zapcore.Level) zapcore.Level {
	return ParseLogLevelString(os.Getenv(envVarName), defaultLevel)
}

// ParseLogLevelString parses debug, info, warn/warning, error or fatal,
// case-insensitively.
func ParseLogLevelString(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return defaultLevel
	}
}
