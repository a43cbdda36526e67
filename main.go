package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"go_kunquant/cli"
	"go_kunquant/core"
	"go_kunquant/logging"
	"go_kunquant/shutdown"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Use fmt here since logger isn't initialized yet
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	cfg := core.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return core.ExitCodeConfig
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	mgr := shutdown.NewManager(logger.Zap(), shutdown.WithTimeout(cfg.ShutdownTimeout))
	mgr.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		return syncLogger(logger)
	})
	mgr.Start()

	logger.Debug("Configuration loaded",
		zap.String("library", cfg.LibraryPath),
		zap.Strings("library_dirs", cfg.LibraryDirs),
		zap.Int("threads", cfg.Threads),
		zap.Bool("run_store", cfg.DBEnabled()),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
	)

	app := cli.NewApp(cfg, logger, mgr)
	cmd := cli.NewRootCommand(app)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(mgr.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if closeErr := app.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: shutdown incomplete: %v\n", closeErr)
	}
	return exitCode(err, mgr)
}

// newLogger builds the process logger from configuration. An unknown
// KUN_LOG_LEVEL falls back to info.
func newLogger(cfg *core.Config) (*logging.Logger, error) {
	level := logging.ParseLogLevelString(cfg.LogLevel, zapcore.InfoLevel)
	return logging.NewLoggerWithLevel(level, cfg.DevMode, cfg.LogFile, logging.DefaultFileWriterConfig())
}

// syncLogger flushes the logger, ignoring the error syncing a terminal
// returns on Linux.
func syncLogger(logger *logging.Logger) error {
	err := logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

// exitCode prefers the signal that stopped the process over the error it
// caused.
func exitCode(err error, mgr *shutdown.Manager) int {
	if mgr.Interrupted() {
		return mgr.ExitCode()
	}
	return cli.ExitCode(err)
}
