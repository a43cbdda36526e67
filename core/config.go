package core

import (
	"os"
	"time"
)

// Environment variable names.
const (
	EnvLibraryPath = "KUN_LIBRARY_PATH"
	EnvLibraryDir  = "KUN_LIBRARY_DIR"
	EnvThreads     = "KUN_THREADS"
	EnvValidate    = "KUN_VALIDATE_LIBRARY"
	EnvDBPath      = "KUN_DB_PATH"
	EnvLogFile     = "KUN_LOG_FILE"
	EnvLogLevel    = "KUN_LOG_LEVEL"
	EnvManifest    = "KUN_MANIFEST"
	EnvDevMode     = "DEV_MODE"
	EnvShutdown    = "KUN_SHUTDOWN_TIMEOUT"
)

// Config is the runner's configuration, read from the environment after
// .env has been loaded.
type Config struct {
	LibraryPath string   // factor library file or bare name
	LibraryDirs []string // searched for bare names
	Threads     int      // 0 or 1 single-threaded, more for a pool

	// ValidateLibrary checks the shared-object header before a library
	// is handed to the loader.
	ValidateLibrary bool

	ManifestPath string // YAML factor manifest
	DBPath       string // SQLite run store, empty to disable

	LogFile  string
	LogLevel string
	DevMode  bool

	ShutdownTimeout time.Duration
}

// Defaults
const (
	DefaultLogFile         = "kunrun.log"
	DefaultLibraryDir      = "factors"
	DefaultShutdownSeconds = 10
)

// LoadConfig reads Config from the environment.
func LoadConfig() *Config {
	return &Config{
		LibraryPath:     os.Getenv(EnvLibraryPath),
		LibraryDirs:     ParsePathListEnv(EnvLibraryDir, []string{DefaultLibraryDir}),
		Threads:         ParseIntEnv(EnvThreads, 0),
		ValidateLibrary: ParseBoolEnv(EnvValidate, true),
		ManifestPath:    os.Getenv(EnvManifest),
		DBPath:          os.Getenv(EnvDBPath),
		LogFile:         GetEnvOrDefault(EnvLogFile, DefaultLogFile),
		LogLevel:        GetEnvOrDefault(EnvLogLevel, "info"),
		DevMode:         ParseBoolEnv(EnvDevMode, false),
		ShutdownTimeout: ParseDurationEnv(EnvShutdown, DefaultShutdownSeconds),
	}
}

// Validate checks the values that do not depend on the command being run.
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return ErrInvalidThreads(c.Threads)
	}
	return nil
}

// DBEnabled reports whether runs should be recorded.
func (c *Config) DBEnabled() bool {
	return c.DBPath != ""
}
