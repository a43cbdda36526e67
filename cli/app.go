package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"go_kunquant/core"
	"go_kunquant/db"
	"go_kunquant/kunruntime"
	"go_kunquant/logging"
	"go_kunquant/manifest"
	"go_kunquant/shutdown"

	"go.uber.org/zap"
)

// App holds what every command shares: configuration, the logger and the
// shutdown manager that owns opened resources.
type App struct {
	Config   *core.Config
	Logger   *logging.Logger
	Shutdown *shutdown.Manager
}

// NewApp fills in defaults for nil arguments.
func NewApp(cfg *core.Config, logger *logging.Logger, mgr *shutdown.Manager) *App {
	if cfg == nil {
		cfg = &core.Config{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if mgr == nil {
		mgr = shutdown.NewManager(logger.Zap(), shutdown.WithTimeout(cfg.ShutdownTimeout))
	}
	return &App{Config: cfg, Logger: logger, Shutdown: mgr}
}

// Close releases everything commands registered.
func (a *App) Close() error {
	return a.Shutdown.Shutdown()
}

// loadManifest reads the manifest named on the command line, falling back
// to KUN_MANIFEST.
func (a *App) loadManifest(args []string) (*manifest.Manifest, error) {
	path := a.Config.ManifestPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, core.ErrManifestNotSet()
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, WrapExitError(core.ExitCodeConfig, "invalid manifest", err)
	}
	return m, nil
}

// runtimeConfig merges environment defaults, the manifest and flags, in
// increasing precedence.
func (a *App) runtimeConfig(m *manifest.Manifest, opts *RootOptions) kunruntime.RuntimeConfig {
	cfg := kunruntime.RuntimeConfig{
		LibraryPath:    a.Config.LibraryPath,
		LibraryDirs:    a.Config.LibraryDirs,
		Threads:        a.Config.Threads,
		ValidateHeader: a.Config.ValidateLibrary,
	}
	if m != nil {
		cfg = m.RuntimeConfig(cfg)
	}
	if opts.Library != "" {
		cfg.LibraryPath = opts.Library
	}
	if opts.Threads > 0 {
		cfg.Threads = opts.Threads
	}
	return cfg
}

// openRuntime loads the factor library. The runtime is closed on shutdown
// after any run using it has finished.
func (a *App) openRuntime(cfg kunruntime.RuntimeConfig) (*kunruntime.Runtime, error) {
	path := cfg.ResolvedPath()
	if path == "" {
		return nil, core.ErrMissingConfig(core.EnvLibraryPath)
	}
	if !kunruntime.LibraryExists(path) {
		return nil, core.ErrLibraryMissing(path)
	}

	rt, err := kunruntime.OpenRuntime(cfg)
	if err != nil {
		return nil, err
	}
	a.Shutdown.RegisterCloser("runtime", shutdown.PriorityRuntime, rt)
	a.Logger.Debug("Factor library loaded",
		zap.String("path", path),
		zap.Int("threads", cfg.Threads),
		logging.BackendField(),
	)
	return rt, nil
}

// openStore opens the run store, or returns nil when none is configured.
func (a *App) openStore(opts *RootOptions) (*db.Repository, error) {
	path := a.dbPath(opts)
	if path == "" {
		return nil, nil
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	a.Shutdown.RegisterCloser("database", shutdown.PriorityDatabase, database)
	return db.NewRepository(database), nil
}

// requireStore is openStore for commands that cannot work without one.
func (a *App) requireStore(opts *RootOptions) (*db.Repository, error) {
	if a.dbPath(opts) == "" {
		return nil, core.ErrMissingConfig(core.EnvDBPath)
	}
	return a.openStore(opts)
}

func (a *App) dbPath(opts *RootOptions) string {
	if opts.DBPath != "" {
		return opts.DBPath
	}
	return a.Config.DBPath
}

// cleanOutputsOnExit removes partial files left in m's output directories
// by an interrupted run.
func (a *App) cleanOutputsOnExit(m *manifest.Manifest) {
	seen := make(map[string]bool)
	for _, name := range m.OutputNames() {
		path := m.OutputPath(name)
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		a.Shutdown.Register("partial-outputs:"+dir, shutdown.PriorityFiles,
			shutdown.RemovePartialOutputs(a.Logger.Zap(), dir))
	}
}

// track runs fn as a tracked run so shutdown waits for it.
func (a *App) track(ctx context.Context, runID string, fn func(context.Context) error) error {
	return a.Shutdown.Track(ctx, runID, fn)
}
