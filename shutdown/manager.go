package shutdown

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go_kunquant/core"

	"go.uber.org/zap"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Manager ties signal handling to run tracking and ordered cleanup.
//
//	mgr := shutdown.NewManager(logger)
//	mgr.RegisterCloser("runtime", shutdown.PriorityRuntime, rt)
//	mgr.Start()
//	err := mgr.Track(mgr.Context(), runID, func(ctx context.Context) error {
//	    return replay.Run(ctx)
//	})
//	mgr.Shutdown()
//	os.Exit(mgr.ExitCode())
type Manager struct {
	logger    *zap.Logger
	timeout   time.Duration
	forceExit func(code int)

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *RunTracker
	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the shutdown timeout.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithForceExit replaces os.Exit for the second-signal path.
func WithForceExit(exit func(code int)) ManagerOption {
	return func(m *Manager) {
		m.forceExit = exit
	}
}

// NewManager creates a Manager. A nil logger is replaced by a no-op one.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:    logger.Named("shutdown"),
		timeout:   DefaultTimeout,
		forceExit: os.Exit,
		ctx:       ctx,
		cancel:    cancel,
		tracker:   NewRunTracker(),
		registry:  NewRegistry(),
		sigChan:   make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func(code int) {
		m.logger.Warn("Second signal received, exiting without cleanup",
			zap.Strings("active_runs", m.tracker.Active()),
		)
		m.forceExit(code)
	})
	return m
}

// Context is cancelled on the first signal or when Shutdown starts. Stream
// replays check it between ticks.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup function.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered cleanup",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// RegisterCloser adds c.Close as a cleanup function.
func (m *Manager) RegisterCloser(name string, priority int, c io.Closer) {
	m.registry.RegisterCloser(name, priority, c)
	m.logger.Debug("Registered closer",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start listens for SIGINT and SIGTERM. Later calls do nothing.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Observe(sig) == 1 {
		m.logger.Info("Signal received, stopping active runs",
			zap.String("signal", sig.String()),
			zap.Int("active_runs", m.tracker.ActiveCount()),
		)
		m.cancel()
	}
}

// Track runs fn as run runID. It returns ErrShuttingDown without calling
// fn once shutdown has begun. The context passed to fn is cancelled when
// either ctx or the manager's context is.
func (m *Manager) Track(ctx context.Context, runID string, fn func(context.Context) error) error {
	if !m.tracker.Begin(runID) {
		m.logger.Debug("Run rejected", zap.String("run_id", runID))
		return ErrShuttingDown
	}
	defer m.tracker.End(runID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	if err := runCtx.Err(); err != nil {
		return err
	}
	return fn(runCtx)
}

// Shutdown cancels the context, waits for active runs and then runs the
// cleanup functions in priority order. Only the first call does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	start := time.Now()
	m.tracker.Close()
	m.cancel()

	if active := m.tracker.Active(); len(active) > 0 {
		m.logger.Info("Waiting for active runs", zap.Strings("runs", active))
	}
	if err := m.tracker.Wait(m.timeout); err != nil {
		m.logger.Warn("Runs still active after timeout",
			zap.Duration("waited", time.Since(start)),
			zap.Strings("runs", m.tracker.Active()),
		)
	}

	remaining := m.timeout - time.Since(start)
	if remaining < time.Second {
		remaining = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	m.logger.Debug("Running cleanup", zap.Strings("handlers", m.registry.Names()))
	err := m.registry.Shutdown(ctx)
	if err != nil {
		m.logger.Error("Cleanup finished with errors",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	} else {
		m.logger.Debug("Cleanup complete", zap.Duration("duration", time.Since(start)))
	}

	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}
	return err
}

// Wait blocks until the context is cancelled.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// ExitCode is 130 or 143 if a signal stopped the process, otherwise 0.
func (m *Manager) ExitCode() int {
	return SignalExitCode(m.signals.Last())
}

// Interrupted reports whether a signal was received.
func (m *Manager) Interrupted() bool {
	return m.signals.Count() > 0
}

// ActiveRuns returns the IDs of runs in flight.
func (m *Manager) ActiveRuns() []string {
	return m.tracker.Active()
}

// IsShuttingDown reports whether Shutdown has begun.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// RegisteredHandlers returns cleanup names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
