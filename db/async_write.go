package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Value writer defaults
const (
	DefaultChannelCapacity = 256
	DefaultDrainTimeout    = 30 * time.Second
)

// ErrWriterClosed is returned by writes after Close.
var ErrWriterClosed = errors.New("value writer is closed")

// WriteHandler stores one batch of values. It handles its own errors.
type WriteHandler func(values []FactorValue) error

// ValueWriter moves value inserts off the caller's goroutine. Stream
// replays hand it each tick's outputs and keep running while a background
// goroutine writes them.
type ValueWriter struct {
	writeChan chan []FactorValue
	handler   WriteHandler
	wg        sync.WaitGroup

	// closeMu is held shared by writers and exclusively by Close, so the
	// channel is never closed under a pending send.
	closeMu sync.RWMutex
	closed  bool

	startOnce sync.Once
	started   atomic.Bool
	dropped   atomic.Int64
	errs      atomic.Int64
}

// AsyncWriterConfig configures a ValueWriter.
type AsyncWriterConfig struct {
	ChannelCapacity int
	DrainTimeout    time.Duration
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// NewValueWriter creates a writer that calls handler for each batch.
func NewValueWriter(handler WriteHandler, config AsyncWriterConfig) *ValueWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	return &ValueWriter{
		writeChan: make(chan []FactorValue, config.ChannelCapacity),
		handler:   handler,
	}
}

// Start launches the background goroutine. Calling it again does nothing.
func (w *ValueWriter) Start() {
	w.startOnce.Do(func() {
		w.started.Store(true)
		w.wg.Add(1)
		go w.processWrites()
	})
}

func (w *ValueWriter) processWrites() {
	defer w.wg.Done()
	for values := range w.writeChan {
		w.handle(values)
	}
}

func (w *ValueWriter) handle(values []FactorValue) {
	if err := w.handler(values); err != nil {
		w.errs.Add(1)
	}
}

// WriteBlocking queues values, waiting for room until ctx is done.
func (w *ValueWriter) WriteBlocking(ctx context.Context, values []FactorValue) error {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}
	select {
	case w.writeChan <- values:
		return nil
	case <-ctx.Done():
		w.dropped.Add(1)
		return ctx.Err()
	}
}

// Dropped returns how many batches were refused.
func (w *ValueWriter) Dropped() int {
	return int(w.dropped.Load())
}

// Errors returns how many batches the handler failed to store.
func (w *ValueWriter) Errors() int {
	return int(w.errs.Load())
}

// Close stops accepting writes and waits until queued batches are stored
// or ctx is done. A writer that was never started drains its queue on the
// calling goroutine. Safe to call more than once.
func (w *ValueWriter) Close(ctx context.Context) error {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return nil
	}
	w.closed = true
	close(w.writeChan)
	w.closeMu.Unlock()

	// Claim the start so a late Start cannot race the drain below.
	w.startOnce.Do(func() {})
	if !w.started.Load() {
		for values := range w.writeChan {
			w.handle(values)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
