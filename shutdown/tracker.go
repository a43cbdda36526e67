// Package shutdown stops factor runs cleanly on SIGINT and SIGTERM and
// releases their native resources in dependency order.
package shutdown

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrShuttingDown is returned when a run is started after shutdown began.
var ErrShuttingDown = errors.New("shutdown in progress, run rejected")

// ErrWaitTimeout is returned when runs are still active after the wait.
var ErrWaitTimeout = errors.New("timed out waiting for active runs")

// RunTracker records which factor runs are in flight so shutdown can wait
// for them before unloading the library they use.
type RunTracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]time.Time
	closed bool
}

// NewRunTracker creates an open tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{active: make(map[string]time.Time)}
}

// Begin registers runID. It returns false once the tracker is closed; the
// caller must then not start the run. A true result must be paired with End.
func (t *RunTracker) Begin(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if _, dup := t.active[runID]; dup {
		return false
	}
	t.active[runID] = time.Now()
	t.wg.Add(1)
	return true
}

// End marks runID finished. Unknown IDs are ignored.
func (t *RunTracker) End(runID string) {
	t.mu.Lock()
	_, ok := t.active[runID]
	delete(t.active, runID)
	t.mu.Unlock()

	if ok {
		t.wg.Done()
	}
}

// Wait blocks until no run is active or timeout elapses.
func (t *RunTracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrWaitTimeout
	}
}

// Close stops new runs from beginning.
func (t *RunTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Active returns the IDs of runs in flight, oldest first.
func (t *RunTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.active))
	for id := range t.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := t.active[ids[i]], t.active[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.Before(tj)
	})
	return ids
}

// ActiveCount returns how many runs are in flight.
func (t *RunTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// IsClosed reports whether Close has been called.
func (t *RunTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
