package kunruntime

import "sync"

// lifetime tracks a native handle's owner and the dependents borrowing it.
//
// The owner's Close marks the resource closed; the native release runs once
// the last borrower has dropped its reference. Borrowers are stream contexts
// (held for their whole life) and batch runs (held for one native call).
type lifetime struct {
	mu       sync.Mutex
	refs     int
	closed   bool
	released bool
	release  func()
}

func newLifetime(release func()) *lifetime {
	return &lifetime{release: release}
}

// acquire takes a reference. It fails once the owner has been closed.
func (l *lifetime) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.refs++
	return true
}

// drop returns a reference taken by acquire.
func (l *lifetime) drop() {
	l.mu.Lock()
	l.refs--
	fire := l.closed && l.refs == 0 && !l.released
	if fire {
		l.released = true
	}
	l.mu.Unlock()

	if fire {
		l.release()
	}
}

// close marks the owner closed and releases now if nothing borrows it.
// It reports whether this call was the one that closed the resource.
func (l *lifetime) close() bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.closed = true
	fire := l.refs == 0 && !l.released
	if fire {
		l.released = true
	}
	l.mu.Unlock()

	if fire {
		l.release()
	}
	return true
}

// isClosed reports whether the owner has been closed.
func (l *lifetime) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// isReleased reports whether the native handle has actually been freed.
func (l *lifetime) isReleased() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

// borrowers returns the number of live references.
func (l *lifetime) borrowers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}
