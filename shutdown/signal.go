package shutdown

import (
	"os"
	"sync"
	"syscall"

	"go_kunquant/core"
)

// SignalCounter counts shutdown signals. The first one asks for a graceful
// stop; reaching forceAfter calls onForce with the exit code of the last
// signal.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	last       os.Signal
	forceAfter int
	onForce    func(code int)
}

// NewSignalCounter creates a counter. onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func(code int)) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Observe records sig and returns the new count. onForce runs under the
// counter's lock and is expected to exit.
func (s *SignalCounter) Observe(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.last = sig
	if s.forceAfter > 0 && s.count >= s.forceAfter && s.onForce != nil {
		s.onForce(SignalExitCode(sig))
	}
	return s.count
}

// Count returns the number of signals observed.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Last returns the most recent signal, or nil.
func (s *SignalCounter) Last() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Reset clears the count.
func (s *SignalCounter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	s.last = nil
}

// SignalExitCode maps a signal to the conventional 128+n exit code.
func SignalExitCode(sig os.Signal) int {
	switch sig {
	case os.Interrupt:
		return core.ExitCodeSIGINT
	case syscall.SIGTERM:
		return core.ExitCodeSIGTERM
	case nil:
		return core.ExitCodeSuccess
	}
	return core.ExitCodeError
}
