package shutdown

import (
	"os"
	"syscall"
	"testing"

	"go_kunquant/core"
)

func TestSignalCounter_ForcesOnSecond(t *testing.T) {
	forced := -1
	c := NewSignalCounter(2, func(code int) { forced = code })

	if n := c.Observe(os.Interrupt); n != 1 || forced != -1 {
		t.Fatalf("first signal: count=%d forced=%d", n, forced)
	}
	c.Observe(syscall.SIGTERM)
	if forced != core.ExitCodeSIGTERM {
		t.Errorf("forced with %d, want %d", forced, core.ExitCodeSIGTERM)
	}
	if c.Last() != syscall.SIGTERM {
		t.Errorf("Last() = %v", c.Last())
	}

	c.Reset()
	if c.Count() != 0 || c.Last() != nil {
		t.Error("Reset did not clear state")
	}
}

func TestSignalCounter_NilCallback(t *testing.T) {
	c := NewSignalCounter(1, nil)
	if c.Observe(os.Interrupt) != 1 {
		t.Error("count not incremented")
	}
}

func TestSignalExitCode(t *testing.T) {
	cases := []struct {
		sig  os.Signal
		want int
	}{
		{os.Interrupt, core.ExitCodeSIGINT},
		{syscall.SIGTERM, core.ExitCodeSIGTERM},
		{nil, core.ExitCodeSuccess},
	}
	for _, tc := range cases {
		if got := SignalExitCode(tc.sig); got != tc.want {
			t.Errorf("SignalExitCode(%v) = %d, want %d", tc.sig, got, tc.want)
		}
	}
}
