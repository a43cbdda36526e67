package shutdown

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go_kunquant/core"

	"go.uber.org/zap/zaptest"
)

func TestManager_TrackRunsFn(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))

	ran := false
	err := m.Track(context.Background(), "run-1", func(ctx context.Context) error {
		ran = true
		if got := m.ActiveRuns(); len(got) != 1 || got[0] != "run-1" {
			t.Errorf("ActiveRuns() = %v", got)
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("err=%v ran=%v", err, ran)
	}
	if len(m.ActiveRuns()) != 0 {
		t.Error("run still active after Track returned")
	}
}

func TestManager_SignalCancelsRun(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithForceExit(func(int) {}))

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Track(context.Background(), "replay", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	// DOING: deliver a signal the way the signal goroutine would
	m.handleSignal(os.Interrupt)

	// EXPECT: the run sees cancellation and the exit code reflects SIGINT
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Track = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled")
	}
	if !m.Interrupted() || m.ExitCode() != core.ExitCodeSIGINT {
		t.Errorf("interrupted=%v exit=%d", m.Interrupted(), m.ExitCode())
	}
}

func TestManager_SecondSignalForces(t *testing.T) {
	code := -1
	m := NewManager(zaptest.NewLogger(t), WithForceExit(func(c int) { code = c }))

	m.handleSignal(os.Interrupt)
	m.handleSignal(os.Interrupt)

	if code != core.ExitCodeSIGINT {
		t.Errorf("force exit code = %d", code)
	}
}

func TestManager_ShutdownOrderAndRejects(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithTimeout(time.Second))
	var order []string
	m.Register("logger", PriorityLogger, func(context.Context) error { order = append(order, "logger"); return nil })
	m.RegisterCloser("runtime", PriorityRuntime, closerFunc(func() error { order = append(order, "runtime"); return nil }))
	m.Register("writer", PriorityWriters, func(context.Context) error { order = append(order, "writer"); return nil })

	if got := strings.Join(m.RegisteredHandlers(), ","); got != "writer,runtime,logger" {
		t.Errorf("RegisteredHandlers() = %s", got)
	}
	if err := m.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "writer,runtime,logger" {
		t.Errorf("order = %v", order)
	}
	if !m.IsShuttingDown() {
		t.Error("IsShuttingDown false after Shutdown")
	}
	if m.Context().Err() == nil {
		t.Error("context not cancelled by Shutdown")
	}

	err := m.Track(context.Background(), "late", func(context.Context) error {
		t.Error("fn called after shutdown")
		return nil
	})
	if !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Track after Shutdown = %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
	if m.ExitCode() != core.ExitCodeSuccess {
		t.Errorf("ExitCode = %d without a signal", m.ExitCode())
	}
}

func TestManager_ShutdownWaitsForRun(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithTimeout(2*time.Second))
	finished := false
	m.Register("runtime", PriorityRuntime, func(context.Context) error {
		if !finished {
			t.Error("cleanup ran before the active run ended")
		}
		return nil
	})

	started := make(chan struct{})
	go m.Track(context.Background(), "batch", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished = true
		return nil
	})
	<-started

	if err := m.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestManager_StartIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.Start()
	m.Start()
	if err := m.Shutdown(); err != nil {
		t.Fatal(err)
	}
}
