package kunruntime_test

import (
	"errors"
	"testing"

	"go_kunquant/kunruntime"
	"go_kunquant/kunruntime/kuntest"
)

func TestNewSingleThreadExecutor(t *testing.T) {
	eng, _ := kuntest.Setup(t)

	exec, err := kunruntime.NewSingleThreadExecutor()
	if err != nil {
		t.Fatalf("NewSingleThreadExecutor: %v", err)
	}
	if exec.IsMultiThreaded() {
		t.Error("single-thread executor reports multi-threaded")
	}
	if exec.Threads() != 1 {
		t.Errorf("Threads() = %d, want 1", exec.Threads())
	}

	if err := exec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := eng.Live().Executors; got != 0 {
		t.Errorf("live executors after Close = %d", got)
	}
}

func TestNewMultiThreadExecutor(t *testing.T) {
	kuntest.Setup(t)

	tests := []struct {
		threads int
		wantErr bool
	}{
		{threads: 1},
		{threads: 4},
		{threads: 16},
		{threads: 0, wantErr: true},
		{threads: -2, wantErr: true},
	}

	for _, tt := range tests {
		exec, err := kunruntime.NewMultiThreadExecutor(tt.threads)
		if tt.wantErr {
			if !errors.Is(err, kunruntime.ErrExecutorCreationFailed) {
				t.Errorf("threads=%d: got %v, want ErrExecutorCreationFailed", tt.threads, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("threads=%d: %v", tt.threads, err)
		}
		if !exec.IsMultiThreaded() {
			t.Errorf("threads=%d: expected multi-threaded", tt.threads)
		}
		if exec.Threads() != tt.threads {
			t.Errorf("Threads() = %d, want %d", exec.Threads(), tt.threads)
		}
		exec.Close()
	}
}

func TestExecutor_CreationFailure(t *testing.T) {
	eng, _ := kuntest.Setup(t)
	eng.Fail(kuntest.FailExecutor, true)

	exec, err := kunruntime.NewSingleThreadExecutor()
	if exec != nil {
		t.Error("expected nil executor")
	}
	if !errors.Is(err, kunruntime.ErrExecutorCreationFailed) {
		t.Fatalf("got %v, want ErrExecutorCreationFailed", err)
	}
}

func TestExecutor_DoubleClose(t *testing.T) {
	eng, _ := kuntest.Setup(t)

	exec, err := kunruntime.NewSingleThreadExecutor()
	if err != nil {
		t.Fatal(err)
	}
	exec.Close()
	exec.Close()

	if n := eng.Calls("DestroyExecutor"); n != 1 {
		t.Errorf("DestroyExecutor called %d times, want 1", n)
	}
	if eng.DoubleFrees() != 0 {
		t.Error("engine saw a double free")
	}
}

func TestExecutor_NilClose(t *testing.T) {
	var exec *kunruntime.Executor
	if err := exec.Close(); err != nil {
		t.Errorf("Close on nil executor: %v", err)
	}
}
