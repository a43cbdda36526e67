package kunruntime

import "testing"

func TestLifetime_CloseWithoutBorrowers(t *testing.T) {
	// DOING: Close a lifetime nobody borrows
	// EXPECT: release runs immediately, exactly once
	released := 0
	l := newLifetime(func() { released++ })

	if !l.close() {
		t.Fatal("first close should report true")
	}
	if l.close() {
		t.Error("second close should report false")
	}
	if released != 1 {
		t.Errorf("release ran %d times, want 1", released)
	}
	if !l.isReleased() {
		t.Error("expected released state")
	}
}

func TestLifetime_CloseDeferredUntilLastDrop(t *testing.T) {
	// DOING: Close while two borrowers hold references
	// EXPECT: release waits for the second drop
	released := 0
	l := newLifetime(func() { released++ })

	if !l.acquire() || !l.acquire() {
		t.Fatal("acquire on open lifetime failed")
	}
	l.close()

	if released != 0 {
		t.Fatal("released while borrowed")
	}
	if l.acquire() {
		t.Error("acquire after close should fail")
	}

	l.drop()
	if released != 0 {
		t.Fatal("released with one borrower left")
	}
	if got := l.borrowers(); got != 1 {
		t.Errorf("borrowers = %d, want 1", got)
	}

	l.drop()
	if released != 1 {
		t.Errorf("release ran %d times, want 1", released)
	}
}

func TestLifetime_DropWhileOpenDoesNotRelease(t *testing.T) {
	released := false
	l := newLifetime(func() { released = true })

	l.acquire()
	l.drop()

	if released {
		t.Error("drop on an open lifetime must not release")
	}
	if l.isClosed() {
		t.Error("lifetime should still be open")
	}
}
