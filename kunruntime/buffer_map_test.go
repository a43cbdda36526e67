package kunruntime_test

import (
	"errors"
	"reflect"
	"testing"

	"go_kunquant/kunruntime"
	"go_kunquant/kunruntime/kuntest"
)

func TestBufferMap_SetAndErase(t *testing.T) {
	eng, _ := kuntest.Setup(t)

	m, err := kunruntime.NewBufferMap()
	if err != nil {
		t.Fatalf("NewBufferMap: %v", err)
	}
	defer m.Close()

	a := make([]float32, 16)
	b := make([]float32, 16)
	if err := m.Set("open", a); err != nil {
		t.Fatal(err)
	}
	if err := m.Set("close", b); err != nil {
		t.Fatal(err)
	}

	if got := m.Names(); !reflect.DeepEqual(got, []string{"close", "open"}) {
		t.Errorf("Names() = %v", got)
	}
	if !m.Has("open") || m.Len() != 2 {
		t.Errorf("Has/Len wrong: has=%v len=%d", m.Has("open"), m.Len())
	}
	if buf, ok := m.Buffer("open"); !ok || &buf[0] != &a[0] {
		t.Error("Buffer() does not alias the registered slice")
	}

	m.Erase("open")
	m.Erase("never_registered")

	if m.Has("open") || m.Len() != 1 {
		t.Error("Erase did not remove the entry")
	}
	if n := eng.Calls("EraseBuffer"); n != 1 {
		t.Errorf("EraseBuffer called %d times, want 1", n)
	}
	if got := eng.LiveNames(); !reflect.DeepEqual(got, []string{"close"}) {
		t.Errorf("live name copies = %v, want [close]", got)
	}
}

func TestBufferMap_ReRegisterReplacesName(t *testing.T) {
	// DOING: Register the same name twice
	// EXPECT: one live name copy, the newest slice aliased
	eng, _ := kuntest.Setup(t)

	m := kunruntime.MustNewBufferMap()
	defer m.Close()

	first := make([]float32, 8)
	second := make([]float32, 8)
	m.Set("x", first)
	m.Set("x", second)

	if got := eng.Live().Names; got != 1 {
		t.Errorf("live names = %d, want 1", got)
	}
	if buf, _ := m.Buffer("x"); &buf[0] != &second[0] {
		t.Error("expected the second slice to be registered")
	}
}

func TestBufferMap_InvalidName(t *testing.T) {
	// DOING: Register names that cannot become C strings
	// EXPECT: ErrInvalidName and zero engine calls
	eng, _ := kuntest.Setup(t)

	m := kunruntime.MustNewBufferMap()
	defer m.Close()

	names := []string{"\x00", "a\x00b", "close\x00"}
	for _, name := range names {
		eng.ResetCalls()
		err := m.Set(name, make([]float32, 8))
		if !errors.Is(err, kunruntime.ErrInvalidName) {
			t.Errorf("Set(%q): got %v, want ErrInvalidName", name, err)
		}
		if n := eng.TotalCalls(); n != 0 {
			t.Errorf("Set(%q): %d engine calls", name, n)
		}
	}
	if m.Len() != 0 {
		t.Error("rejected names were registered")
	}
}

func TestBufferMap_EmptyBuffer(t *testing.T) {
	kuntest.Setup(t)

	m := kunruntime.MustNewBufferMap()
	defer m.Close()

	if err := m.Set("x", nil); !errors.Is(err, kunruntime.ErrEmptyBuffer) {
		t.Errorf("got %v, want ErrEmptyBuffer", err)
	}
}

func TestBufferMap_CloseReleasesEverything(t *testing.T) {
	eng, _ := kuntest.Setup(t)

	m := kunruntime.MustNewBufferMap()
	data := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	m.Set("a", data)
	m.Set("b", make([]float32, 8))

	m.Close()
	m.Close()

	live := eng.Live()
	if live.BufferMaps != 0 || live.Names != 0 {
		t.Errorf("leaked handles after Close: %+v", live)
	}
	if n := eng.Calls("DestroyBufferNameMap"); n != 1 {
		t.Errorf("DestroyBufferNameMap called %d times", n)
	}
	if data[7] != 8 {
		t.Error("Close touched caller memory")
	}
	if err := m.Set("c", data); !errors.Is(err, kunruntime.ErrClosed) {
		t.Errorf("Set after Close: got %v, want ErrClosed", err)
	}
}

func TestBufferMap_CreationFailure(t *testing.T) {
	eng, _ := kuntest.Setup(t)
	eng.Fail(kuntest.FailBufferMap, true)

	if _, err := kunruntime.NewBufferMap(); !errors.Is(err, kunruntime.ErrBufferMapCreationFailed) {
		t.Fatalf("got %v, want ErrBufferMapCreationFailed", err)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("MustNewBufferMap did not panic")
		}
		if err, ok := r.(error); !ok || !errors.Is(err, kunruntime.ErrBufferMapCreationFailed) {
			t.Errorf("panic value = %v", r)
		}
	}()
	kunruntime.MustNewBufferMap()
}
