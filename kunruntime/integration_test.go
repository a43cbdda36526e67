//go:build kunquant && cgo && !stub

package kunruntime_test

import (
	"errors"
	"os"
	"testing"

	"go_kunquant/kunruntime"
)

// These tests need the KunQuant test factors, built with
// KunQuant's generate_test_factor script. Point KUN_TEST_LIBRARY_DIR at the
// directory holding simple_test_lib and simple_stream_test_lib.
func testLibrary(t *testing.T, name string) string {
	t.Helper()
	dir := os.Getenv("KUN_TEST_LIBRARY_DIR")
	if dir == "" {
		t.Skip("KUN_TEST_LIBRARY_DIR not set")
	}
	path := kunruntime.ResolveLibraryPath(name, dir)
	if !kunruntime.LibraryExists(path) {
		t.Skipf("test library not built: %s", path)
	}
	return path
}

func TestIntegration_Batch(t *testing.T) {
	path := testLibrary(t, "simple_test_lib")

	exec, err := kunruntime.NewSingleThreadExecutor()
	if err != nil {
		t.Fatal(err)
	}
	defer exec.Close()
	lib, err := kunruntime.LoadLibrary(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()
	mod, err := lib.Module("simple_test")
	if err != nil {
		t.Fatal(err)
	}

	input := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	output := make([]float32, 8)
	buffers := kunruntime.MustNewBufferMap()
	defer buffers.Close()
	buffers.Set("input", input)
	buffers.Set("output", output)

	if err := kunruntime.RunBatch(exec, mod, buffers, kunruntime.FullRange(8, 1)); err != nil {
		t.Fatal(err)
	}
	for i, v := range output {
		if !approxEqual(v, input[i]*3) {
			t.Errorf("output[%d] = %v, want %v", i, v, input[i]*3)
		}
	}

	if _, err := lib.Module("nonexistent_module"); !errors.Is(err, kunruntime.ErrModuleNotFound) {
		t.Errorf("missing module: got %v", err)
	}
}

func TestIntegration_Stream(t *testing.T) {
	path := testLibrary(t, "simple_stream_test_lib")

	exec, err := kunruntime.NewSingleThreadExecutor()
	if err != nil {
		t.Fatal(err)
	}
	defer exec.Close()
	lib, err := kunruntime.LoadLibrary(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()
	mod, err := lib.Module("simple_stream_test")
	if err != nil {
		t.Fatal(err)
	}
	s, err := kunruntime.NewStream(exec, mod, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	close := []float32{100, 101, 102, 103, 104, 105, 106, 107}
	open := []float32{99, 100, 101, 102, 103, 104, 105, 106}
	high := []float32{102, 103, 104, 105, 106, 107, 108, 109}
	low := []float32{98, 99, 100, 101, 102, 103, 104, 105}

	if err := s.Step(map[string][]float32{"close": close, "open": open, "high": high, "low": low}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read("simple_stream")
	if err != nil {
		t.Fatal(err)
	}
	for i := range got {
		want := (close[i] - open[i]) / (high[i] - low[i] + 0.001)
		if !approxEqual(got[i], want) {
			t.Errorf("stock %d: got %v, want %v", i, got[i], want)
		}
	}

	if _, err := s.Read("nonexistent_output"); !errors.Is(err, kunruntime.ErrBufferHandleNotFound) {
		t.Errorf("unknown output: got %v", err)
	}
}
