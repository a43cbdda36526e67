package kuntest

import (
	"os"
	"path/filepath"
	"testing"

	"go_kunquant/kunruntime"
)

// Names of the sample modules, matching the test factors KunQuant builds.
const (
	SimpleTestName   = "simple_test"
	SimpleStreamName = "simple_stream_test"
	StreamOutput     = "simple_stream"
)

// SimpleTest returns a batch module computing output = input * 3.
func SimpleTest() Module {
	return Module{
		Name:    SimpleTestName,
		Inputs:  []string{"input"},
		Outputs: []string{"output"},
		Compute: func(in, out map[string][]float32) {
			for i, v := range in["input"] {
				out["output"][i] = v * 3
			}
		},
	}
}

// SimpleStream returns a streaming module computing
// simple_stream = (close - open) / (high - low + 0.001).
func SimpleStream() Module {
	return Module{
		Name:      SimpleStreamName,
		Inputs:    []string{"close", "open", "high", "low"},
		Outputs:   []string{StreamOutput},
		Streaming: true,
		Compute: func(in, out map[string][]float32) {
			c, o, h, l := in["close"], in["open"], in["high"], in["low"]
			for i := range out[StreamOutput] {
				out[StreamOutput][i] = (c[i] - o[i]) / (h[i] - l[i] + 0.001)
			}
		},
	}
}

// Spread returns a batch-and-stream module with two outputs:
// range = high - low and mid = (high + low) / 2.
func Spread() Module {
	return Module{
		Name:      "spread",
		Inputs:    []string{"high", "low"},
		Outputs:   []string{"range", "mid"},
		Streaming: true,
		Compute: func(in, out map[string][]float32) {
			h, l := in["high"], in["low"]
			for i := range out["range"] {
				out["range"][i] = h[i] - l[i]
				out["mid"][i] = (h[i] + l[i]) / 2
			}
		},
	}
}

// WriteLibrary creates a file carrying an ELF header under dir, so it passes
// the existence and header checks made before a load. It returns the path.
func WriteLibrary(tb testing.TB, dir, name string) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	header := []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}
	if err := os.WriteFile(path, header, 0o644); err != nil {
		tb.Fatalf("write fake library: %v", err)
	}
	return path
}

// Setup writes a library file holding mods, registers it on a fresh engine
// and installs the engine for the duration of the test.
func Setup(tb testing.TB, mods ...Module) (*Engine, string) {
	tb.Helper()

	eng := New()
	path := WriteLibrary(tb, tb.TempDir(), "factors.so")
	eng.Register(path, mods...)

	tb.Cleanup(kunruntime.SetEngine(eng))
	return eng, path
}
