package manifest

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go_kunquant/dataio"
	"go_kunquant/kunruntime"
)

func TestLoad_Batch(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "batch.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if m.Module != "simple_test" || m.Mode != ModeBatch || m.Stocks != 8 || !m.Persist {
		t.Errorf("unexpected manifest: %+v", m)
	}
	if got, want := m.InputPath("input"), filepath.Join("testdata", "data", "input.csv"); got != want {
		t.Errorf("InputPath = %q, want %q", got, want)
	}
	if got, want := m.OutputPath("output"), filepath.Join("testdata", "out", "output.csv"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}

	if m.HeaderMode() != dataio.HeaderPresent {
		t.Errorf("HeaderMode = %q, want %q", m.HeaderMode(), dataio.HeaderPresent)
	}

	params, err := m.WindowParams(4)
	if err != nil {
		t.Fatal(err)
	}
	if params != kunruntime.NewWindowParams(8, 4, 1, 3) {
		t.Errorf("WindowParams = %v", params)
	}

	cfg := m.RuntimeConfig(kunruntime.RuntimeConfig{LibraryDirs: []string{"factors"}})
	if cfg.LibraryPath != filepath.Join("testdata", "factors", "simple_test_lib.so") || cfg.Threads != 2 {
		t.Errorf("RuntimeConfig = %+v", cfg)
	}
}

func TestLoad_Stream(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "stream.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := m.InputNames(); strings.Join(got, ",") != "close,high,low,open" {
		t.Errorf("InputNames = %v", got)
	}
	// EXPECT: an empty output path falls back to output_dir
	if got, want := m.OutputPath("simple_stream"), filepath.Join("testdata", "out", "simple_stream.csv"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}

	// EXPECT: bare library names are searched for, manifest dir first
	cfg := m.RuntimeConfig(kunruntime.RuntimeConfig{LibraryDirs: []string{"factors"}})
	if cfg.LibraryPath != "simple_stream_test_lib" || cfg.LibraryDirs[0] != "testdata" || cfg.LibraryDirs[1] != "factors" {
		t.Errorf("RuntimeConfig = %+v", cfg)
	}
}

func TestParse_DefaultsToBatch(t *testing.T) {
	m, err := Parse([]byte(`
library: lib
module: m
stocks: 8
inputs: {a: a.csv}
outputs: {b: b.csv}
`), "")
	if err != nil {
		t.Fatal(err)
	}
	if m.Mode != ModeBatch {
		t.Errorf("Mode = %q", m.Mode)
	}
	// Whole series when no window is given.
	params, err := m.WindowParams(10)
	if err != nil || params != kunruntime.FullRange(8, 10) {
		t.Errorf("WindowParams = %v, %v", params, err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing library", "module: m\nstocks: 8\ninputs: {a: x}\noutputs: {b: y}", "library"},
		{"bad mode", "library: l\nmodule: m\nmode: live\nstocks: 8\ninputs: {a: x}\noutputs: {b: y}", "mode"},
		{"zero stocks", "library: l\nmodule: m\ninputs: {a: x}\noutputs: {b: y}", "stocks"},
		{"no outputs", "library: l\nmodule: m\nstocks: 8\ninputs: {a: x}", "outputs"},
		{"input as output", "library: l\nmodule: m\nstocks: 8\ninputs: {a: x}\noutputs: {a: y}", "outputs.a"},
		{"window overflow", "library: l\nmodule: m\nstocks: 8\nwindow: {total: 5, offset: 3, length: 3}\ninputs: {a: x}\noutputs: {b: y}", "window"},
		{"stream window", "library: l\nmodule: m\nmode: stream\nstocks: 8\nwindow: {offset: 1}\ninputs: {a: x}\noutputs: {b: y}", "window"},
		{"bad header", "library: l\nmodule: m\nstocks: 8\nheader: maybe\ninputs: {a: x}\noutputs: {b: y}", "header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "")
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %q, want %q (%v)", fe.Field, tt.field, err)
			}
		})
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("library: l\nmodule: m\nstockz: 8\n"), "")
	if err == nil || !strings.Contains(err.Error(), "stockz") {
		t.Errorf("expected unknown field error, got %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(nil, ""); err == nil {
		t.Error("expected error for empty manifest")
	}
}

func TestWindowParams_TotalMismatch(t *testing.T) {
	m := &Manifest{Stocks: 8, Window: Window{Total: 100}}
	if _, err := m.WindowParams(50); err == nil {
		t.Error("expected mismatch error")
	}
	m.Window = Window{Offset: 50}
	if _, err := m.WindowParams(50); err == nil {
		t.Error("expected offset past end error")
	}
}

func TestHeaderMode_DefaultsToAuto(t *testing.T) {
	m, err := Parse([]byte("library: l\nmodule: m\nstocks: 8\ninputs: {a: x}\noutputs: {b: y}"), "")
	if err != nil {
		t.Fatal(err)
	}
	if m.HeaderMode() != dataio.HeaderAuto {
		t.Errorf("HeaderMode = %q, want auto", m.HeaderMode())
	}
}
