// Package manifest reads the YAML files that describe a factor run: which
// library and module to use, the panel shape and where the input and
// output matrices live.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go_kunquant/dataio"
	"go_kunquant/kunruntime"

	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	ModeBatch  = "batch"
	ModeStream = "stream"
)

// Manifest describes one factor run.
//
//	library: alpha101
//	module: alpha001
//	mode: batch
//	stocks: 16
//	window:
//	  total: 250
//	  offset: 200
//	  length: 50
//	header: true
//	inputs:
//	  close: data/close.csv
//	outputs:
//	  alpha001: out/alpha001.csv
type Manifest struct {
	Name    string `yaml:"name,omitempty"`
	Library string `yaml:"library"`
	Module  string `yaml:"module"`
	Mode    string `yaml:"mode"`
	Stocks  int    `yaml:"stocks"`
	Threads int    `yaml:"threads,omitempty"`

	// Window applies to batch runs. A zero Length means the whole series.
	Window Window `yaml:"window,omitempty"`

	Inputs  map[string]string `yaml:"inputs"`
	Outputs map[string]string `yaml:"outputs"`

	// Header is auto, true or false: whether input files start with a row
	// of stock names. Auto cannot tell numeric stock codes from data.
	Header string `yaml:"header,omitempty"`

	// OutputDir receives outputs that have no explicit path.
	OutputDir string `yaml:"output_dir,omitempty"`

	// Persist records the run and its outputs in the run store.
	Persist bool `yaml:"persist,omitempty"`

	// dir is the manifest's directory, used to resolve relative paths.
	dir string
}

// Window selects the time range a batch run computes.
type Window struct {
	Total  int `yaml:"total,omitempty"`
	Offset int `yaml:"offset,omitempty"`
	Length int `yaml:"length,omitempty"`
}

// Load reads and validates the manifest at path. Relative paths inside it
// are resolved against its directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes and validates a manifest. Unknown keys are rejected.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse manifest: empty document")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.dir = baseDir
	if m.Mode == "" {
		m.Mode = ModeBatch
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest is complete and self-consistent. Stock
// alignment is left to the engine.
func (m *Manifest) Validate() error {
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if m.Library == "" {
		add("library", "is required")
	}
	if m.Module == "" {
		add("module", "is required")
	}
	if m.Mode != ModeBatch && m.Mode != ModeStream {
		add("mode", "must be %q or %q, got %q", ModeBatch, ModeStream, m.Mode)
	}
	if m.Stocks < 1 {
		add("stocks", "must be positive, got %d", m.Stocks)
	}
	if m.Threads < 0 {
		add("threads", "must not be negative, got %d", m.Threads)
	}
	if len(m.Inputs) == 0 {
		add("inputs", "at least one input is required")
	}
	if len(m.Outputs) == 0 {
		add("outputs", "at least one output is required")
	}
	for name := range m.Inputs {
		if _, dup := m.Outputs[name]; dup {
			add("outputs."+name, "is also declared as an input")
		}
	}

	if _, err := dataio.ParseHeaderMode(m.Header); err != nil {
		add("header", "must be auto, true or false, got %q", m.Header)
	}

	w := m.Window
	if w.Total < 0 || w.Offset < 0 || w.Length < 0 {
		add("window", "values must not be negative")
	}
	if w.Total > 0 && w.Offset+w.Length > w.Total {
		add("window", "offset %d + length %d exceeds total %d", w.Offset, w.Length, w.Total)
	}
	if m.Mode == ModeStream && (w.Offset != 0 || w.Length != 0) {
		add("window", "offset and length only apply to batch runs")
	}

	return errors.Join(errs...)
}

// FieldError reports one invalid manifest field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("manifest %s: %s", e.Field, e.Message)
}

// HeaderMode returns how input files treat their first row. An invalid
// value, which Validate reports, reads as auto.
func (m *Manifest) HeaderMode() dataio.HeaderMode {
	mode, err := dataio.ParseHeaderMode(m.Header)
	if err != nil {
		return dataio.HeaderAuto
	}
	return mode
}

// Dir returns the directory relative paths are resolved against.
func (m *Manifest) Dir() string {
	return m.dir
}

// Resolve returns path relative to the manifest's directory. Absolute
// paths are returned unchanged.
func (m *Manifest) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

// InputNames returns the input buffer names sorted.
func (m *Manifest) InputNames() []string {
	return sortedKeys(m.Inputs)
}

// OutputNames returns the output buffer names sorted.
func (m *Manifest) OutputNames() []string {
	return sortedKeys(m.Outputs)
}

// InputPath returns the resolved CSV path of input name.
func (m *Manifest) InputPath(name string) string {
	return m.Resolve(m.Inputs[name])
}

// OutputPath returns the resolved CSV path of output name. An output with
// no path goes to <output_dir>/<name>.csv, or nowhere if neither is set.
func (m *Manifest) OutputPath(name string) string {
	if p := m.Outputs[name]; p != "" {
		return m.Resolve(p)
	}
	if m.OutputDir == "" {
		return ""
	}
	return m.Resolve(filepath.Join(m.OutputDir, name+".csv"))
}

// WindowParams returns the batch window for a series of totalTime rows.
// Total, when set, must match the series length.
func (m *Manifest) WindowParams(totalTime int) (kunruntime.WindowParams, error) {
	w := m.Window
	if w.Total != 0 && w.Total != totalTime {
		return kunruntime.WindowParams{}, &FieldError{
			Field:   "window.total",
			Message: fmt.Sprintf("is %d but the inputs have %d rows", w.Total, totalTime),
		}
	}
	if w.Length == 0 {
		if w.Offset >= totalTime {
			return kunruntime.WindowParams{}, &FieldError{
				Field:   "window.offset",
				Message: fmt.Sprintf("%d is past the last of %d rows", w.Offset, totalTime),
			}
		}
		return kunruntime.NewWindowParams(m.Stocks, totalTime, w.Offset, totalTime-w.Offset), nil
	}
	params := kunruntime.NewWindowParams(m.Stocks, totalTime, w.Offset, w.Length)
	if err := params.Validate(); err != nil {
		return kunruntime.WindowParams{}, &FieldError{Field: "window", Message: err.Error()}
	}
	return params, nil
}

// RuntimeConfig returns base with the manifest's library and thread count
// applied. The library is resolved against the manifest directory first.
func (m *Manifest) RuntimeConfig(base kunruntime.RuntimeConfig) kunruntime.RuntimeConfig {
	cfg := base
	cfg.LibraryPath = m.Library
	if strings.ContainsAny(m.Library, `/\`) {
		cfg.LibraryPath = m.Resolve(m.Library)
	}
	if m.dir != "" {
		cfg.LibraryDirs = append([]string{m.dir}, base.LibraryDirs...)
	}
	if m.Threads > 0 {
		cfg.Threads = m.Threads
	}
	return cfg
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
