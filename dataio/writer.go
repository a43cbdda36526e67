package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go_kunquant/core"
)

// RowWriter appends time steps to a CSV panel. Stream replays use it to
// write each tick as it is read.
type RowWriter struct {
	cw     *csv.Writer
	stocks int
	record []string
	rows   int
}

// NewRowWriter writes the header, if any, and returns a writer for rows of
// width stocks.
func NewRowWriter(w io.Writer, stocks int, header []string) (*RowWriter, error) {
	if header != nil && len(header) != stocks {
		return nil, fmt.Errorf("header has %d names for %d stocks", len(header), stocks)
	}
	rw := &RowWriter{cw: csv.NewWriter(w), stocks: stocks, record: make([]string, stocks)}
	if header != nil {
		if err := rw.cw.Write(header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return rw, nil
}

// WriteRow writes one time step.
func (rw *RowWriter) WriteRow(row []float32) error {
	if len(row) != rw.stocks {
		return fmt.Errorf("row has %d values, want %d", len(row), rw.stocks)
	}
	for i, v := range row {
		rw.record[i] = FormatValue(v)
	}
	if err := rw.cw.Write(rw.record); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rw.rows, err)
	}
	rw.rows++
	return nil
}

// Rows returns the number of rows written.
func (rw *RowWriter) Rows() int {
	return rw.rows
}

// Flush writes buffered rows to the underlying writer.
func (rw *RowWriter) Flush() error {
	rw.cw.Flush()
	return rw.cw.Error()
}

// OutputFile is a RowWriter backed by a partial file next to its final
// path. Commit renames it into place; Abort removes it.
type OutputFile struct {
	*RowWriter
	path string
	tmp  string
	f    *os.File
	done bool
}

// CreateOutput creates the parent directory and the partial file for path.
func CreateOutput(path string, stocks int, header []string) (*OutputFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp := path + core.PartialSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	rw, err := NewRowWriter(f, stocks, header)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}
	return &OutputFile{RowWriter: rw, path: path, tmp: tmp, f: f}, nil
}

// Path returns the final path.
func (o *OutputFile) Path() string {
	return o.path
}

// Commit flushes, closes and renames the file into place.
func (o *OutputFile) Commit() error {
	if o.done {
		return nil
	}
	o.done = true

	if err := o.Flush(); err != nil {
		o.f.Close()
		os.Remove(o.tmp)
		return err
	}
	if err := o.f.Close(); err != nil {
		os.Remove(o.tmp)
		return fmt.Errorf("failed to close %s: %w", o.tmp, err)
	}
	if err := os.Rename(o.tmp, o.path); err != nil {
		os.Remove(o.tmp)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// CommitAll commits files in order. When one fails, the files this call
// moved into place are removed again and the rest are aborted.
func CommitAll(files []*OutputFile) error {
	var moved []string
	for i, o := range files {
		if o.done {
			continue
		}
		if err := o.Commit(); err != nil {
			for _, path := range moved {
				os.Remove(path)
			}
			for _, rest := range files[i+1:] {
				rest.Abort()
			}
			return err
		}
		moved = append(moved, o.path)
	}
	return nil
}

// Abort discards the partial file. It does nothing after Commit.
func (o *OutputFile) Abort() {
	if o.done {
		return
	}
	o.done = true
	o.f.Close()
	os.Remove(o.tmp)
}
