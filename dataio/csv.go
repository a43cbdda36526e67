// Package dataio reads and writes factor panels as CSV. A file holds one
// buffer: each row is a time step and each column a stock, with an
// optional header row naming the stocks.
package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go_kunquant/kunruntime"
)

// ErrEmptyPanel is returned for a file without data rows.
var ErrEmptyPanel = errors.New("panel has no data rows")

// HeaderMode says how the first row of a panel is treated.
type HeaderMode string

const (
	// HeaderAuto takes the first row as a header when any cell is not a
	// number. Numeric stock codes need HeaderPresent.
	HeaderAuto    HeaderMode = "auto"
	HeaderPresent HeaderMode = "true"
	HeaderAbsent  HeaderMode = "false"
)

// ParseHeaderMode accepts auto, true/yes and false/no. Empty means auto.
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return HeaderAuto, nil
	case "true", "yes":
		return HeaderPresent, nil
	case "false", "no":
		return HeaderAbsent, nil
	}
	return "", fmt.Errorf("invalid header mode %q: must be auto, true or false", s)
}

// Panel is one buffer's data with optional stock names.
type Panel struct {
	Names []string
	*kunruntime.Matrix
}

// ReadPanel parses CSV from r, treating the first row as mode says. Empty
// cells and "NaN" read as NaN.
func ReadPanel(r io.Reader, mode HeaderMode) (*Panel, error) {
	rr := NewRowReader(r, mode)

	var (
		data []float32
		rows int
	)
	for {
		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		data = append(data, row...)
		rows++
	}

	if rows == 0 {
		return nil, ErrEmptyPanel
	}
	return &Panel{
		Names:  rr.Header(),
		Matrix: &kunruntime.Matrix{Stocks: rr.Width(), Times: rows, Data: data},
	}, nil
}

// RowReader reads a CSV panel one time step at a time.
type RowReader struct {
	cr     *csv.Reader
	mode   HeaderMode
	header []string
	width  int
	line   int
	row    []float32
}

// NewRowReader returns a reader over r. Nothing is read until Next.
func NewRowReader(r io.Reader, mode HeaderMode) *RowReader {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return &RowReader{cr: cr, mode: mode, width: -1}
}

// Next returns the next row, or io.EOF after the last one. The slice is
// reused by the following call.
func (rr *RowReader) Next() ([]float32, error) {
	for {
		record, err := rr.cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rr.line++

		if rr.line == 1 && rr.isHeader(record) {
			rr.header = append([]string(nil), record...)
			rr.width = len(record)
			continue
		}
		if rr.width == -1 {
			rr.width = len(record)
		}
		if len(record) != rr.width {
			return nil, fmt.Errorf("line %d: %d columns, want %d", rr.line, len(record), rr.width)
		}

		if cap(rr.row) < rr.width {
			rr.row = make([]float32, rr.width)
		}
		rr.row = rr.row[:rr.width]
		for col, cell := range record {
			v, err := ParseValue(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", rr.line, col+1, err)
			}
			rr.row[col] = v
		}
		return rr.row, nil
	}
}

// Header returns the stock names, or nil if the file has no header. It is
// known once Next has been called.
func (rr *RowReader) Header() []string {
	return rr.header
}

// Width returns the number of columns, or -1 before the first row.
func (rr *RowReader) Width() int {
	return rr.width
}

// ReadPanelFile reads the CSV file at path.
func ReadPanelFile(path string, mode HeaderMode) (*Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	p, err := ReadPanel(f, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WritePanel writes m as CSV, preceded by a header when stocks is set.
func WritePanel(w io.Writer, m *kunruntime.Matrix, stocks []string) error {
	rw, err := NewRowWriter(w, m.Stocks, stocks)
	if err != nil {
		return err
	}
	for t := 0; t < m.Times; t++ {
		if err := rw.WriteRow(m.Row(t)); err != nil {
			return err
		}
	}
	return rw.Flush()
}

// WritePanelFile writes m to path through a partial file that is renamed
// into place once complete.
func WritePanelFile(path string, m *kunruntime.Matrix, stocks []string) error {
	f, err := CreateOutput(path, m.Stocks, stocks)
	if err != nil {
		return err
	}
	for t := 0; t < m.Times; t++ {
		if err := f.WriteRow(m.Row(t)); err != nil {
			f.Abort()
			return err
		}
	}
	return f.Commit()
}

// ParseValue parses one cell. Empty cells and NaN spellings are NaN.
func ParseValue(cell string) (float32, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "na", "null":
		return float32(math.NaN()), nil
	}
	v, err := strconv.ParseFloat(cell, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", cell)
	}
	return float32(v), nil
}

// FormatValue renders v the way WritePanel does. NaN is written as an
// empty cell.
func FormatValue(v float32) string {
	if math.IsNaN(float64(v)) {
		return ""
	}
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func (rr *RowReader) isHeader(record []string) bool {
	switch rr.mode {
	case HeaderPresent:
		return true
	case HeaderAbsent:
		return false
	}
	for _, cell := range record {
		if _, err := ParseValue(cell); err != nil {
			return true
		}
	}
	return false
}
