package kunruntime

import "fmt"

// =============================================================================
// Buffer Layout Atoms
// =============================================================================
//
// Batch buffers are time-major: row t holds the values of every stock at
// time t. Data usually arrives per stock (one series per instrument), so
// these helpers convert between the two orders. They copy.

// ToTimeMajor flattens per-stock series into a time-major buffer.
// Every series must have the same length.
func ToTimeMajor(series [][]float32) ([]float32, error) {
	stocks := len(series)
	if stocks == 0 {
		return nil, fmt.Errorf("kunruntime: no series to lay out: %w", ErrEmptyBuffer)
	}
	total := len(series[0])
	for i, s := range series {
		if len(s) != total {
			return nil, &SizeMismatchError{Name: fmt.Sprintf("series[%d]", i), Expected: total, Actual: len(s)}
		}
	}

	out := make([]float32, stocks*total)
	for s, values := range series {
		for t, v := range values {
			out[t*stocks+s] = v
		}
	}
	return out, nil
}

// FromTimeMajor splits a time-major buffer back into per-stock series.
func FromTimeMajor(buf []float32, stocks int) ([][]float32, error) {
	if stocks < 1 {
		return nil, &KunError{Op: "FromTimeMajor", Message: fmt.Sprintf("stocks=%d", stocks), Err: ErrInvalidStockCount}
	}
	if len(buf)%stocks != 0 {
		return nil, &SizeMismatchError{Name: "buffer", Expected: (len(buf)/stocks + 1) * stocks, Actual: len(buf)}
	}

	total := len(buf) / stocks
	out := make([][]float32, stocks)
	for s := range out {
		series := make([]float32, total)
		for t := range series {
			series[t] = buf[t*stocks+s]
		}
		out[s] = series
	}
	return out, nil
}

// Matrix is a time-major buffer with its shape attached.
type Matrix struct {
	Stocks int
	Times  int
	Data   []float32
}

// NewMatrix allocates a zeroed times x stocks matrix.
func NewMatrix(stocks, times int) *Matrix {
	return &Matrix{Stocks: stocks, Times: times, Data: make([]float32, stocks*times)}
}

// At returns the value for stock s at time t.
func (m *Matrix) At(t, s int) float32 {
	return m.Data[t*m.Stocks+s]
}

// Set stores the value for stock s at time t.
func (m *Matrix) Set(t, s int, v float32) {
	m.Data[t*m.Stocks+s] = v
}

// Row returns the values of every stock at time t. The slice aliases Data.
func (m *Matrix) Row(t int) []float32 {
	return m.Data[t*m.Stocks : (t+1)*m.Stocks]
}

// Window returns the full-range window parameters for the matrix.
func (m *Matrix) Window() WindowParams {
	return FullRange(m.Stocks, m.Times)
}
