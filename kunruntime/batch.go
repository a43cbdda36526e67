package kunruntime

import (
	"fmt"
)

// StockAlignment is the stock-count multiple the engine's SIMD kernels need.
const StockAlignment = 8

// WindowParams describes which part of the time axis a batch run computes.
//
// Buffers hold TotalTime rows of Stocks values each, laid out time-major:
// the value for stock s at time t sits at index t*Stocks+s. The run computes
// rows [Offset, Offset+Length).
type WindowParams struct {
	Stocks    int
	TotalTime int
	Offset    int
	Length    int
}

// NewWindowParams builds a window over rows [offset, offset+length).
func NewWindowParams(stocks, totalTime, offset, length int) WindowParams {
	return WindowParams{
		Stocks:    stocks,
		TotalTime: totalTime,
		Offset:    offset,
		Length:    length,
	}
}

// FullRange builds a window covering every row.
func FullRange(stocks, totalTime int) WindowParams {
	return NewWindowParams(stocks, totalTime, 0, totalTime)
}

// BufferLen is the number of values an input buffer holds: every stock
// at every time step of the series.
func (p WindowParams) BufferLen() int {
	return p.Stocks * p.TotalTime
}

// OutputLen is the number of values an output buffer holds. Outputs cover
// only the window, so row 0 of an output is time step Offset.
func (p WindowParams) OutputLen() int {
	return p.Stocks * p.Length
}

// Validate checks the window against its own totals.
// RunBatch only calls it in kundebug builds; callers may call it themselves.
func (p WindowParams) Validate() error {
	switch {
	case p.Stocks < 1:
		return &KunError{Op: "WindowParams.Validate", Message: fmt.Sprintf("stocks=%d", p.Stocks), Err: ErrInvalidStockCount}
	case p.TotalTime < 0, p.Offset < 0, p.Length < 0:
		return &KunError{Op: "WindowParams.Validate", Message: p.String(), Err: ErrInvalidWindow}
	case p.Offset+p.Length > p.TotalTime:
		return &KunError{
			Op:      "WindowParams.Validate",
			Message: fmt.Sprintf("offset+length=%d exceeds total_time=%d", p.Offset+p.Length, p.TotalTime),
			Err:     ErrInvalidWindow,
		}
	}
	return nil
}

// ValidateStockCount checks the engine's alignment requirement.
func (p WindowParams) ValidateStockCount() error {
	return validateStockCount("WindowParams.ValidateStockCount", p.Stocks)
}

func (p WindowParams) String() string {
	return fmt.Sprintf("stocks=%d total_time=%d offset=%d length=%d", p.Stocks, p.TotalTime, p.Offset, p.Length)
}

func validateStockCount(op string, stocks int) error {
	if stocks < 1 || stocks%StockAlignment != 0 {
		return &KunError{
			Op:      op,
			Message: fmt.Sprintf("stocks=%d is not a positive multiple of %d", stocks, StockAlignment),
			Err:     ErrInvalidStockCount,
		}
	}
	return nil
}

// RunBatch runs mod over the window described by params, reading inputs from
// and writing outputs into the slices registered in buffers. Inputs hold
// BufferLen values; outputs hold OutputLen values starting at time Offset.
//
// The call is synchronous. The engine reports no status, so a nil error
// means the call was made, not that the module found every buffer it needed.
// Errors are returned for nil or closed resources, and in kundebug builds for
// windows and buffers that do not fit together.
//
// The executor and library are kept alive and the buffer map is read-locked
// until the engine returns. Runs on disjoint buffer maps may proceed
// concurrently on a shared executor.
func RunBatch(exec *Executor, mod *Module, buffers *BufferMap, params WindowParams) error {
	const op = "RunBatch"

	if buffers == nil {
		return &KunError{Op: op, Message: "buffer map is nil", Err: ErrNullPointer}
	}
	if err := exec.borrow(op); err != nil {
		return err
	}
	defer exec.unborrow()
	if err := mod.borrow(op); err != nil {
		return err
	}
	defer mod.unborrow()

	buffers.mu.RLock()
	defer buffers.mu.RUnlock()

	if buffers.closed {
		return &KunError{Op: op, Message: "buffer map is closed", Err: ErrClosed}
	}

	if debugChecks {
		if err := checkBatch(params, buffers); err != nil {
			return err
		}
	}

	exec.api.RunGraph(
		exec.handle,
		mod.handle,
		buffers.handle,
		uintptr(params.Stocks),
		uintptr(params.TotalTime),
		uintptr(params.Offset),
		uintptr(params.Length),
	)
	return nil
}

// checkBatch is the kundebug precondition check. Caller holds buffers.mu.
func checkBatch(params WindowParams, buffers *BufferMap) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := params.ValidateStockCount(); err != nil {
		return err
	}

	// The map does not know which buffers are outputs, so only the
	// smaller output length can be enforced for every buffer.
	want := params.OutputLen()
	for name, entry := range buffers.entries {
		if len(entry.data) < want {
			return &SizeMismatchError{Name: name, Expected: want, Actual: len(entry.data)}
		}
	}
	return nil
}
