package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Run modes.
const (
	ModeBatch  = "batch"
	ModeStream = "stream"
)

// FactorRun describes one batch run or stream replay for structured logs.
// Implements zapcore.ObjectMarshaler.
//
//	logger.Info("run complete", logging.RunFields(run))
type FactorRun struct {
	RunID   string
	Mode    string
	Library string
	Module  string

	Stocks int
	Steps  int // time rows for batch, ticks for stream

	Inputs  []string
	Outputs []string

	Duration time.Duration
}

// Values returns how many output values the run produced.
func (r FactorRun) Values() int {
	return r.Stocks * r.Steps * len(r.Outputs)
}

// ValuesPerSecond is the output throughput, 0 for an instantaneous run.
func (r FactorRun) ValuesPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Values()) / r.Duration.Seconds()
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
// Duration is logged in milliseconds.
func (r FactorRun) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("run_id", r.RunID)
	enc.AddString("mode", r.Mode)
	enc.AddString("library", r.Library)
	enc.AddString("module", r.Module)
	enc.AddInt("stocks", r.Stocks)
	enc.AddInt("steps", r.Steps)
	if err := enc.AddArray("inputs", stringArray(r.Inputs)); err != nil {
		return err
	}
	if err := enc.AddArray("outputs", stringArray(r.Outputs)); err != nil {
		return err
	}
	enc.AddInt64("duration_ms", r.Duration.Milliseconds())
	enc.AddFloat64("values_per_second", r.ValuesPerSecond())
	return nil
}

type stringArray []string

func (a stringArray) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, s := range a {
		enc.AppendString(s)
	}
	return nil
}
