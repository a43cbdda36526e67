package logging

import (
	"time"

	"go.uber.org/zap"

	"go_kunquant/kunruntime"
)

// RunFields wraps a FactorRun as a single "run" field.
func RunFields(run FactorRun) zap.Field {
	return zap.Object("run", run)
}

// WindowFields logs the shape of a batch window.
func WindowFields(p kunruntime.WindowParams) []zap.Field {
	return []zap.Field{
		zap.Int("stocks", p.Stocks),
		zap.Int("total_time", p.TotalTime),
		zap.Int("offset", p.Offset),
		zap.Int("length", p.Length),
	}
}

// TimingFields logs start, end and elapsed time of an operation.
func TimingFields(start, end time.Time) []zap.Field {
	return []zap.Field{
		zap.Time("start_time", start),
		zap.Time("end_time", end),
		zap.Duration("duration", end.Sub(start)),
	}
}

// BackendField records which engine binding the binary was built with.
func BackendField() zap.Field {
	return zap.String("backend", kunruntime.BackendInfo())
}
