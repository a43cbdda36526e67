// Package pipeline runs factor modules over CSV panels: whole series at
// once through the batch entry point, or tick by tick through a stream.
// Runs are logged and optionally recorded in the run store.
package pipeline

import (
	"context"
	"time"

	"go_kunquant/db"
	"go_kunquant/kunruntime"
	"go_kunquant/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store records runs and their output values. *db.Repository implements it.
type Store interface {
	CreateRun(ctx context.Context, run db.Run) error
	FinishRun(ctx context.Context, id string, steps int, duration time.Duration, runErr error) error
	InsertValues(ctx context.Context, values []db.FactorValue) error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Result describes a finished run.
type Result struct {
	Run logging.FactorRun

	// Outputs holds batch outputs, one row per computed time step. Stream
	// replays leave it nil and write rows as they go.
	Outputs map[string]*kunruntime.Matrix

	// Files maps each output buffer to the CSV it was written to.
	Files map[string]string
}

// rowValues converts one output row into store records.
func rowValues(runID, buffer string, step int, row []float32) []db.FactorValue {
	values := make([]db.FactorValue, len(row))
	for s, v := range row {
		values[s] = db.FactorValue{RunID: runID, Buffer: buffer, Step: step, Stock: s, Value: v}
	}
	return values
}

func finishRun(store Store, logger *logging.Logger, id string, steps int, d time.Duration, runErr error) {
	if store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.FinishRun(ctx, id, steps, d, runErr); err != nil {
		logger.Warn("Failed to record run outcome", zap.String("run_id", id), zap.Error(err))
	}
}
