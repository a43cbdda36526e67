package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"go_kunquant/dataio"
	"go_kunquant/db"
	"go_kunquant/kunruntime"
	"go_kunquant/logging"
	"go_kunquant/manifest"

	"go.uber.org/zap"
)

// BatchJob computes a manifest's outputs over its whole input series in a
// single engine call.
type BatchJob struct {
	Manifest *manifest.Manifest
	Runtime  *kunruntime.Runtime
	Logger   *logging.Logger

	// Store, when set, receives the run record and every output value.
	Store Store

	// RunID identifies the run; a new one is generated when empty.
	RunID string
}

// Run loads the inputs, runs the module and writes the outputs. The engine
// call itself cannot be interrupted; ctx is checked before it starts.
func (j *BatchJob) Run(ctx context.Context) (*Result, error) {
	m := j.Manifest
	logger := j.logger()
	if j.RunID == "" {
		j.RunID = NewRunID()
	}
	logger = logger.With(zap.String("run_id", j.RunID))

	inputs, err := loadPanels(m)
	if err != nil {
		return nil, err
	}
	times := inputs[m.InputNames()[0]].Times
	params, err := m.WindowParams(times)
	if err != nil {
		return nil, err
	}
	logger.Debug("Inputs loaded", logging.WindowFields(params)...)

	buffers, err := j.Runtime.NewBufferMap()
	if err != nil {
		return nil, err
	}
	defer buffers.Close()

	for name, p := range inputs {
		if err := buffers.Set(name, p.Data); err != nil {
			return nil, fmt.Errorf("failed to register input %s: %w", name, err)
		}
	}
	outputs := make(map[string]*kunruntime.Matrix, len(m.Outputs))
	for _, name := range m.OutputNames() {
		out := kunruntime.NewMatrix(m.Stocks, params.Length)
		fillNaN(out.Data)
		if err := buffers.Set(name, out.Data); err != nil {
			return nil, fmt.Errorf("failed to register output %s: %w", name, err)
		}
		outputs[name] = out
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := logging.FactorRun{
		RunID:   j.RunID,
		Mode:    logging.ModeBatch,
		Library: j.Runtime.Library().Path(),
		Module:  m.Module,
		Stocks:  m.Stocks,
		Steps:   params.Length,
		Inputs:  m.InputNames(),
		Outputs: m.OutputNames(),
	}
	if j.Store != nil {
		if err := j.Store.CreateRun(ctx, db.Run{
			ID: j.RunID, Mode: run.Mode, Library: run.Library, Module: run.Module, Stocks: run.Stocks,
		}); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	start := time.Now()
	runErr := j.Runtime.RunBatch(m.Module, buffers, params)
	run.Duration = time.Since(start)

	if runErr == nil {
		runErr = j.persist(ctx, params, outputs)
	}
	finishRun(j.Store, logger, j.RunID, params.Length, run.Duration, runErr)
	if runErr != nil {
		logger.Error("Batch run failed", logging.RunFields(run), zap.Error(runErr))
		return nil, runErr
	}

	files, err := writeOutputs(m, outputs, stockNames(m, inputs))
	if err != nil {
		return nil, err
	}

	logger.Info("Batch run complete", logging.RunFields(run))
	return &Result{Run: run, Outputs: outputs, Files: files}, nil
}

func (j *BatchJob) persist(ctx context.Context, params kunruntime.WindowParams, outputs map[string]*kunruntime.Matrix) error {
	if j.Store == nil || !j.Manifest.Persist {
		return nil
	}
	for name, out := range outputs {
		var values []db.FactorValue
		for r := 0; r < out.Times; r++ {
			values = append(values, rowValues(j.RunID, name, params.Offset+r, out.Row(r))...)
		}
		if err := j.Store.InsertValues(ctx, values); err != nil {
			return fmt.Errorf("failed to store output %s: %w", name, err)
		}
	}
	return nil
}

func (j *BatchJob) logger() *logging.Logger {
	if j.Logger == nil {
		return logging.NewNop()
	}
	return j.Logger.Named("batch")
}

// loadPanels reads every input and checks they share one shape.
func loadPanels(m *manifest.Manifest) (map[string]*dataio.Panel, error) {
	panels := make(map[string]*dataio.Panel, len(m.Inputs))
	var first string
	for _, name := range m.InputNames() {
		p, err := dataio.ReadPanelFile(m.InputPath(name), m.HeaderMode())
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		if p.Stocks != m.Stocks {
			return nil, fmt.Errorf("input %s has %d stocks, manifest declares %d", name, p.Stocks, m.Stocks)
		}
		if first == "" {
			first = name
		} else if p.Times != panels[first].Times {
			return nil, fmt.Errorf("input %s has %d rows, input %s has %d", name, p.Times, first, panels[first].Times)
		}
		panels[name] = p
	}
	return panels, nil
}

// writeOutputs writes each output that has a destination.
func writeOutputs(m *manifest.Manifest, outputs map[string]*kunruntime.Matrix, names []string) (map[string]string, error) {
	files := make(map[string]string)
	for _, name := range m.OutputNames() {
		path := m.OutputPath(name)
		if path == "" {
			continue
		}
		if err := dataio.WritePanelFile(path, outputs[name], names); err != nil {
			return nil, fmt.Errorf("output %s: %w", name, err)
		}
		files[name] = path
	}
	return files, nil
}

// stockNames returns the header of the first input, in name order, that
// has one.
func stockNames(m *manifest.Manifest, panels map[string]*dataio.Panel) []string {
	for _, name := range m.InputNames() {
		if p := panels[name]; p != nil && p.Names != nil {
			return p.Names
		}
	}
	return nil
}

func fillNaN(data []float32) {
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
}
