package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go_kunquant/dataio"
	"go_kunquant/db"
	"go_kunquant/kunruntime"
	"go_kunquant/logging"
	"go_kunquant/manifest"

	"go.uber.org/zap"
)

// TickFunc observes the outputs of one tick. The slices are only valid
// during the call.
type TickFunc func(tick int, outputs map[string][]float32)

// StreamReplay feeds a manifest's inputs through a stream one row at a
// time, as a live feed would, and writes each tick's outputs.
type StreamReplay struct {
	Manifest *manifest.Manifest
	Runtime  *kunruntime.Runtime
	Logger   *logging.Logger
	Store    Store
	RunID    string

	// QueueCapacity bounds read-ahead; 0 uses DefaultQueueCapacity.
	QueueCapacity int

	// Writer settings for persisted values.
	WriterConfig db.AsyncWriterConfig

	// OnTick, when set, is called after every tick.
	OnTick TickFunc
}

// Run replays every input row. Cancelling ctx stops the replay between
// ticks; partial output files are then removed and ctx's error returned.
func (r *StreamReplay) Run(ctx context.Context) (*Result, error) {
	m := r.Manifest
	if r.RunID == "" {
		r.RunID = NewRunID()
	}
	logger := r.logger().With(zap.String("run_id", r.RunID))

	readers, closeInputs, err := openRowReaders(m)
	if err != nil {
		return nil, err
	}
	defer closeInputs()

	stream, err := r.Runtime.NewStream(m.Module, m.Stocks)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	files, err := createOutputs(m)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			for _, f := range files {
				f.Abort()
			}
		}
	}()

	run := logging.FactorRun{
		RunID:   r.RunID,
		Mode:    logging.ModeStream,
		Library: r.Runtime.Library().Path(),
		Module:  m.Module,
		Stocks:  m.Stocks,
		Inputs:  m.InputNames(),
		Outputs: m.OutputNames(),
	}
	var writer *db.ValueWriter
	if r.Store != nil {
		if err := r.Store.CreateRun(ctx, db.Run{
			ID: r.RunID, Mode: run.Mode, Library: run.Library, Module: run.Module, Stocks: run.Stocks,
		}); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		if m.Persist {
			writer = db.NewValueWriter(func(values []db.FactorValue) error {
				return r.Store.InsertValues(context.Background(), values)
			}, r.writerConfig())
			writer.Start()
		}
	}

	queue := NewTickQueue(r.QueueCapacity)
	stop := context.AfterFunc(ctx, func() { queue.Abort(ctx.Err()) })
	defer stop()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readTicks(m, readers, queue)
	}()

	start := time.Now()
	runErr := r.consume(ctx, stream, queue, files, writer)
	run.Duration = time.Since(start)

	// Release the reader if the loop stopped early, and let it finish
	// before its files are closed.
	queue.Abort(runErr)
	<-readDone
	run.Steps = int(stream.Ticks())

	if runErr == nil {
		runErr = queue.Err()
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	if writer != nil {
		runErr = errors.Join(runErr, r.closeWriter(writer, logger))
	}
	if runErr == nil {
		ordered := make([]*dataio.OutputFile, 0, len(files))
		for _, name := range m.OutputNames() {
			if f := files[name]; f != nil {
				ordered = append(ordered, f)
			}
		}
		runErr = dataio.CommitAll(ordered)
		committed = runErr == nil
	}

	finishRun(r.Store, logger, r.RunID, run.Steps, run.Duration, runErr)
	if runErr != nil {
		logger.Error("Stream replay failed", logging.RunFields(run), zap.Error(runErr))
		return nil, runErr
	}

	logger.Info("Stream replay complete", logging.RunFields(run))
	paths := make(map[string]string, len(files))
	for name, f := range files {
		paths[name] = f.Path()
	}
	return &Result{Run: run, Files: paths}, nil
}

func (r *StreamReplay) consume(ctx context.Context, stream *kunruntime.StreamContext, queue *TickQueue,
	files map[string]*dataio.OutputFile, writer *db.ValueWriter) error {
	m := r.Manifest
	outputs := make(map[string][]float32, len(m.Outputs))
	for _, name := range m.OutputNames() {
		outputs[name] = make([]float32, m.Stocks)
	}

	for {
		tick, ok := queue.Get()
		if !ok {
			return nil
		}
		if err := stream.Step(tick.Inputs); err != nil {
			return fmt.Errorf("tick %d: %w", tick.Index, err)
		}

		for name, row := range outputs {
			if err := stream.ReadInto(name, row); err != nil {
				return fmt.Errorf("tick %d: %w", tick.Index, err)
			}
			if f := files[name]; f != nil {
				if err := f.WriteRow(row); err != nil {
					return fmt.Errorf("tick %d: %w", tick.Index, err)
				}
			}
			if writer != nil {
				if err := writer.WriteBlocking(ctx, rowValues(r.RunID, name, tick.Index, row)); err != nil {
					return fmt.Errorf("tick %d: %w", tick.Index, err)
				}
			}
		}
		if r.OnTick != nil {
			r.OnTick(tick.Index, outputs)
		}
	}
}

func (r *StreamReplay) closeWriter(w *db.ValueWriter, logger *logging.Logger) error {
	cfg := r.writerConfig()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancel()

	err := w.Close(ctx)
	if n := w.Errors(); n > 0 {
		err = errors.Join(err, fmt.Errorf("%d value batches failed to store", n))
	}
	if n := w.Dropped(); n > 0 {
		logger.Warn("Value batches dropped", zap.Int("dropped", n))
	}
	return err
}

func (r *StreamReplay) writerConfig() db.AsyncWriterConfig {
	cfg := r.WriterConfig
	def := db.DefaultAsyncWriterConfig()
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = def.ChannelCapacity
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	return cfg
}

func (r *StreamReplay) logger() *logging.Logger {
	if r.Logger == nil {
		return logging.NewNop()
	}
	return r.Logger.Named("stream")
}

// readTicks reads one row from every input per tick until all inputs end
// together. Inputs of different lengths close the queue with an error.
func readTicks(m *manifest.Manifest, readers map[string]*dataio.RowReader, queue *TickQueue) {
	names := m.InputNames()
	for index := 0; ; index++ {
		tick := &Tick{Index: index, Inputs: make(map[string][]float32, len(names))}
		ended := 0
		for _, name := range names {
			row, err := readers[name].Next()
			if errors.Is(err, io.EOF) {
				ended++
				continue
			}
			if err != nil {
				queue.Close(fmt.Errorf("input %s: %w", name, err))
				return
			}
			if len(row) != m.Stocks {
				queue.Close(fmt.Errorf("input %s has %d stocks, manifest declares %d", name, len(row), m.Stocks))
				return
			}
			tick.Inputs[name] = append([]float32(nil), row...)
		}

		switch {
		case ended == len(names):
			queue.Close(nil)
			return
		case ended > 0:
			queue.Close(fmt.Errorf("inputs end at different rows: %d of %d ended at row %d", ended, len(names), index))
			return
		}
		if err := queue.Put(tick); err != nil {
			return
		}
	}
}

func openRowReaders(m *manifest.Manifest) (map[string]*dataio.RowReader, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	readers := make(map[string]*dataio.RowReader, len(m.Inputs))
	for _, name := range m.InputNames() {
		f, err := os.Open(m.InputPath(name))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("input %s: %w", name, err)
		}
		opened = append(opened, f)
		readers[name] = dataio.NewRowReader(f, m.HeaderMode())
	}
	return readers, closeAll, nil
}

func createOutputs(m *manifest.Manifest) (map[string]*dataio.OutputFile, error) {
	files := make(map[string]*dataio.OutputFile)
	for _, name := range m.OutputNames() {
		path := m.OutputPath(name)
		if path == "" {
			continue
		}
		f, err := dataio.CreateOutput(path, m.Stocks, nil)
		if err != nil {
			for _, f := range files {
				f.Abort()
			}
			return nil, fmt.Errorf("output %s: %w", name, err)
		}
		files[name] = f
	}
	return files, nil
}
