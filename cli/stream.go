package cli

import (
	"context"

	"go_kunquant/core"
	"go_kunquant/manifest"
	"go_kunquant/pipeline"

	"github.com/spf13/cobra"
)

// StreamOptions holds flags for the stream command.
type StreamOptions struct {
	RunOptions
	Queue    int
	Progress int
}

// NewStreamCommand creates the stream command.
func NewStreamCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	opts := &StreamOptions{RunOptions: RunOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "stream [manifest]",
		Short: "Replay input panels through a streaming session",
		Long: `Feed the manifest's input panels to a stream one row per tick, the way a
live market feed would, and append each tick's outputs to the output panels.
Ctrl-C stops the replay between ticks; a second Ctrl-C exits immediately.

Example:
  kunrun stream --progress 100 live.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd, app, opts, args)
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVar(&opts.Queue, "queue", pipeline.DefaultQueueCapacity, "ticks read ahead of the stream")
	cmd.Flags().IntVar(&opts.Progress, "progress", 0, "print progress every N ticks (0 disables)")
	return cmd
}

func runStream(cmd *cobra.Command, app *App, opts *StreamOptions, args []string) error {
	m, err := app.loadManifest(args)
	if err != nil {
		return err
	}
	if m.Mode != manifest.ModeStream {
		return WrapExitError(core.ExitCodeConfig, "manifest mode is "+m.Mode, nil)
	}
	opts.apply(m)

	rt, err := app.openRuntime(app.runtimeConfig(m, opts.RootOptions))
	if err != nil {
		return err
	}
	replay := &pipeline.StreamReplay{
		Manifest:      m,
		Runtime:       rt,
		Logger:        app.Logger,
		RunID:         pipeline.NewRunID(),
		QueueCapacity: opts.Queue,
	}
	repo, err := app.openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	if repo != nil {
		replay.Store = repo
	}
	if opts.Progress > 0 {
		progress := NewPrinter(cmd.ErrOrStderr(), "text", opts.NoColor)
		replay.OnTick = func(tick int, _ map[string][]float32) {
			if (tick+1)%opts.Progress == 0 {
				progress.Progress(tick + 1)
			}
		}
	}
	app.cleanOutputsOnExit(m)
	opts.tracef(cmd, "run %s: module %s from %s", replay.RunID, m.Module, rt.Library().Path())

	var res *pipeline.Result
	err = app.track(cmd.Context(), replay.RunID, func(ctx context.Context) error {
		var runErr error
		res, runErr = replay.Run(ctx)
		return runErr
	})
	if err != nil {
		return err
	}
	return opts.printer(cmd).RunResult(res)
}
