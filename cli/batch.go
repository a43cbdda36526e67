package cli

import (
	"context"

	"go_kunquant/core"
	"go_kunquant/manifest"
	"go_kunquant/pipeline"

	"github.com/spf13/cobra"
)

// RunOptions holds flags shared by batch and stream.
type RunOptions struct {
	*RootOptions
	NoPersist bool
	OutputDir string
}

func (o *RunOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.NoPersist, "no-persist", false, "do not store output values even if the manifest asks")
	cmd.Flags().StringVarP(&o.OutputDir, "out", "o", "", "directory for outputs without an explicit path")
}

func (o *RunOptions) apply(m *manifest.Manifest) {
	if o.NoPersist {
		m.Persist = false
	}
	if o.OutputDir != "" {
		m.OutputDir = o.OutputDir
	}
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch [manifest]",
		Short: "Compute factors over a whole series",
		Long: `Load the manifest's input panels, run its module once over the configured
time window and write every output panel.

Example:
  kunrun batch alpha101.yaml
  kunrun batch --db runs.db --threads 8 alpha101.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, app, opts, args)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runBatch(cmd *cobra.Command, app *App, opts *RunOptions, args []string) error {
	m, err := app.loadManifest(args)
	if err != nil {
		return err
	}
	if m.Mode != manifest.ModeBatch {
		return WrapExitError(core.ExitCodeConfig, "manifest mode is "+m.Mode, nil)
	}
	opts.apply(m)

	rt, err := app.openRuntime(app.runtimeConfig(m, opts.RootOptions))
	if err != nil {
		return err
	}
	job := &pipeline.BatchJob{Manifest: m, Runtime: rt, Logger: app.Logger, RunID: pipeline.NewRunID()}
	repo, err := app.openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	if repo != nil {
		job.Store = repo
	}
	app.cleanOutputsOnExit(m)
	opts.tracef(cmd, "run %s: module %s from %s", job.RunID, m.Module, rt.Library().Path())

	var res *pipeline.Result
	err = app.track(cmd.Context(), job.RunID, func(ctx context.Context) error {
		var runErr error
		res, runErr = job.Run(ctx)
		return runErr
	})
	if err != nil {
		return err
	}
	return opts.printer(cmd).RunResult(res)
}
