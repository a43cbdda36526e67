package cli

import (
	"errors"
	"fmt"
	"math"

	"go_kunquant/core"
	"go_kunquant/dataio"
	"go_kunquant/db"
	"go_kunquant/kunruntime"

	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command group.
func NewRunsCommand(app *App, opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and manage the run store",
	}
	cmd.AddCommand(newRunsListCommand(app, opts))
	cmd.AddCommand(newRunsShowCommand(app, opts))
	cmd.AddCommand(newRunsDeleteCommand(app, opts))
	cmd.AddCommand(newRunsMigrateCommand(app, opts))
	return cmd
}

func newRunsListCommand(app *App, opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := app.requireStore(opts)
			if err != nil {
				return err
			}
			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return opts.printer(cmd).Runs(runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")
	return cmd
}

func newRunsShowCommand(app *App, opts *RootOptions) *cobra.Command {
	var buffer string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run, or one of its stored buffers as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := app.requireStore(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			run, err := repo.GetRun(ctx, args[0])
			if err != nil {
				return notFound(err)
			}

			if buffer != "" {
				values, err := repo.Values(ctx, run.ID, buffer)
				if err != nil {
					return err
				}
				if len(values) == 0 {
					return fmt.Errorf("run %s has no stored values for %q", run.ID, buffer)
				}
				return dataio.WritePanel(cmd.OutOrStdout(), valuesMatrix(values, run.Stocks), nil)
			}

			n, err := repo.CountValues(ctx, run.ID)
			if err != nil {
				return err
			}
			return opts.printer(cmd).RunDetail(run, n)
		},
	}
	cmd.Flags().StringVarP(&buffer, "buffer", "b", "", "print this output buffer's stored values")
	return cmd
}

func newRunsDeleteCommand(app *App, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete runs and their values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := app.requireStore(opts)
			if err != nil {
				return err
			}
			p := opts.printer(cmd)
			var errs []error
			for _, id := range args {
				if err := repo.DeleteRun(cmd.Context(), id); err != nil {
					p.fail("%s  %v", id, err)
					errs = append(errs, notFound(err))
					continue
				}
				p.ok("%s deleted", id)
			}
			return errors.Join(errs...)
		},
	}
}

func newRunsMigrateCommand(app *App, opts *RootOptions) *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back run store migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.dbPath(opts)
			if path == "" {
				return core.ErrMissingConfig(core.EnvDBPath)
			}
			var err error
			if down != 0 {
				err = db.MigrateDownFromPath(path, down)
			} else {
				err = db.MigrateUpFromPath(path)
			}
			if err != nil {
				return err
			}
			version, dirty, err := db.MigrationVersionFromPath(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%v)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations (-1 for all)")
	return cmd
}

// valuesMatrix lays stored values out as a steps x stocks panel. Steps
// start at the first stored step; missing cells are NaN.
func valuesMatrix(values []db.FactorValue, stocks int) *kunruntime.Matrix {
	first, last := values[0].Step, values[0].Step
	for _, v := range values {
		first = min(first, v.Step)
		last = max(last, v.Step)
	}

	m := kunruntime.NewMatrix(stocks, last-first+1)
	for i := range m.Data {
		m.Data[i] = float32(math.NaN())
	}
	for _, v := range values {
		if v.Stock < stocks {
			m.Set(v.Step-first, v.Stock, v.Value)
		}
	}
	return m
}

func notFound(err error) error {
	if errors.Is(err, db.ErrRunNotFound) {
		return WrapExitError(core.ExitCodeError, "no such run", err)
	}
	return err
}
