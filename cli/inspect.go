package cli

import (
	"go_kunquant/kunruntime"

	"github.com/spf13/cobra"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Modules []string
	Stocks  int
	Probe   bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(app *App, rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [library]",
		Short: "Check a factor library and look up its modules",
		Long: `Validate a library's shared-object header, load it and look up the named
modules. With --probe each found module is opened as a stream to report
whether it was compiled for streaming.

Example:
  kunrun inspect factors/alpha101.so -m alpha001 -m alpha002 --probe`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, app, opts, args)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.Modules, "module", "m", nil, "module to look up (repeatable)")
	cmd.Flags().IntVar(&opts.Stocks, "stocks", kunruntime.StockAlignment, "stock count used by --probe")
	cmd.Flags().BoolVar(&opts.Probe, "probe", false, "try opening each module as a stream")
	return cmd
}

func runInspect(cmd *cobra.Command, app *App, opts *InspectOptions, args []string) error {
	cfg := app.runtimeConfig(nil, opts.RootOptions)
	if len(args) > 0 {
		cfg.LibraryPath = args[0]
	}
	// The header is reported, not enforced, so a bad file still gets a report.
	cfg.ValidateHeader = false

	path := cfg.ResolvedPath()
	report := InspectReport{Path: path, Backend: kunruntime.BackendInfo(), Header: "ok"}
	if err := kunruntime.ValidateLibraryPath(path); err != nil {
		report.Header = err.Error()
	}

	rt, err := app.openRuntime(cfg)
	if err != nil {
		return err
	}

	opts.tracef(cmd, "loaded %s", rt.Library().Path())
	for _, name := range opts.Modules {
		report.Modules = append(report.Modules, inspectModule(rt, name, opts))
	}
	return opts.printer(cmd).Inspect(report)
}

func inspectModule(rt *kunruntime.Runtime, name string, opts *InspectOptions) ModuleReport {
	if _, err := rt.Module(name); err != nil {
		return ModuleReport{Name: name, Error: "not found"}
	}
	r := ModuleReport{Name: name, Found: true}
	if !opts.Probe {
		return r
	}

	streaming := false
	if s, err := rt.NewStream(name, opts.Stocks); err == nil {
		streaming = true
		s.Close()
	}
	r.Streaming = &streaming
	return r
}
