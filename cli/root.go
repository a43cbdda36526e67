// Package cli implements the kunrun command line: batch runs, stream
// replays, library inspection and the run store.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every command.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	NoColor bool

	DBPath  string
	Library string
	Threads int
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the kunrun command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kunrun",
		Short: "Run compiled KunQuant factor libraries",
		Long: `kunrun loads a factor library built by the KunQuant compiler and runs its
modules over CSV panels, either over a whole series at once or tick by tick
through a streaming session. Runs can be recorded in a SQLite run store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Threads < 0 {
				return fmt.Errorf("invalid --threads %d", opts.Threads)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json)")
	flags.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	flags.StringVar(&opts.DBPath, "db", "", "run store path (overrides KUN_DB_PATH)")
	flags.StringVarP(&opts.Library, "library", "l", "", "factor library (overrides manifest and KUN_LIBRARY_PATH)")
	flags.IntVarP(&opts.Threads, "threads", "t", 0, "executor threads (overrides manifest and KUN_THREADS)")

	cmd.AddCommand(NewBatchCommand(app, opts))
	cmd.AddCommand(NewStreamCommand(app, opts))
	cmd.AddCommand(NewInspectCommand(app, opts))
	cmd.AddCommand(NewRunsCommand(app, opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(cmd.OutOrStdout(), o.Format, o.NoColor)
}

// tracef writes a diagnostic line to stderr when --verbose is set.
func (o *RootOptions) tracef(cmd *cobra.Command, format string, args ...interface{}) {
	if o.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}
