package cli

import (
	"go_kunquant/core"
	"go_kunquant/kunruntime"

	"github.com/spf13/cobra"
)

// NewVersionCommand prints build information.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and engine backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.printer(cmd).Version(core.GetVersionInfo(), kunruntime.BackendInfo())
		},
	}
}
