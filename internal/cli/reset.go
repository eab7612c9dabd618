package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all snapshots for the namespace",
		Long: `Delete every snapshot in the configured namespace. The next boot
bootstraps a fresh empty database. This is the explicit teardown path;
there is no undo.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes {
				return WrapExitError(ExitCommandError, "refusing to reset without --yes", nil)
			}

			ctx := cmdContext(cmd)
			a, err := openApp(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Reset(ctx); err != nil {
				return WrapExitError(ExitFailure, "reset snapshots", err)
			}

			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if f.Format == "json" {
				return f.Success(map[string]any{"namespace": a.cfg.Namespace, "reset": true})
			}
			return f.Success(fmt.Sprintf("namespace %s reset", a.cfg.Namespace))
		},
	}

	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the reset")

	return cmd
}
