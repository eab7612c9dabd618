package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Snapshot the current database image",
		Long: `Serialize the full database image, compress it, and store it under the
current schema version, atomically superseding the previous snapshot. If
the image exceeds the store quota the command fails and the previous
snapshot is left intact.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			a, err := openApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.save(ctx); err != nil {
				f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				_ = f.Error(err)
				return WrapExitError(ExitFailure, "save snapshot", err)
			}

			key, size, _, err := a.store.Latest(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "read snapshot status", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if f.Format == "json" {
				return f.Success(map[string]any{"key": key, "stored_bytes": size})
			}
			return f.Success(fmt.Sprintf("snapshot %s saved (%d bytes)", key, size))
		},
	}
}
