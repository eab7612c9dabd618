package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/versebase/internal/migrate"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the database and take the first snapshot",
		Long: `Bootstrap the schema to the expected version and persist the first
snapshot. Running init against an existing store is harmless: an image
restored from a snapshot that is already current is left untouched.

Example:
  versebase init --config versebase.yaml`,
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
				return WrapExitError(ExitFailure, "save snapshot", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if f.Format == "json" {
				return f.Success(map[string]any{
					"schema_version": migrate.ExpectedVersion,
					"fresh":          a.fresh,
				})
			}
			if a.fresh {
				return f.Success(fmt.Sprintf("bootstrapped fresh database at schema version %d", migrate.ExpectedVersion))
			}
			return f.Success(fmt.Sprintf("database already initialized at schema version %d", migrate.ExpectedVersion))
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
