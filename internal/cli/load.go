package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/versebase/internal/bulkload"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	DatasetVersion string
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <dump-file>",
		Short: "Import a SQL dump in batches",
		Long: `Import a delimited SQL dump into the store. Source book and category
identifiers are translated to their canonical forms; an identifier with no
mapping aborts the run. Rows are upserted in fixed-size batches, so an
interrupted or repeated load converges instead of duplicating.

The dataset version tags the dump: loading the same version twice is a
no-op. A successful load ends with a snapshot.

Example:
  versebase load --dataset-version kjv-2024.1 ./kjv.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.DatasetVersion, "dataset-version", "", "version tag of the dump (required)")
	_ = cmd.MarkFlagRequired("dataset-version")

	return cmd
}

func runLoad(cmd *cobra.Command, opts *LoadOptions, dumpPath string) error {
	ctx := cmdContext(cmd)

	src, err := os.Open(dumpPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open dump", err)
	}
	defer src.Close()

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	var last bulkload.Progress
	loader := bulkload.New(a.handle, a.index,
		bulkload.WithBatchSize(a.cfg.BatchSize),
		bulkload.WithLogger(a.logger),
		bulkload.WithProgress(func(p bulkload.Progress) {
			last = p
			if opts.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "batch %d/%d (%.0f%%)\n",
					p.Batch, p.TotalBatches, p.Fraction*100)
			}
		}))

	if err := loader.Run(ctx, src, opts.DatasetVersion); err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}
	if err := a.save(ctx); err != nil {
		return WrapExitError(ExitFailure, "save snapshot", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if f.Format == "json" {
		return f.Success(map[string]any{
			"dataset_version": opts.DatasetVersion,
			"rows_loaded":     last.RowsLoaded,
			"batches":         last.TotalBatches,
		})
	}
	if last.TotalBatches == 0 {
		return f.Success(fmt.Sprintf("dataset %s already loaded", opts.DatasetVersion))
	}
	return f.Success(fmt.Sprintf("loaded %d rows in %d batches as %s",
		last.RowsLoaded, last.TotalBatches, opts.DatasetVersion))
}
