package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/versebase/internal/sqlbuild"
)

// statusReport is the status command's payload.
type statusReport struct {
	SchemaVersion  int            `json:"schema_version"`
	DatasetVersion string         `json:"dataset_version,omitempty"`
	Rows           map[string]int `json:"rows"`
	SnapshotKey    string         `json:"snapshot_key,omitempty"`
	SnapshotBytes  int64          `json:"snapshot_bytes,omitempty"`
	Degraded       bool           `json:"degraded"`
}

// statusTables are the tables whose row counts status reports.
var statusTables = []string{"books", "verses", "categories", "reading_plans", "devotionals"}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Report schema version, row counts, and snapshot state",
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

			report := statusReport{
				SchemaVersion: 0,
				Rows:          make(map[string]int, len(statusTables)),
				Degraded:      a.handle.Degraded(),
			}

			rows, err := a.handle.RawQuery(ctx, "PRAGMA user_version")
			if err != nil {
				return WrapExitError(ExitFailure, "read schema version", err)
			}
			if v, ok := rows[0]["user_version"].(int64); ok {
				report.SchemaVersion = int(v)
			}

			for _, table := range statusTables {
				rows, err := a.handle.Query(ctx, table, sqlbuild.QuerySpec{
					Columns: []string{"COUNT(*) AS n"},
				})
				if err != nil {
					return WrapExitError(ExitFailure, "count "+table, err)
				}
				if n, ok := rows[0]["n"].(int64); ok {
					report.Rows[table] = int(n)
				}
			}

			meta, err := a.handle.Query(ctx, "vb_meta", sqlbuild.QuerySpec{
				Columns: []string{"value"},
				Where:   sqlbuild.Eq{Column: "key", Value: "dataset_version"},
			})
			if err != nil {
				return WrapExitError(ExitFailure, "read dataset version", err)
			}
			if len(meta) == 1 {
				report.DatasetVersion, _ = meta[0]["value"].(string)
			}

			key, size, ok, err := a.store.Latest(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "read snapshot status", err)
			}
			if ok {
				report.SnapshotKey = key
				report.SnapshotBytes = size
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if f.Format == "json" {
				return f.Success(report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema version: %d\n", report.SchemaVersion)
			if report.DatasetVersion != "" {
				fmt.Fprintf(out, "dataset:        %s\n", report.DatasetVersion)
			}
			for _, table := range statusTables {
				fmt.Fprintf(out, "%-14s %d\n", table+":", report.Rows[table])
			}
			if report.SnapshotKey != "" {
				fmt.Fprintf(out, "snapshot:       %s (%d bytes)\n", report.SnapshotKey, report.SnapshotBytes)
			} else {
				fmt.Fprintln(out, "snapshot:       none")
			}
			if report.Degraded {
				fmt.Fprintln(out, "persistence:    DEGRADED (in-memory only)")
			}
			return nil
		},
	}
}
