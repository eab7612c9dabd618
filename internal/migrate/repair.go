package migrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RepairColumns diffs the observed column set of a pre-existing table
// against the expected set and appends whatever is missing, with defaults.
// It returns the number of columns added.
//
// The pass is idempotent: running it twice produces no further change. It
// never drops or rewrites columns - repairs are additive DDL only. Tables
// outside the declared schema are an error, not a guess.
func (m *Migrator) RepairColumns(ctx context.Context, table string) (int, error) {
	expected, ok := expectedColumns[table]
	if !ok {
		return 0, fmt.Errorf("repair: unknown table %q", table)
	}

	observed, err := m.observedColumns(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("repair %s: %w", table, err)
	}

	added := 0
	for _, col := range expected {
		if observed[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.ddl)
		if err := m.h.Execute(ctx, stmt); err != nil {
			return added, fmt.Errorf("repair %s: add %s: %w", table, col.name, err)
		}
		m.logger.Info("repaired missing column",
			zap.String("table", table),
			zap.String("column", col.name))
		added++
	}
	return added, nil
}

// RepairAll runs the column repair pass over every declared table that
// exists in the image.
func (m *Migrator) RepairAll(ctx context.Context) (int, error) {
	total := 0
	for table := range expectedColumns {
		exists, err := m.tableExists(ctx, table)
		if err != nil {
			return total, err
		}
		if !exists {
			continue
		}
		n, err := m.RepairColumns(ctx, table)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// observedColumns returns the live column name set of table.
// table is validated against expectedColumns before this is called; PRAGMA
// does not accept bound parameters.
func (m *Migrator) observedColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := m.h.RawQuery(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		name, ok := r["name"].(string)
		if !ok {
			return nil, fmt.Errorf("unexpected table_info row: %v", r)
		}
		out[name] = true
	}
	return out, nil
}

func (m *Migrator) tableExists(ctx context.Context, table string) (bool, error) {
	rows, err := m.h.RawQuery(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
