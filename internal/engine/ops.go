package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/versebase/internal/sqlbuild"
)

// executor abstracts the handle's connection and an open transaction so the
// operation set is identical inside and outside a transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Tx is an open transaction. It exposes the same operations as the Handle;
// statements execute in submission order and commit together.
type Tx struct {
	tx *sql.Tx
	h  *Handle
}

// Transaction flattens a nested transaction body into this one. The body's
// statements join the outer transaction; a failure rolls back the whole
// outer transaction, never just the nested body.
func (t *Tx) Transaction(_ context.Context, fn func(tx *Tx) error) error {
	return fn(t)
}

// Query runs a read against table and returns the result rows in order.
// A malformed spec or statement fails with a QUERY_MALFORMED StoreError.
func (h *Handle) Query(ctx context.Context, table string, spec sqlbuild.QuerySpec) ([]Row, error) {
	return doQuery(ctx, h.db, table, spec)
}

// Query runs a read inside the transaction.
func (t *Tx) Query(ctx context.Context, table string, spec sqlbuild.QuerySpec) ([]Row, error) {
	return doQuery(ctx, t.tx, table, spec)
}

// Insert inserts values into table under the given conflict policy and
// returns the new row identifier. Under ConflictIgnore a conflicting insert
// returns 0 with no error; under ConflictAbort it fails with a
// CONSTRAINT_VIOLATION StoreError.
func (h *Handle) Insert(ctx context.Context, table string, values map[string]any, policy sqlbuild.ConflictPolicy) (int64, error) {
	return doInsert(ctx, h.db, table, values, policy)
}

// Insert inserts inside the transaction.
func (t *Tx) Insert(ctx context.Context, table string, values map[string]any, policy sqlbuild.ConflictPolicy) (int64, error) {
	return doInsert(ctx, t.tx, table, values, policy)
}

// Update updates rows matching where and returns the affected row count.
// Zero affected rows is a valid result, not an error.
func (h *Handle) Update(ctx context.Context, table string, values map[string]any, where sqlbuild.Predicate) (int64, error) {
	return doUpdate(ctx, h.db, table, values, where)
}

// Update updates inside the transaction.
func (t *Tx) Update(ctx context.Context, table string, values map[string]any, where sqlbuild.Predicate) (int64, error) {
	return doUpdate(ctx, t.tx, table, values, where)
}

// Delete deletes rows matching where and returns the affected row count.
func (h *Handle) Delete(ctx context.Context, table string, where sqlbuild.Predicate) (int64, error) {
	return doDelete(ctx, h.db, table, where)
}

// Delete deletes inside the transaction.
func (t *Tx) Delete(ctx context.Context, table string, where sqlbuild.Predicate) (int64, error) {
	return doDelete(ctx, t.tx, table, where)
}

// Execute runs a raw statement. Escape hatch for the migrator and bulk
// loader (DDL, pragmas); downstream services use the typed operations.
func (h *Handle) Execute(ctx context.Context, raw string, args ...any) error {
	_, err := h.db.ExecContext(ctx, raw, args...)
	if err != nil {
		return classify("", err)
	}
	return nil
}

// Execute runs a raw statement inside the transaction.
func (t *Tx) Execute(ctx context.Context, raw string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, raw, args...)
	if err != nil {
		return classify("", err)
	}
	return nil
}

// RawQuery runs a raw read and scans all rows. Escape hatch for pragma and
// catalog access; downstream services use Query.
func (h *Handle) RawQuery(ctx context.Context, raw string, args ...any) ([]Row, error) {
	rows, err := h.db.QueryContext(ctx, raw, args...)
	if err != nil {
		return nil, classify("", err)
	}
	return scanRows("", rows)
}

// RawQuery runs a raw read inside the transaction.
func (t *Tx) RawQuery(ctx context.Context, raw string, args ...any) ([]Row, error) {
	rows, err := t.tx.QueryContext(ctx, raw, args...)
	if err != nil {
		return nil, classify("", err)
	}
	return scanRows("", rows)
}

func doQuery(ctx context.Context, ex executor, table string, spec sqlbuild.QuerySpec) ([]Row, error) {
	stmt, params, err := sqlbuild.Select(table, spec)
	if err != nil {
		return nil, NewQueryError(table, err)
	}

	rows, err := ex.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, classify(table, err)
	}
	return scanRows(table, rows)
}

func doInsert(ctx context.Context, ex executor, table string, values map[string]any, policy sqlbuild.ConflictPolicy) (int64, error) {
	stmt, params, err := sqlbuild.Insert(table, values, policy)
	if err != nil {
		return 0, NewQueryError(table, err)
	}

	res, err := ex.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, classify(table, err)
	}

	if policy == sqlbuild.ConflictIgnore {
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert %s: rows affected: %w", table, err)
		}
		if n == 0 {
			return 0, nil // conflicting row ignored
		}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last insert id: %w", table, err)
	}
	return id, nil
}

func doUpdate(ctx context.Context, ex executor, table string, values map[string]any, where sqlbuild.Predicate) (int64, error) {
	stmt, params, err := sqlbuild.Update(table, values, where)
	if err != nil {
		return 0, NewQueryError(table, err)
	}

	res, err := ex.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, classify(table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", table, err)
	}
	return n, nil
}

func doDelete(ctx context.Context, ex executor, table string, where sqlbuild.Predicate) (int64, error) {
	stmt, params, err := sqlbuild.Delete(table, where)
	if err != nil {
		return 0, NewQueryError(table, err)
	}

	res, err := ex.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, classify(table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: rows affected: %w", table, err)
	}
	return n, nil
}

// scanRows materializes all result rows. TEXT values arrive as []byte from
// the driver and are converted to string so Row values compare cleanly.
//
// SQLite reports some statement errors only at step time, during iteration,
// so scan and iteration failures go through classify like execution
// failures do.
func scanRows(table string, rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(table, err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(table, err)
	}
	return out, nil
}
