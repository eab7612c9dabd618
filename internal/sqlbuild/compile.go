package sqlbuild

import (
	"fmt"
	"sort"
	"strings"
)

var cmpOps = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// Select compiles a QuerySpec into a parameterized SELECT statement.
// Returns (sql, params, error).
//
// Clause order is fixed: WHERE, GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET.
// The compiler validates shape only; column and table existence is the
// engine's problem at execution time.
func Select(table string, spec QuerySpec) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("select: empty table name")
	}

	cols := "*"
	if len(spec.Columns) > 0 {
		cols = strings.Join(spec.Columns, ", ")
	}

	var b strings.Builder
	var params []any
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, table)

	if spec.Where != nil {
		sql, args, err := compilePredicate(spec.Where)
		if err != nil {
			return "", nil, fmt.Errorf("select %s: where: %w", table, err)
		}
		b.WriteString(" WHERE " + sql)
		params = append(params, args...)
	}

	if len(spec.GroupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(spec.GroupBy, ", "))
	}

	if spec.Having != nil {
		if len(spec.GroupBy) == 0 {
			return "", nil, fmt.Errorf("select %s: HAVING without GROUP BY", table)
		}
		sql, args, err := compilePredicate(spec.Having)
		if err != nil {
			return "", nil, fmt.Errorf("select %s: having: %w", table, err)
		}
		b.WriteString(" HAVING " + sql)
		params = append(params, args...)
	}

	if len(spec.OrderBy) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(spec.OrderBy, ", "))
	}

	switch {
	case spec.Limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
		if spec.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", spec.Offset)
		}
	case spec.Offset > 0:
		// SQLite only accepts OFFSET after LIMIT; -1 means unlimited.
		fmt.Fprintf(&b, " LIMIT -1 OFFSET %d", spec.Offset)
	}

	return b.String(), params, nil
}

// Insert compiles an insert of values into table under the given conflict
// policy. Column order is sorted for deterministic output.
func Insert(table string, values map[string]any, policy ConflictPolicy) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("insert: empty table name")
	}
	if len(values) == 0 {
		return "", nil, fmt.Errorf("insert %s: no values", table)
	}
	if !policy.Valid() {
		return "", nil, fmt.Errorf("insert %s: unknown conflict policy %q", table, policy)
	}

	verb := "INSERT"
	switch policy {
	case ConflictReplace:
		verb = "INSERT OR REPLACE"
	case ConflictIgnore:
		verb = "INSERT OR IGNORE"
	}

	cols := sortedKeys(values)
	params := make([]any, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for _, c := range cols {
		params = append(params, values[c])
		marks = append(marks, "?")
	}

	sql := fmt.Sprintf("%s INTO %s (%s) VALUES (%s)",
		verb, table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return sql, params, nil
}

// InsertRows compiles a multi-row insert of rows under cols. All rows must
// have the same width as cols. Used by the bulk loader, where multi-row
// VALUES lists beat one statement per row.
func InsertRows(table string, cols []string, rows [][]any, policy ConflictPolicy) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("insert rows: empty table name")
	}
	if len(cols) == 0 || len(rows) == 0 {
		return "", nil, fmt.Errorf("insert rows %s: no columns or rows", table)
	}
	if !policy.Valid() {
		return "", nil, fmt.Errorf("insert rows %s: unknown conflict policy %q", table, policy)
	}

	verb := "INSERT"
	switch policy {
	case ConflictReplace:
		verb = "INSERT OR REPLACE"
	case ConflictIgnore:
		verb = "INSERT OR IGNORE"
	}

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	tuples := make([]string, 0, len(rows))
	var params []any
	for i, row := range rows {
		if len(row) != len(cols) {
			return "", nil, fmt.Errorf("insert rows %s: row %d has %d values, want %d",
				table, i, len(row), len(cols))
		}
		tuples = append(tuples, tuple)
		params = append(params, row...)
	}

	sql := fmt.Sprintf("%s INTO %s (%s) VALUES %s",
		verb, table, strings.Join(cols, ", "), strings.Join(tuples, ", "))
	return sql, params, nil
}

// Update compiles an update of values on rows matching where. A nil where
// updates every row. Column order is sorted for deterministic output.
func Update(table string, values map[string]any, where Predicate) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("update: empty table name")
	}
	if len(values) == 0 {
		return "", nil, fmt.Errorf("update %s: no values", table)
	}

	cols := sortedKeys(values)
	sets := make([]string, 0, len(cols))
	params := make([]any, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, c+" = ?")
		params = append(params, values[c])
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", "))
	if where != nil {
		wsql, wargs, err := compilePredicate(where)
		if err != nil {
			return "", nil, fmt.Errorf("update %s: where: %w", table, err)
		}
		sql += " WHERE " + wsql
		params = append(params, wargs...)
	}
	return sql, params, nil
}

// Delete compiles a delete of rows matching where. A nil where deletes every
// row.
func Delete(table string, where Predicate) (string, []any, error) {
	if table == "" {
		return "", nil, fmt.Errorf("delete: empty table name")
	}

	sql := "DELETE FROM " + table
	var params []any
	if where != nil {
		wsql, wargs, err := compilePredicate(where)
		if err != nil {
			return "", nil, fmt.Errorf("delete %s: where: %w", table, err)
		}
		sql += " WHERE " + wsql
		params = wargs
	}
	return sql, params, nil
}

// compilePredicate compiles a Predicate to a SQL fragment and its params.
// Values are never interpolated - always ? placeholders.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Eq:
		return pred.Column + " = ?", []any{pred.Value}, nil
	case *Eq:
		return compilePredicate(*pred)
	case Cmp:
		if !cmpOps[pred.Op] {
			return "", nil, fmt.Errorf("unknown comparison operator %q", pred.Op)
		}
		return fmt.Sprintf("%s %s ?", pred.Column, pred.Op), []any{pred.Value}, nil
	case *Cmp:
		return compilePredicate(*pred)
	case Like:
		return pred.Column + " LIKE ?", []any{pred.Pattern}, nil
	case *Like:
		return compilePredicate(*pred)
	case In:
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil // empty IN matches nothing
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		return fmt.Sprintf("%s IN (%s)", pred.Column, marks), pred.Values, nil
	case *In:
		return compilePredicate(*pred)
	case And:
		return compileList(pred.Predicates, " AND ", "1 = 1")
	case *And:
		return compilePredicate(*pred)
	case Or:
		return compileList(pred.Predicates, " OR ", "1 = 0")
	case *Or:
		return compilePredicate(*pred)
	case Raw:
		if strings.TrimSpace(pred.Expr) == "" {
			return "", nil, fmt.Errorf("empty raw predicate")
		}
		return pred.Expr, pred.Args, nil
	case *Raw:
		return compilePredicate(*pred)
	case nil:
		return "1 = 1", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileList joins sub-predicates with sep, parenthesizing each so that
// nested And/Or keep their meaning. empty is the vacuous result.
func compileList(preds []Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, args, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, args...)
	}
	return strings.Join(parts, sep), params, nil
}

// sortedKeys returns the map keys in sorted order for deterministic SQL.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
