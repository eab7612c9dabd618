package sqlbuild

import (
	"reflect"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// golden returns the goldie instance used by SQL text comparisons.
// Regenerate with: go test ./internal/sqlbuild -update
func golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestSelect_Basic(t *testing.T) {
	sql, params, err := Select("verses", QuerySpec{
		Columns: []string{"id", "body"},
		Where:   Eq{Column: "book_id", Value: 1},
		OrderBy: []string{"chapter ASC", "verse ASC"},
		Limit:   10,
		Offset:  20,
	})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	golden(t).Assert(t, "select_basic", []byte(sql))

	want := []any{1}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestSelect_GroupHaving(t *testing.T) {
	sql, params, err := Select("verses", QuerySpec{
		Columns: []string{"book_id", "COUNT(*) AS n"},
		GroupBy: []string{"book_id"},
		Having:  Cmp{Column: "n", Op: ">", Value: 100},
		OrderBy: []string{"book_id ASC"},
	})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	golden(t).Assert(t, "select_group_having", []byte(sql))

	want := []any{100}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestSelect_CompoundWhere(t *testing.T) {
	sql, params, err := Select("verses", QuerySpec{
		Where: And{Predicates: []Predicate{
			Eq{Column: "translation", Value: "kjv"},
			Or{Predicates: []Predicate{
				Like{Column: "body", Pattern: "%faith%"},
				In{Column: "book_id", Values: []any{1, 2, 3}},
			}},
		}},
	})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	golden(t).Assert(t, "select_compound_where", []byte(sql))

	want := []any{"kjv", "%faith%", 1, 2, 3}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestSelect_OffsetWithoutLimit(t *testing.T) {
	sql, _, err := Select("verses", QuerySpec{Offset: 5})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	// SQLite requires a LIMIT clause to carry an OFFSET.
	want := "SELECT * FROM verses LIMIT -1 OFFSET 5"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
}

func TestSelect_HavingWithoutGroupBy(t *testing.T) {
	_, _, err := Select("verses", QuerySpec{
		Having: Cmp{Column: "n", Op: ">", Value: 1},
	})
	if err == nil {
		t.Error("expected error for HAVING without GROUP BY, got nil")
	}
}

func TestSelect_UnknownOperator(t *testing.T) {
	_, _, err := Select("verses", QuerySpec{
		Where: Cmp{Column: "id", Op: "LIKE", Value: 1},
	})
	if err == nil {
		t.Error("expected error for unknown operator, got nil")
	}
}

func TestSelect_EmptyIn(t *testing.T) {
	sql, params, err := Select("verses", QuerySpec{
		Where: In{Column: "book_id"},
	})
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	want := "SELECT * FROM verses WHERE 1 = 0"
	if sql != want {
		t.Errorf("sql = %q, want %q", sql, want)
	}
	if len(params) != 0 {
		t.Errorf("params = %v, want none", params)
	}
}

func TestInsert_Replace(t *testing.T) {
	sql, params, err := Insert("books", map[string]any{
		"id":        1,
		"name":      "Genesis",
		"position":  1,
		"testament": "OT",
	}, ConflictReplace)
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	golden(t).Assert(t, "insert_replace", []byte(sql))

	// Params follow sorted column order: id, name, position, testament.
	want := []any{1, "Genesis", 1, "OT"}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestInsert_UnknownPolicy(t *testing.T) {
	_, _, err := Insert("books", map[string]any{"id": 1}, ConflictPolicy("merge"))
	if err == nil {
		t.Error("expected error for unknown conflict policy, got nil")
	}
}

func TestInsertRows_MultiRow(t *testing.T) {
	sql, params, err := InsertRows("books",
		[]string{"id", "name"},
		[][]any{{1, "Genesis"}, {2, "Exodus"}},
		ConflictReplace,
	)
	if err != nil {
		t.Fatalf("InsertRows() failed: %v", err)
	}

	golden(t).Assert(t, "insert_rows", []byte(sql))

	want := []any{1, "Genesis", 2, "Exodus"}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestInsertRows_WidthMismatch(t *testing.T) {
	_, _, err := InsertRows("books",
		[]string{"id", "name"},
		[][]any{{1, "Genesis"}, {2}},
		ConflictAbort,
	)
	if err == nil {
		t.Error("expected error for row width mismatch, got nil")
	}
}

func TestUpdate_RawWhere(t *testing.T) {
	sql, params, err := Update("verses",
		map[string]any{"body": "In the beginning", "word_count": 4},
		Raw{Expr: "book_id = ? AND chapter = ?", Args: []any{1, 1}},
	)
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	golden(t).Assert(t, "update_where", []byte(sql))

	want := []any{"In the beginning", 4, 1, 1}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("params = %v, want %v", params, want)
	}
}

func TestDelete_NoWhere(t *testing.T) {
	sql, params, err := Delete("devotionals", nil)
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if sql != "DELETE FROM devotionals" {
		t.Errorf("sql = %q", sql)
	}
	if len(params) != 0 {
		t.Errorf("params = %v, want none", params)
	}
}
