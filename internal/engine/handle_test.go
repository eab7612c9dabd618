package engine

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/roach88/versebase/internal/sqlbuild"
)

// newTestHandle opens a fresh handle with a small inventory table.
func newTestHandle(t *testing.T) *Handle {
	t.Helper()

	h, err := Open(WithScratchDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	err = h.Execute(context.Background(), `
		CREATE TABLE items (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			qty  INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	return h
}

func TestInsertQuery_RoundTrip(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	id, err := h.Insert(ctx, "items", map[string]any{"name": "lamp", "qty": 3}, sqlbuild.ConflictAbort)
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Insert() returned zero row identifier")
	}

	rows, err := h.Query(ctx, "items", sqlbuild.QuerySpec{
		Where: sqlbuild.Eq{Column: "id", Value: id},
	})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["name"] != "lamp" {
		t.Errorf("name = %v, want lamp", rows[0]["name"])
	}
	if rows[0]["qty"] != int64(3) {
		t.Errorf("qty = %v, want 3", rows[0]["qty"])
	}
}

func TestUpdate_ZeroRowsIsNotAnError(t *testing.T) {
	h := newTestHandle(t)

	n, err := h.Update(context.Background(), "items",
		map[string]any{"qty": 9},
		sqlbuild.Eq{Column: "name", Value: "absent"},
	)
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("affected = %d, want 0", n)
	}
}

func TestDelete_ReturnsAffectedCount(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := h.Insert(ctx, "items", map[string]any{"name": name, "qty": 1}, sqlbuild.ConflictAbort); err != nil {
			t.Fatalf("Insert(%q) failed: %v", name, err)
		}
	}

	n, err := h.Delete(ctx, "items", sqlbuild.Cmp{Column: "qty", Op: ">", Value: 0})
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("affected = %d, want 3", n)
	}
}

func TestInsert_ConflictPolicies(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	if _, err := h.Insert(ctx, "items", map[string]any{"name": "lamp", "qty": 1}, sqlbuild.ConflictAbort); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	// abort: surfaced as a constraint violation
	_, err := h.Insert(ctx, "items", map[string]any{"name": "lamp", "qty": 2}, sqlbuild.ConflictAbort)
	if !IsConstraintError(err) {
		t.Errorf("abort: got %v, want constraint error", err)
	}

	// ignore: silently dropped, identifier 0
	id, err := h.Insert(ctx, "items", map[string]any{"name": "lamp", "qty": 2}, sqlbuild.ConflictIgnore)
	if err != nil {
		t.Errorf("ignore: unexpected error: %v", err)
	}
	if id != 0 {
		t.Errorf("ignore: id = %d, want 0", id)
	}

	// replace: conflicting row replaced
	if _, err := h.Insert(ctx, "items", map[string]any{"name": "lamp", "qty": 7}, sqlbuild.ConflictReplace); err != nil {
		t.Fatalf("replace: unexpected error: %v", err)
	}
	rows, err := h.Query(ctx, "items", sqlbuild.QuerySpec{Where: sqlbuild.Eq{Column: "name", Value: "lamp"}})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["qty"] != int64(7) {
		t.Errorf("replace: rows = %v, want single row with qty 7", rows)
	}
}

func TestQuery_MalformedSpec(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	_, err := h.Query(ctx, "items", sqlbuild.QuerySpec{
		Where: sqlbuild.Cmp{Column: "id", Op: "~", Value: 1},
	})
	if !IsQueryError(err) {
		t.Errorf("bad operator: got %v, want query error", err)
	}

	_, err = h.Query(ctx, "no_such_table", sqlbuild.QuerySpec{})
	if !IsQueryError(err) {
		t.Errorf("unknown table: got %v, want query error", err)
	}
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := h.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Insert(ctx, "items", map[string]any{"name": "a", "qty": 1}, sqlbuild.ConflictAbort); err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, "items", map[string]any{"name": "b", "qty": 2}, sqlbuild.ConflictAbort); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() = %v, want boom", err)
	}

	rows, err := h.Query(ctx, "items", sqlbuild.QuerySpec{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows after rollback, want 0", len(rows))
	}
}

func TestTransaction_NestedFlattens(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	boom := errors.New("inner boom")
	err := h.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Insert(ctx, "items", map[string]any{"name": "outer", "qty": 1}, sqlbuild.ConflictAbort); err != nil {
			return err
		}
		// The nested body joins the outer transaction; its failure rolls
		// back the outer insert too.
		return tx.Transaction(ctx, func(tx *Tx) error {
			if _, err := tx.Insert(ctx, "items", map[string]any{"name": "inner", "qty": 2}, sqlbuild.ConflictAbort); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() = %v, want inner boom", err)
	}

	rows, err := h.Query(ctx, "items", sqlbuild.QuerySpec{})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows after nested rollback, want 0", len(rows))
	}
}

func TestTransaction_SecondTransactionQueues(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- h.Transaction(ctx, func(tx *Tx) error {
			close(entered)
			<-release
			_, err := tx.Insert(ctx, "items", map[string]any{"name": "first", "qty": 1}, sqlbuild.ConflictAbort)
			return err
		})
	}()

	<-entered

	second := make(chan error, 1)
	go func() {
		second <- h.Transaction(ctx, func(tx *Tx) error {
			_, err := tx.Insert(ctx, "items", map[string]any{"name": "second", "qty": 2}, sqlbuild.ConflictAbort)
			return err
		})
	}()

	// The queued transaction must not have run yet.
	select {
	case err := <-second:
		t.Fatalf("second transaction finished while first was open: %v", err)
	default:
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first transaction failed: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second transaction failed: %v", err)
	}

	rows, err := h.Query(ctx, "items", sqlbuild.QuerySpec{OrderBy: []string{"id ASC"}})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
}

func TestSerializeAndOpenImage(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	if _, err := h.Insert(ctx, "items", map[string]any{"name": "kept", "qty": 5}, sqlbuild.ConflictAbort); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	dest := t.TempDir() + "/snapshot.db"
	if err := h.SerializeTo(ctx, dest); err != nil {
		t.Fatalf("SerializeTo() failed: %v", err)
	}

	image, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read image failed: %v", err)
	}

	restored, err := OpenImage(image, WithScratchDir(t.TempDir()))
	if err != nil {
		t.Fatalf("OpenImage() failed: %v", err)
	}
	defer restored.Close()

	rows, err := restored.Query(ctx, "items", sqlbuild.QuerySpec{})
	if err != nil {
		t.Fatalf("Query() on restored handle failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "kept" {
		t.Errorf("restored rows = %v, want the kept row", rows)
	}
}

func TestDegradedFlag(t *testing.T) {
	h := newTestHandle(t)

	if h.Degraded() {
		t.Fatal("fresh handle reports degraded")
	}
	h.MarkDegraded("test")
	if !h.Degraded() {
		t.Fatal("MarkDegraded did not set the flag")
	}
	h.ClearDegraded()
	if h.Degraded() {
		t.Fatal("ClearDegraded did not clear the flag")
	}
}

// A fresh Open in a reused scratch dir must not resurrect the previous
// run's image file.
func TestOpen_FreshIgnoresStaleImage(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	h1, err := Open(WithScratchDir(dir))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	err = h1.Execute(ctx, "CREATE TABLE leftovers (id INTEGER PRIMARY KEY)")
	if err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if err := h1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	h2, err := Open(WithScratchDir(dir))
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer h2.Close()

	rows, err := h2.RawQuery(ctx,
		"SELECT COUNT(*) AS n FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		t.Fatalf("RawQuery() failed: %v", err)
	}
	if rows[0]["n"] != int64(0) {
		t.Errorf("fresh open found %v tables, want 0", rows[0]["n"])
	}
}
