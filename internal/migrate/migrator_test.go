package migrate

import (
	"context"
	"sort"
	"testing"

	"github.com/roach88/versebase/internal/engine"
)

func newHandle(t *testing.T) *engine.Handle {
	t.Helper()
	h, err := engine.Open(engine.WithScratchDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// tableNames returns the sorted user table names of an image.
func tableNames(t *testing.T, h *engine.Handle) []string {
	t.Helper()
	rows, err := h.RawQuery(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		t.Fatalf("sqlite_master query failed: %v", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r["name"].(string))
	}
	sort.Strings(names)
	return names
}

func TestRun_FreshBootstrap(t *testing.T) {
	h := newHandle(t)
	m := New(h, nil)
	ctx := context.Background()

	if m.State() != StateUninitialized {
		t.Fatalf("initial state = %s, want uninitialized", m.State())
	}
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want ready", m.State())
	}

	v, err := m.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if v != ExpectedVersion {
		t.Errorf("version = %d, want %d", v, ExpectedVersion)
	}

	want := []string{
		"books", "categories", "devotionals", "reading_plan_days",
		"reading_plans", "vb_meta", "verse_categories", "verses",
	}
	got := tableNames(t, h)
	if len(got) != len(want) {
		t.Fatalf("tables = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tables = %v, want %v", got, want)
		}
	}
}

func TestRun_AlreadyCurrent(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()

	if err := New(h, nil).Run(ctx); err != nil {
		t.Fatalf("first Run() failed: %v", err)
	}

	m := New(h, nil)
	if err := m.Run(ctx); err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}
	if m.State() != StateReady {
		t.Errorf("state = %s, want ready", m.State())
	}
}

// A partway-migrated image must converge to the same schema as a fresh one.
func TestRun_FromPartwayMigrated(t *testing.T) {
	ctx := context.Background()

	// Fresh image, all steps.
	fresh := newHandle(t)
	if err := New(fresh, nil).Run(ctx); err != nil {
		t.Fatalf("fresh Run() failed: %v", err)
	}

	// Partway image: apply step 1 only, then resume with Run.
	partway := newHandle(t)
	pm := New(partway, nil)
	if err := pm.applyStep(ctx, steps[0]); err != nil {
		t.Fatalf("applyStep(1) failed: %v", err)
	}
	if err := pm.Run(ctx); err != nil {
		t.Fatalf("resume Run() failed: %v", err)
	}
	if pm.State() != StateMigrating && pm.State() != StateReady {
		t.Errorf("state = %s", pm.State())
	}

	freshTables := tableNames(t, fresh)
	partwayTables := tableNames(t, partway)
	if len(freshTables) != len(partwayTables) {
		t.Fatalf("schemas diverge: %v vs %v", freshTables, partwayTables)
	}
	for i := range freshTables {
		if freshTables[i] != partwayTables[i] {
			t.Fatalf("schemas diverge: %v vs %v", freshTables, partwayTables)
		}
	}

	v, err := pm.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if v != ExpectedVersion {
		t.Errorf("version = %d, want %d", v, ExpectedVersion)
	}
}

func TestRun_FutureVersionFails(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()

	if err := h.Execute(ctx, "PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set version failed: %v", err)
	}

	m := New(h, nil)
	if err := m.Run(ctx); err == nil {
		t.Fatal("expected error for future version, got nil")
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want failed", m.State())
	}
}

func TestRepairColumns_AppendsMissingAndIsIdempotent(t *testing.T) {
	h := newHandle(t)
	ctx := context.Background()

	// Ad hoc pre-existing table: verses without the newer columns.
	err := h.Execute(ctx, `
		CREATE TABLE verses (
			id      INTEGER PRIMARY KEY,
			book_id INTEGER NOT NULL,
			chapter INTEGER NOT NULL,
			verse   INTEGER NOT NULL,
			body    TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("create ad hoc table failed: %v", err)
	}

	m := New(h, nil)
	added, err := m.RepairColumns(ctx, "verses")
	if err != nil {
		t.Fatalf("RepairColumns() failed: %v", err)
	}
	if added != 2 { // translation, word_count
		t.Errorf("added = %d, want 2", added)
	}

	// Second pass must be a no-op.
	added, err = m.RepairColumns(ctx, "verses")
	if err != nil {
		t.Fatalf("second RepairColumns() failed: %v", err)
	}
	if added != 0 {
		t.Errorf("second pass added = %d, want 0", added)
	}

	// Existing rows got the defaults.
	if err := h.Execute(ctx, "INSERT INTO verses (book_id, chapter, verse, body) VALUES (1, 1, 1, 'x')"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	rows, err := h.RawQuery(ctx, "SELECT translation, word_count FROM verses")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if rows[0]["translation"] != "kjv" || rows[0]["word_count"] != int64(0) {
		t.Errorf("defaults not applied: %v", rows[0])
	}
}

func TestRepairColumns_UnknownTable(t *testing.T) {
	h := newHandle(t)
	if _, err := New(h, nil).RepairColumns(context.Background(), "mystery"); err == nil {
		t.Error("expected error for unknown table, got nil")
	}
}
