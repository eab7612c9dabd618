// Package fts keeps a denormalized full-text shadow table consistent with
// the verses base table and serves search over it.
//
// The shadow table is an external-content FTS5 table rowid-aligned with
// verses. Consistency is transactional, not eventual: AFTER INSERT, AFTER
// UPDATE, and AFTER DELETE triggers mutate the shadow inside whatever
// transaction mutates the base table, so the shadow's rowid set equals the
// base table's id set at every commit boundary and never in between.
//
// mattn/go-sqlite3 compiles FTS5 in only under the sqlite_fts5 build tag,
// so every build and test invocation needs -tags sqlite_fts5 (the Makefile
// passes it). Attach fails fast with that instruction in an untagged
// binary; Enabled reports the build's capability.
package fts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/versebase/internal/engine"
)

// ShadowTable is the name of the full-text shadow table.
const ShadowTable = "verses_fts"

// shadowDDL mirrors verses(body, translation) for search. content= and
// content_rowid= make this an external-content table: FTS5 stores only the
// index, and rowids are verses.id.
const shadowDDL = `CREATE VIRTUAL TABLE IF NOT EXISTS verses_fts USING fts5(
	body,
	translation UNINDEXED,
	content=verses,
	content_rowid=id,
	tokenize='porter unicode61'
)`

// syncTriggers is the insert/update/delete trigger triple that keeps the
// shadow table in the same transaction as every base mutation.
var syncTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS verses_fts_ai AFTER INSERT ON verses BEGIN
		INSERT INTO verses_fts(rowid, body, translation)
		VALUES (new.id, new.body, new.translation);
	END`,
	`CREATE TRIGGER IF NOT EXISTS verses_fts_ad AFTER DELETE ON verses BEGIN
		INSERT INTO verses_fts(verses_fts, rowid, body, translation)
		VALUES ('delete', old.id, old.body, old.translation);
	END`,
	`CREATE TRIGGER IF NOT EXISTS verses_fts_au AFTER UPDATE ON verses BEGIN
		INSERT INTO verses_fts(verses_fts, rowid, body, translation)
		VALUES ('delete', old.id, old.body, old.translation);
		INSERT INTO verses_fts(rowid, body, translation)
		VALUES (new.id, new.body, new.translation);
	END`,
}

var triggerNames = []string{"verses_fts_ai", "verses_fts_ad", "verses_fts_au"}

// Index synchronizes and searches the verses shadow table.
type Index struct {
	h              *engine.Handle
	logger         *zap.Logger
	budget         time.Duration
	fallbackBudget time.Duration
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger sets the structured logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) IndexOption {
	return func(ix *Index) { ix.logger = l }
}

// WithBudget sets the time budget for the MATCH query before the search
// falls back to a substring scan. Default 250ms.
func WithBudget(d time.Duration) IndexOption {
	return func(ix *Index) { ix.budget = d }
}

// WithFallbackBudget sets the separate time budget for the substring
// fallback scan. Default 2s; when this is also exceeded the search fails
// with a SEARCH_TIMEOUT error rather than hanging.
func WithFallbackBudget(d time.Duration) IndexOption {
	return func(ix *Index) { ix.fallbackBudget = d }
}

// NewVerseIndex creates the synchronizer for h. Attach must run before
// tracked mutations for the consistency guarantee to hold.
func NewVerseIndex(h *engine.Handle, opts ...IndexOption) *Index {
	ix := &Index{
		h:              h,
		logger:         zap.NewNop(),
		budget:         250 * time.Millisecond,
		fallbackBudget: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Enabled reports whether this binary was built with FTS5 support
// (build tag sqlite_fts5).
func Enabled() bool {
	return fts5Enabled
}

// Attach installs the shadow table and the sync trigger triple. Idempotent.
func (ix *Index) Attach(ctx context.Context) error {
	if !fts5Enabled {
		return fmt.Errorf("fts attach: binary built without FTS5 support; rebuild with -tags sqlite_fts5")
	}
	if err := ix.h.Execute(ctx, shadowDDL); err != nil {
		return fmt.Errorf("fts attach: shadow table: %w", err)
	}
	for _, trg := range syncTriggers {
		if err := ix.h.Execute(ctx, trg); err != nil {
			return fmt.Errorf("fts attach: trigger: %w", err)
		}
	}
	return nil
}

// Detach drops the sync triggers, leaving the shadow table in place. The
// bulk loader detaches during batched imports (per-row trigger firing is
// the slow path) and rebuilds wholesale afterwards.
func (ix *Index) Detach(ctx context.Context) error {
	for _, name := range triggerNames {
		if err := ix.h.Execute(ctx, "DROP TRIGGER IF EXISTS "+name); err != nil {
			return fmt.Errorf("fts detach: %w", err)
		}
	}
	return nil
}

// Rebuild repopulates the whole shadow table from the base table using
// FTS5's rebuild command.
func (ix *Index) Rebuild(ctx context.Context) error {
	start := time.Now()
	err := ix.h.Execute(ctx, "INSERT INTO verses_fts(verses_fts) VALUES ('rebuild')")
	if err != nil {
		return fmt.Errorf("fts rebuild: %w", err)
	}
	ix.logger.Info("full-text index rebuilt", zap.Duration("took", time.Since(start)))
	return nil
}
