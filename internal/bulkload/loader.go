// Package bulkload imports delimited SQL dumps into the engine in bounded,
// idempotent batches.
//
// A run strips vendor statements and comments from the dump, parses the
// multi-row inserts, rewrites source book and category identifiers through
// the static translation tables, and executes the rows in fixed-size
// batches, one transaction per batch. Row upserts make a rerun after an
// interruption converge instead of duplicating, and the source dataset
// version is recorded in vb_meta only after the final batch, so a matching
// marker means the whole dump landed.
//
// Cancellation is honored at batch boundaries only. A batch in flight runs
// to completion; already committed batches stay committed.
package bulkload

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/versebase/internal/engine"
	"github.com/roach88/versebase/internal/fts"
	"github.com/roach88/versebase/internal/sqlbuild"
)

// DefaultBatchSize is rows per transaction. Large enough to amortize
// commit cost, small enough to keep the gaps where cancellation and
// progress reporting happen frequent.
const DefaultBatchSize = 200

// datasetVersionKey is the vb_meta key holding the imported dump version.
const datasetVersionKey = "dataset_version"

// Progress is one per-batch report.
type Progress struct {
	RunID        string
	Batch        int
	TotalBatches int
	RowsLoaded   int
	Fraction     float64
}

// Loader imports dumps into h. If an index is attached, its triggers are
// dropped for the duration of the run and the shadow table rebuilt once at
// the end, instead of firing per row.
type Loader struct {
	h         *engine.Handle
	idx       *fts.Index
	batchSize int
	logger    *zap.Logger
	progress  func(Progress)
	yield     func(ctx context.Context) error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithBatchSize sets rows per transaction.
func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after every committed batch.
func WithProgress(fn func(Progress)) LoaderOption {
	return func(l *Loader) { l.progress = fn }
}

// WithYield registers a function called between batches. Hosts that must
// not hold the executor for long stretches hand their scheduler's yield
// point in here; returning an error stops the run at the boundary.
func WithYield(fn func(ctx context.Context) error) LoaderOption {
	return func(l *Loader) { l.yield = fn }
}

// New builds a Loader over h. idx may be nil when no search index is
// attached.
func New(h *engine.Handle, idx *fts.Index, opts ...LoaderOption) *Loader {
	l := &Loader{
		h:         h,
		idx:       idx,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
		yield:     func(ctx context.Context) error { return ctx.Err() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// batch is one transaction's worth of rows for a single table.
type batch struct {
	table string
	cols  []string
	rows  [][]any
}

// Run imports the dump in src, recorded as sourceVersion. If vb_meta
// already carries sourceVersion the run is a no-op: the import is
// idempotent at the dataset level, not just the row level.
func (l *Loader) Run(ctx context.Context, src io.Reader, sourceVersion string) error {
	if sourceVersion == "" {
		return fmt.Errorf("bulkload: empty source version")
	}

	current, err := l.recordedVersion(ctx)
	if err != nil {
		return err
	}
	if current == sourceVersion {
		l.logger.Info("dataset already loaded, skipping import",
			zap.String("version", sourceVersion))
		return nil
	}

	runID := uuid.NewString()
	start := time.Now()

	stmts, err := SplitStatements(src)
	if err != nil {
		return fmt.Errorf("bulkload: %w", err)
	}

	ddl, batches, totalRows, err := l.plan(stmts)
	if err != nil {
		return err
	}

	l.logger.Info("bulk import starting",
		zap.String("run_id", runID),
		zap.String("version", sourceVersion),
		zap.Int("statements", len(stmts)),
		zap.Int("rows", totalRows),
		zap.Int("batches", len(batches)))

	for _, stmt := range ddl {
		if err := l.h.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("bulkload: ddl: %w", err)
		}
	}

	if l.idx != nil {
		if err := l.idx.Detach(ctx); err != nil {
			return err
		}
		defer func() {
			// Always reattach and rebuild, even on a failed run: committed
			// batches must become searchable and trigger maintenance must
			// resume.
			rctx := context.WithoutCancel(ctx)
			if err := l.idx.Attach(rctx); err != nil {
				l.logger.Error("reattach search index", zap.Error(err))
				return
			}
			if err := l.idx.Rebuild(rctx); err != nil {
				l.logger.Error("rebuild search index", zap.Error(err))
			}
		}()
	}

	loaded := 0
	for i, b := range batches {
		if err := l.yield(ctx); err != nil {
			l.logger.Warn("bulk import stopped at batch boundary",
				zap.String("run_id", runID),
				zap.Int("batches_committed", i),
				zap.Error(err))
			return err
		}

		// Translate just before commit so an unmapped identifier aborts
		// exactly this batch: earlier batches stay committed, nothing from
		// this one lands.
		if err := l.translate(b); err != nil {
			return err
		}
		if err := l.commitBatch(ctx, b); err != nil {
			return fmt.Errorf("bulkload: batch %d/%d: %w", i+1, len(batches), err)
		}

		loaded += len(b.rows)
		if l.progress != nil {
			l.progress(Progress{
				RunID:        runID,
				Batch:        i + 1,
				TotalBatches: len(batches),
				RowsLoaded:   loaded,
				Fraction:     float64(i+1) / float64(len(batches)),
			})
		}
	}

	if err := l.recordVersion(ctx, sourceVersion); err != nil {
		return err
	}

	l.logger.Info("bulk import finished",
		zap.String("run_id", runID),
		zap.String("version", sourceVersion),
		zap.Int("rows", loaded),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// plan splits the statements into executable DDL and row batches.
func (l *Loader) plan(stmts []string) (ddl []string, batches []batch, totalRows int, err error) {
	for _, stmt := range stmts {
		switch {
		case Skippable(stmt):
			continue
		case strings.HasPrefix(strings.ToUpper(stmt), "INSERT"):
			ins, err := parseInsert(stmt)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("bulkload: %w", err)
			}
			totalRows += len(ins.rows)
			for off := 0; off < len(ins.rows); off += l.batchSize {
				end := off + l.batchSize
				if end > len(ins.rows) {
					end = len(ins.rows)
				}
				batches = append(batches, batch{
					table: ins.table,
					cols:  ins.cols,
					rows:  ins.rows[off:end],
				})
			}
		case strings.HasPrefix(strings.ToUpper(stmt), "CREATE"):
			ddl = append(ddl, stmt)
		default:
			l.logger.Debug("skipping unsupported dump statement",
				zap.String("statement", firstWord(stmt)))
		}
	}
	return ddl, batches, totalRows, nil
}

// translate rewrites source identifiers in place. Only the columns the
// translation tables cover are touched; everything else passes through.
func (l *Loader) translate(b batch) error {
	type mapping struct {
		col string
		fn  func(string) (string, error)
	}
	var maps []mapping
	switch b.table {
	case "books":
		maps = []mapping{{"name", CanonicalBookName}}
	case "categories":
		maps = []mapping{{"kind", CanonicalCategoryKind}}
	default:
		return nil
	}

	for _, m := range maps {
		ci := -1
		for i, c := range b.cols {
			if c == m.col {
				ci = i
				break
			}
		}
		if ci < 0 {
			continue
		}
		for _, row := range b.rows {
			s, ok := row[ci].(string)
			if !ok {
				continue
			}
			mapped, err := m.fn(s)
			if err != nil {
				return err
			}
			row[ci] = mapped
		}
	}
	return nil
}

// commitBatch upserts one batch in its own transaction. ConflictReplace
// gives reruns row-level idempotence.
func (l *Loader) commitBatch(ctx context.Context, b batch) error {
	stmt, params, err := sqlbuild.InsertRows(b.table, b.cols, b.rows, sqlbuild.ConflictReplace)
	if err != nil {
		return engine.NewQueryError(b.table, err)
	}
	return l.h.Transaction(ctx, func(tx *engine.Tx) error {
		return tx.Execute(ctx, stmt, params...)
	})
}

func (l *Loader) recordedVersion(ctx context.Context) (string, error) {
	rows, err := l.h.Query(ctx, "vb_meta", sqlbuild.QuerySpec{
		Columns: []string{"value"},
		Where:   sqlbuild.Eq{Column: "key", Value: datasetVersionKey},
	})
	if err != nil {
		return "", fmt.Errorf("bulkload: read dataset version: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	v, _ := rows[0]["value"].(string)
	return v, nil
}

func (l *Loader) recordVersion(ctx context.Context, version string) error {
	_, err := l.h.Insert(ctx, "vb_meta",
		map[string]any{"key": datasetVersionKey, "value": version},
		sqlbuild.ConflictReplace)
	if err != nil {
		return fmt.Errorf("bulkload: record dataset version: %w", err)
	}
	return nil
}

func firstWord(stmt string) string {
	if f := strings.Fields(stmt); len(f) > 0 {
		return f[0]
	}
	return ""
}
