package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// imageFile is the name of the live database image inside the scratch dir.
const imageFile = "image.db"

// Row is one result row as a column name to value mapping.
// TEXT columns are always materialized as string, never []byte.
type Row map[string]any

// Handle is the process-wide database handle. See the package documentation
// for the ownership and execution model.
type Handle struct {
	db     *sql.DB
	dir    string // private scratch directory holding the live image
	ownDir bool   // whether Reset removes dir
	logger *zap.Logger

	// txMu serializes transactions and snapshot serialization. A second
	// transaction attempted while one is open queues here.
	txMu sync.Mutex

	degraded atomic.Bool
}

// Open creates a fresh, empty live image and returns its handle.
func Open(opts ...Option) (*Handle, error) {
	return open(nil, opts...)
}

// OpenImage restores a handle from a serialized database image, typically
// the bytes of a loaded snapshot. The image is written into the scratch
// directory and opened in place.
func OpenImage(image []byte, opts ...Option) (*Handle, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("open image: empty image")
	}
	return open(image, opts...)
}

func open(image []byte, opts ...Option) (*Handle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dir := o.scratchDir
	ownDir := false
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "versebase-*")
		if err != nil {
			return nil, fmt.Errorf("create scratch dir: %w", err)
		}
		ownDir = true
	}

	// Clear any leftover image state from a prior run in the same scratch
	// dir. A fresh open must produce an empty database, and a restored one
	// must not replay a stale WAL over the restored image.
	path := filepath.Join(dir, imageFile)
	for _, stale := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("clear stale image: %w", err)
		}
	}
	if image != nil {
		if err := os.WriteFile(path, image, 0o600); err != nil {
			return nil, fmt.Errorf("write image: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// One connection: statements execute in submission order and a
	// transaction blocks everything else until it finishes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return &Handle{
		db:     db,
		dir:    dir,
		ownDir: ownDir,
		logger: o.logger,
	}, nil
}

// applyPragmas sets required SQLite configuration.
// synchronous=OFF is safe here: the image is scratch state and durability
// comes from explicit snapshots, not from this file surviving a crash.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = OFF",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		// INSERT OR REPLACE resolves conflicts through an implicit delete,
		// and SQLite fires delete triggers for those displaced rows only
		// when recursive triggers are on. Shadow-table triggers depend on
		// seeing that delete.
		"PRAGMA recursive_triggers = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// ImagePath returns the path of the live image file. Exposed for snapshot
// serialization and for read-only observers in tests.
func (h *Handle) ImagePath() string {
	return filepath.Join(h.dir, imageFile)
}

// Close closes the database connection, leaving the scratch image in place.
func (h *Handle) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Reset is the explicit teardown: it closes the connection and removes the
// scratch directory. The handle is unusable afterwards. Nothing else ever
// discards the live image.
func (h *Handle) Reset() error {
	if err := h.Close(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if h.ownDir {
		if err := os.RemoveAll(h.dir); err != nil {
			return fmt.Errorf("reset: remove scratch dir: %w", err)
		}
	}
	return nil
}

// MarkDegraded records that persistence is unavailable and mutations are
// currently in-memory only. Upstream services check Degraded before relying
// on durability.
func (h *Handle) MarkDegraded(reason string) {
	if h.degraded.CompareAndSwap(false, true) {
		h.logger.Warn("persistence degraded, continuing in-memory",
			zap.String("reason", reason))
	}
}

// ClearDegraded resets the degraded flag after a successful snapshot save.
func (h *Handle) ClearDegraded() {
	if h.degraded.CompareAndSwap(true, false) {
		h.logger.Info("persistence restored")
	}
}

// Degraded reports whether the last snapshot save failed and state is
// currently not durable.
func (h *Handle) Degraded() bool {
	return h.degraded.Load()
}

// SerializeTo writes a consistent, committed-state-only copy of the live
// image to path using VACUUM INTO. It waits for any open transaction, so a
// serialized image never contains a partially-committed state.
func (h *Handle) SerializeTo(ctx context.Context, path string) error {
	h.txMu.Lock()
	defer h.txMu.Unlock()

	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("serialize: clear destination: %w", err)
	}
	if _, err := h.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("serialize: vacuum into: %w", err)
	}
	return nil
}

// Transaction runs fn inside a single transaction. Every statement fn issues
// through the Tx commits atomically; any error or panic from fn rolls all of
// them back.
//
// A Transaction call while another transaction is open queues behind it.
// To nest, call Tx.Transaction on the transaction you are inside: nested
// bodies flatten into the outer transaction and are not independently
// rolled back.
func (h *Handle) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	h.txMu.Lock()
	defer h.txMu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed; covers error and panic paths

	if err := fn(&Tx{tx: tx, h: h}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
