// Package migrate brings a restored or fresh database image to the schema
// version this build expects.
//
// Two paths exist: Bootstrapping (fresh image, no snapshot was found) and
// Migrating (restored image at an older version). Both apply the same
// ascending step list; the states differ so operators can tell a first
// install from an upgrade in logs and status output.
//
// Migration steps are strictly additive - add column, add index, add table,
// never destructive. A step failure parks the migrator in StateFailed;
// recovery is the caller's explicit decision to open a fresh image and
// bootstrap it, never an automatic wipe.
package migrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/versebase/internal/engine"
)

// State is the migrator lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateBootstrapping State = "bootstrapping"
	StateMigrating     State = "migrating"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Migrator applies versioned schema steps to a handle.
type Migrator struct {
	h      *engine.Handle
	logger *zap.Logger
	state  State
}

// New creates a Migrator for h. Pass nil for logger to disable logging.
func New(h *engine.Handle, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{h: h, logger: logger, state: StateUninitialized}
}

// State returns the current lifecycle state.
func (m *Migrator) State() State {
	return m.state
}

// Run brings the image to ExpectedVersion.
//
// A version-0 image takes the Bootstrapping path (create everything); an
// older-versioned image takes the Migrating path (apply the remaining steps
// in ascending order, one transaction per step). An image already at
// ExpectedVersion goes directly to Ready. An image from the future fails:
// downgrades are not supported.
func (m *Migrator) Run(ctx context.Context) error {
	version, err := m.CurrentVersion(ctx)
	if err != nil {
		m.state = StateFailed
		return fmt.Errorf("migrate: read version: %w", err)
	}

	switch {
	case version == ExpectedVersion:
		m.state = StateReady
		return nil
	case version > ExpectedVersion:
		m.state = StateFailed
		return fmt.Errorf("migrate: image version %d is newer than expected %d", version, ExpectedVersion)
	case version == 0:
		m.state = StateBootstrapping
	default:
		m.state = StateMigrating
	}

	for _, st := range steps {
		if st.version <= version {
			continue
		}
		if err := m.applyStep(ctx, st); err != nil {
			m.state = StateFailed
			return fmt.Errorf("migrate: step %d: %w", st.version, err)
		}
		m.logger.Info("schema step applied",
			zap.Int("version", st.version),
			zap.String("path", string(m.state)))
	}

	m.state = StateReady
	return nil
}

// applyStep runs one step's statements and the version bump in a single
// transaction, so a step applies exactly once or not at all.
func (m *Migrator) applyStep(ctx context.Context, st step) error {
	return m.h.Transaction(ctx, func(tx *engine.Tx) error {
		for _, stmt := range st.statements {
			if err := tx.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return tx.Execute(ctx, fmt.Sprintf("PRAGMA user_version = %d", st.version))
	})
}

// CurrentVersion reads the image's embedded schema version.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	rows, err := m.h.RawQuery(ctx, "PRAGMA user_version")
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("unexpected user_version result: %d rows", len(rows))
	}
	v, ok := rows[0]["user_version"].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected user_version value: %v", rows[0]["user_version"])
	}
	return int(v), nil
}
