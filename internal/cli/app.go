package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/versebase/internal/engine"
	"github.com/roach88/versebase/internal/fts"
	"github.com/roach88/versebase/internal/migrate"
	"github.com/roach88/versebase/internal/snapshot"
)

// app is the assembled storage stack behind every command: snapshot store,
// live engine handle, migrated schema, attached search index.
type app struct {
	cfg    Config
	logger *zap.Logger
	store  *snapshot.Store
	handle *engine.Handle
	index  *fts.Index

	// fresh is true when no usable snapshot existed and the database was
	// bootstrapped from nothing.
	fresh bool
}

// openApp boots the stack: load the latest snapshot if one exists, open
// the live image from it (or fresh), run migrations up to the expected
// schema version, and attach the search index.
//
// A corrupt snapshot is surfaced in the log and answered with a fresh
// bootstrap. That is the one deliberate data-loss path; it is never
// silent.
func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	logger := newLogger(opts.Verbose)

	store, err := snapshot.Open(cfg.StorePath, cfg.Namespace,
		snapshot.WithQuota(cfg.QuotaBytes),
		snapshot.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open snapshot store", err)
	}

	image, version, ok, err := store.Load(ctx)
	if err != nil {
		if !engine.IsCorruptSnapshotError(err) {
			store.Close()
			return nil, WrapExitError(ExitCommandError, "load snapshot", err)
		}
		logger.Error("snapshot is corrupt, bootstrapping fresh", zap.Error(err))
		ok = false
	}

	eopts := []engine.Option{engine.WithLogger(logger)}
	if cfg.ScratchDir != "" {
		eopts = append(eopts, engine.WithScratchDir(cfg.ScratchDir))
	}

	var h *engine.Handle
	if ok {
		h, err = engine.OpenImage(image, eopts...)
		if err != nil {
			// Decompressed but unusable image: same treatment as a corrupt
			// snapshot.
			logger.Error("snapshot image failed to open, bootstrapping fresh",
				zap.Int("version", version), zap.Error(err))
			ok = false
		} else {
			logger.Info("restored from snapshot", zap.Int("version", version))
		}
	}
	if !ok {
		h, err = engine.Open(eopts...)
	}
	if err != nil {
		store.Close()
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	if err := migrate.New(h, logger).Run(ctx); err != nil {
		h.Close()
		store.Close()
		return nil, WrapExitError(ExitFailure, "migrate schema", err)
	}

	index := fts.NewVerseIndex(h,
		fts.WithLogger(logger),
		fts.WithBudget(cfg.SearchBudget()),
		fts.WithFallbackBudget(cfg.FallbackBudget()))
	if err := index.Attach(ctx); err != nil {
		h.Close()
		store.Close()
		return nil, WrapExitError(ExitFailure, "attach search index", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		handle: h,
		index:  index,
		fresh:  !ok,
	}, nil
}

// save snapshots the current image under the expected schema version.
func (a *app) save(ctx context.Context) error {
	return a.store.Save(ctx, a.handle, migrate.ExpectedVersion)
}

func (a *app) Close() {
	if err := a.handle.Close(); err != nil {
		a.logger.Error("close database", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("close snapshot store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newLogger builds the CLI logger: quiet by default so command output
// stays clean, debug when --verbose.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
