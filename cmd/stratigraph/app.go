package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dusk-indust/stratigraph/internal/config"
	"github.com/dusk-indust/stratigraph/internal/engine"
	"github.com/dusk-indust/stratigraph/internal/graph"
	"github.com/dusk-indust/stratigraph/internal/validation"
)

// app is everything a command needs, built from the loaded configuration.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  graph.Store
	// mem is set when the store is the in-memory driver.
	mem *graph.MemStore
	svc *validation.Service
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// openApp opens the store, imports the dataset when one is configured and
// builds the validation service.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}
	a.svc = validation.New(a.store,
		validation.WithEngine(eng),
		validation.WithLogger(logger),
		validation.WithBatch(validation.BatchConfig{
			ChunkSize: cfg.Batch.ChunkSize,
			Yield:     cfg.Batch.Yield.Std(),
		}),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	var err error
	switch a.cfg.Store.Driver {
	case "sqlite":
		a.store, err = graph.NewSQLiteStore(a.cfg.Store.Path)
	case "kuzu":
		a.store, err = openKuzuStore(a.cfg.Store.Path)
	default:
		a.mem = graph.NewMemStore()
		a.store = a.mem
	}
	if err != nil {
		return err
	}
	if err := a.store.InitSchema(ctx); err != nil {
		_ = a.store.Close()
		return err
	}

	if a.cfg.Store.Dataset == "" {
		return nil
	}
	d, err := graph.LoadDataset(a.cfg.Store.Dataset)
	if err != nil {
		_ = a.store.Close()
		return err
	}
	if a.mem != nil {
		a.mem.Replace(d)
	} else if err := graph.Import(ctx, a.store, d); err != nil {
		_ = a.store.Close()
		return fmt.Errorf("import %s: %w", a.cfg.Store.Dataset, err)
	}
	a.logger.Debug("dataset loaded",
		zap.String("path", a.cfg.Store.Dataset),
		zap.Int("relations", len(d.Relations)))
	return nil
}

// buildEngine picks the single-relation engine. Remote engines always run
// behind a local fallback; auto uses the remote command only when it can be
// found.
func buildEngine(cfg *config.Config, logger *zap.Logger) (engine.Engine, error) {
	tiers := tiersFrom(cfg.Budgets)
	local := engine.NewLocalEngine(engine.WithTiers(tiers), engine.WithLogger(logger))
	switch cfg.Engine.Mode {
	case "local":
		return local, nil
	case "remote", "auto":
		remote := engine.NewCommandEngine(cfg.Engine.Command, cfg.Engine.Args, logger)
		if cfg.Engine.Mode == "auto" {
			if _, err := lookPath(cfg.Engine.Command); err != nil {
				logger.Info("engine command not found, using local engine", zap.String("command", cfg.Engine.Command))
				return local, nil
			}
		}
		return engine.NewFallbackEngine(remote, local, cfg.Engine.Timeout.Std(), logger), nil
	default:
		return nil, fmt.Errorf("%w: engine mode %q", config.ErrInvalid, cfg.Engine.Mode)
	}
}

func tiersFrom(in []config.TierConfig) []engine.Tier {
	if len(in) == 0 {
		return nil
	}
	out := make([]engine.Tier, len(in))
	for i, t := range in {
		out[i] = engine.Tier{
			UpTo: t.UpTo,
			Budget: engine.Budget{
				MaxDepth: t.MaxDepth,
				MaxNodes: t.MaxNodes,
				Timeout:  t.Timeout.Std(),
			},
		}
	}
	return out
}

// lookPath resolves command like exec.LookPath, also accepting paths
// relative to the working directory.
func lookPath(command string) (string, error) {
	if command == "" {
		return "", errors.New("no engine command configured")
	}
	if filepath.Base(command) != command {
		if _, err := os.Stat(command); err != nil {
			return "", err
		}
		return command, nil
	}
	return exec.LookPath(command)
}

// persist writes the in-memory site back to its dataset file so one-shot
// commands that change data keep their effect.
func (a *app) persist(ctx context.Context) error {
	if a.mem == nil || a.cfg.Store.Dataset == "" {
		return nil
	}
	d, err := a.store.Dataset(ctx)
	if err != nil {
		return err
	}
	tmp := a.cfg.Store.Dataset + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persist dataset: %w", err)
	}
	if err := graph.WriteDataset(f, d); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persist dataset: %w", err)
	}
	return os.Rename(tmp, a.cfg.Store.Dataset)
}

func (a *app) Close() error {
	err := errors.Join(a.svc.Close(), a.store.Close())
	_ = a.logger.Sync()
	return err
}
